package psx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"

	fx "github.com/robotalks/psxpad/pkg/framework"
	"github.com/robotalks/psxpad/pkg/gpio"
)

// StateNotifier is called when the connection state changed.
type StateNotifier interface {
	StateChanged(State, error)
}

// StateChangedFunc is func type of StateNotifier.
type StateChangedFunc func(State, error)

// StateChanged implements StateNotifier.
func (f StateChangedFunc) StateChanged(state State, err error) {
	f(state, err)
}

// ports owned by live sessions.
var claimedPorts sync.Map

// Session owns a port and the pad behind it.
type Session struct {
	// Notifier receives connect, disconnect and reconnect events. The
	// error is ErrLinkLost on disconnect, and the downgrade warning, if
	// any, on connect. It must be set before Connect.
	Notifier StateNotifier

	config Config
	port   gpio.Port
	bus    sync.Mutex
	mon    *monitor
	poller *poller

	lock    sync.Mutex
	closed  atomic.Bool
	runner  *fx.Runner
	cancel  context.CancelFunc
	started bool
}

func newSession(conf Config, port gpio.Port) (*Session, error) {
	if port == nil || !reflect.TypeOf(port).Comparable() {
		return nil, fmt.Errorf("%w: %T", ErrPortNotComparable, port)
	}
	if _, loaded := claimedPorts.LoadOrStore(port, struct{}{}); loaded {
		return nil, ErrPortInUse
	}
	frames := NewFrameExchange(port, conf.Timing)
	s := &Session{
		config: conf,
		port:   port,
		mon:    newMonitor(),
	}
	s.poller = &poller{
		frames:    frames,
		neg:       NewNegotiator(frames, conf.ConfigBudget),
		mon:       s.mon,
		notify:    s.notify,
		threshold: conf.FailureThreshold,
		period:    conf.Period(),
		backoff:   conf.BackoffInterval,
		bus:       &s.bus,
	}
	return s, nil
}

// NewSession creates a Session on port with the default config.
func NewSession(port gpio.Port) (*Session, error) {
	return Default().NewSession(port)
}

// Connect negotiates with the pad and starts polling. Calling it on a
// connected session negotiates again. An *UnsupportedDeviceError leaves
// the session polling the raw digital report.
func (s *Session) Connect() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.closed.Load() {
		return ErrSessionClosed
	}

	s.bus.Lock()
	if !s.started {
		s.resetPulse()
	}
	link, err := s.poller.neg.Negotiate()
	if err != nil && !errors.Is(err, ErrUnsupportedDevice) {
		s.bus.Unlock()
		return err
	}
	s.poller.attach(link)
	s.bus.Unlock()

	glog.Infof("pad connected: %s analog=%v", link.Mode, link.Analog)
	s.notify(s.mon.load(), link.Warning)

	if !s.started {
		var ctx context.Context
		ctx, s.cancel = context.WithCancel(context.Background())
		s.runner = fx.NewRunnerWith(ctx).Go(s.poller)
		s.started = true
	}
	return err
}

func (s *Session) resetPulse() {
	gpio.Idle(s.port)
	if s.config.ResetPulse <= 0 {
		return
	}
	s.port.SetLine(gpio.Attention, false)
	s.port.Delay(s.config.ResetPulse)
	s.port.SetLine(gpio.Attention, true)
	s.port.Delay(s.config.ResetPulse)
}

// Snapshot returns the latest snapshot.
func (s *Session) Snapshot() (Snapshot, error) {
	st, err := s.State()
	return st.Snapshot, err
}

// State returns the latest published state.
func (s *Session) State() (State, error) {
	if s.closed.Load() {
		return State{}, ErrSessionClosed
	}
	return s.mon.load(), nil
}

// IsPressed tells whether b is held down.
func (s *Session) IsPressed(b Button) (bool, error) {
	st, err := s.State()
	return err == nil && st.IsPressed(b), err
}

// WasPressed tells whether b went down with the latest snapshot.
func (s *Session) WasPressed(b Button) (bool, error) {
	st, err := s.State()
	return err == nil && st.WasPressed(b), err
}

// WasReleased tells whether b went up with the latest snapshot.
func (s *Session) WasReleased(b Button) (bool, error) {
	st, err := s.State()
	return err == nil && st.WasReleased(b), err
}

// Axis returns a stick position, AxisCenter when the pad doesn't report
// analog values.
func (s *Session) Axis(a Axis) (uint8, error) {
	st, err := s.State()
	if err != nil {
		return AxisCenter, err
	}
	return st.Axis(a), nil
}

// Stats returns the session counters.
func (s *Session) Stats() (Stats, error) {
	if s.closed.Load() {
		return Stats{}, ErrSessionClosed
	}
	return s.mon.stats(), nil
}

// Shutdown stops polling, leaves the lines idle and releases the port.
func (s *Session) Shutdown() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if !s.closed.CompareAndSwap(false, true) {
		return ErrSessionClosed
	}

	var errs fx.AggregatedError
	if s.runner != nil {
		s.cancel()
		err := s.runner.WaitTimeout(s.config.joinTimeout())
		if err == fx.ErrWaitTimeout {
			glog.Errorf("poller still running after %v", s.config.joinTimeout())
			err = ErrPollerLeaked
		}
		errs.Add(err)
	}
	if s.bus.TryLock() {
		gpio.Idle(s.port)
		s.bus.Unlock()
	}
	if closer, ok := s.port.(io.Closer); ok {
		errs.Add(closer.Close())
	}
	claimedPorts.Delete(s.port)

	st := s.mon.load()
	st.Connected = false
	st.Edges = Edges{}
	s.mon.publish(st)
	return errs.Aggregate()
}

func (s *Session) notify(state State, err error) {
	if s.Notifier != nil {
		s.Notifier.StateChanged(state, err)
	}
}
