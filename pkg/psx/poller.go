package psx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

// PollState is the state of the polling engine.
type PollState int

// Poll states.
const (
	StateIdle PollState = iota
	StatePolling
	StateBackoff
)

// String implements fmt.Stringer.
func (s PollState) String() string {
	switch s {
	case StatePolling:
		return "polling"
	case StateBackoff:
		return "backoff"
	}
	return "idle"
}

// monitor holds what readers see without touching the bus.
type monitor struct {
	state          atomic.Pointer[State]
	reads          atomic.Uint64
	errors         atomic.Uint64
	skipped        atomic.Uint64
	renegotiations atomic.Uint64
}

func newMonitor() *monitor {
	m := &monitor{}
	m.publish(State{Snapshot: Snapshot{Axes: CenteredAxes}})
	return m
}

func (m *monitor) load() State {
	return *m.state.Load()
}

func (m *monitor) publish(s State) {
	m.state.Store(&s)
}

func (m *monitor) stats() Stats {
	st := m.load()
	return Stats{
		Reads:          m.reads.Load(),
		Errors:         m.errors.Load(),
		Skipped:        m.skipped.Load(),
		Renegotiations: m.renegotiations.Load(),
		Connected:      st.Connected,
		Mode:           st.Mode,
		Analog:         st.Analog,
	}
}

// poller reads the pad at a fixed rate and falls back to periodic
// renegotiation when the pad stops answering. Fields below bus are only
// touched with bus held.
type poller struct {
	frames    *FrameExchange
	neg       *Negotiator
	mon       *monitor
	notify    func(State, error)
	threshold int
	period    time.Duration
	backoff   time.Duration
	now       func() time.Time
	after     func(time.Duration) <-chan time.Time

	bus      *sync.Mutex
	state    PollState
	link     Link
	failures int
}

// Name implements framework.Named.
func (p *poller) Name() string {
	return "psx-poller"
}

// Run implements framework.Runnable. Ticks are scheduled on absolute
// deadlines; a tick running past its deadline is counted as skipped and
// the next one starts right away, and an overrun longer than a whole
// interval moves the grid instead of bursting to catch up.
func (p *poller) Run(ctx context.Context) error {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()
	next := p.clock()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		interval := p.tick()
		next = next.Add(interval)
		now := p.clock()
		wait := next.Sub(now)
		if wait <= 0 {
			p.mon.skipped.Add(1)
			if -wait > interval {
				next = now
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.sleep(timer, wait):
		}
	}
}

// tick runs one polling or backoff step and returns the interval until the
// next one.
func (p *poller) tick() time.Duration {
	var (
		changed bool
		cause   error
	)
	p.bus.Lock()
	switch p.state {
	case StatePolling:
		changed, cause = p.poll()
	case StateBackoff:
		changed, cause = p.recover()
	}
	interval := p.period
	if p.state == StateBackoff {
		interval = p.backoff
	}
	p.bus.Unlock()
	if changed && p.notify != nil {
		p.notify(p.mon.load(), cause)
	}
	return interval
}

func (p *poller) poll() (bool, error) {
	n := p.link.PollLen()
	resp, err := p.frames.Exchange(CmdPoll, n)
	if err == nil {
		err = p.validate(resp[0], n)
	}
	if err != nil {
		return p.fail(err)
	}
	p.failures = 0
	prev := p.mon.load()
	snap := Snapshot{
		Buttons:   decodeButtons(resp[1], resp[2]),
		Axes:      CenteredAxes,
		Sequence:  prev.Snapshot.Sequence + 1,
		Timestamp: p.clock(),
	}
	if p.link.Analog {
		copy(snap.Axes[:], resp[3:])
	}
	p.mon.reads.Add(1)
	p.mon.publish(State{
		Snapshot:  snap,
		Edges:     EdgesBetween(prev.Snapshot, snap),
		Connected: true,
		Mode:      p.link.Mode,
		Analog:    p.link.Analog,
	})
	return false, nil
}

// validate rejects a status byte announcing fewer payload bytes than
// requested. It catches a pad that silently dropped back to digital
// reporting. Codes outside the table are only passed through on a link
// that identified with such a code.
func (p *poller) validate(status byte, n int) error {
	if status == StatusConfig {
		return &FrameError{Command: CmdPoll, Status: status}
	}
	mode := ModeFromCode(status)
	if !mode.IsKnown() {
		if p.link.Mode.IsKnown() {
			return &FrameError{Command: CmdPoll, Status: status}
		}
		return nil
	}
	if mode.PayloadLen() < n {
		return fmt.Errorf("%w: %s pad reports %d bytes, want %d",
			ErrTransientFrame, mode, mode.PayloadLen(), n)
	}
	return nil
}

func (p *poller) fail(err error) (bool, error) {
	p.mon.errors.Add(1)
	p.failures++
	if p.failures < p.threshold {
		glog.V(2).Infof("poll failed (%d/%d): %v", p.failures, p.threshold, err)
		return false, nil
	}
	glog.Warningf("pad lost after %d failed polls: %v", p.failures, err)
	p.state = StateBackoff
	st := p.mon.load()
	st.Connected = false
	st.Edges = Edges{}
	p.mon.publish(st)
	return true, fmt.Errorf("%w: %w", ErrLinkLost, err)
}

func (p *poller) recover() (bool, error) {
	link, err := p.neg.Negotiate()
	if err != nil && !errors.Is(err, ErrUnsupportedDevice) {
		glog.V(2).Infof("renegotiation failed: %v", err)
		return false, nil
	}
	p.mon.renegotiations.Add(1)
	p.attach(link)
	glog.Infof("pad reconnected: %s analog=%v", link.Mode, link.Analog)
	return true, link.Warning
}

// attach switches to polling on a freshly negotiated link.
func (p *poller) attach(link Link) {
	p.link = link
	p.failures = 0
	p.state = StatePolling
	st := p.mon.load()
	st.Connected = true
	st.Mode = link.Mode
	st.Analog = link.Analog
	st.Edges = Edges{}
	p.mon.publish(st)
}

func (p *poller) sleep(timer *time.Timer, d time.Duration) <-chan time.Time {
	if p.after != nil {
		return p.after(d)
	}
	timer.Reset(d)
	return timer.C
}

func (p *poller) clock() time.Time {
	if p.now != nil {
		return p.now()
	}
	return time.Now()
}
