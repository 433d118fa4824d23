package psx

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/psxpad/pkg/gpio"
	"github.com/robotalks/psxpad/pkg/psx/psxsim"
)

func testConfig() *Config {
	conf := NewConfig()
	conf.Timing = Timing{}
	conf.PollRate = 500
	conf.BackoffInterval = 2 * time.Millisecond
	conf.ResetPulse = time.Millisecond
	return conf
}

func newTestSession(t *testing.T, port gpio.Port) *Session {
	s, err := testConfig().NewSession(port)
	require.NoError(t, err)
	t.Cleanup(func() { s.Shutdown() })
	return s
}

func waitFor(t *testing.T, cond func() bool) {
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSessionLifecycle(t *testing.T) {
	pad := psxsim.New(psxsim.IDAnalogRed)
	s := newTestSession(t, pad)

	var notes []State
	var lock sync.Mutex
	s.Notifier = StateChangedFunc(func(st State, err error) {
		lock.Lock()
		notes = append(notes, st)
		lock.Unlock()
	})

	st, err := s.State()
	require.NoError(t, err)
	require.False(t, st.Connected)

	pad.SetAxes(0x10, 0x20, 0x30, 0x40)
	pad.SetButtons(1 << ButtonTriangle)
	require.NoError(t, s.Connect())
	require.Equal(t, 2*time.Millisecond, pad.Delayed())
	waitFor(t, func() bool {
		stats, err := s.Stats()
		return err == nil && stats.Reads > 2
	})

	pressed, err := s.IsPressed(ButtonTriangle)
	require.NoError(t, err)
	require.True(t, pressed)
	lx, err := s.Axis(AxisLX)
	require.NoError(t, err)
	require.Equal(t, uint8(0x10), lx)
	snap, err := s.Snapshot()
	require.NoError(t, err)
	require.Equal(t, AxisState{0x10, 0x20, 0x30, 0x40}, snap.Axes)

	stats, err := s.Stats()
	require.NoError(t, err)
	require.True(t, stats.Connected)
	require.True(t, stats.Analog)
	require.Equal(t, ModeAnalogRed, stats.Mode)

	lock.Lock()
	require.Len(t, notes, 1)
	require.True(t, notes[0].Connected)
	lock.Unlock()

	require.NoError(t, s.Shutdown())
	require.True(t, pad.Level(gpio.Attention))
	require.True(t, pad.Level(gpio.Clock))
	require.True(t, pad.Level(gpio.Command))

	_, err = s.State()
	require.Equal(t, ErrSessionClosed, err)
	_, err = s.Stats()
	require.Equal(t, ErrSessionClosed, err)
	_, err = s.IsPressed(ButtonTriangle)
	require.Equal(t, ErrSessionClosed, err)
	_, err = s.Axis(AxisLX)
	require.Equal(t, ErrSessionClosed, err)
	require.Equal(t, ErrSessionClosed, s.Connect())
	require.Equal(t, ErrSessionClosed, s.Shutdown())

	// no more frames after shutdown.
	frames := len(pad.Frames())
	time.Sleep(10 * time.Millisecond)
	require.Len(t, pad.Frames(), frames)
}

func TestSessionPortClaim(t *testing.T) {
	pad := psxsim.New(psxsim.IDDigital)
	s := newTestSession(t, pad)
	_, err := testConfig().NewSession(pad)
	require.Equal(t, ErrPortInUse, err)
	require.NoError(t, s.Shutdown())

	s2 := newTestSession(t, pad)
	require.NoError(t, s2.Connect())
}

// taggedPort is a value port that can't be used as a map key.
type taggedPort struct {
	*psxsim.Pad
	tags []int
}

func TestSessionPortNotComparable(t *testing.T) {
	tests := []gpio.Port{
		nil,
		taggedPort{Pad: psxsim.New(psxsim.IDDigital), tags: []int{1}},
	}
	for _, port := range tests {
		var (
			s   *Session
			err error
		)
		require.NotPanics(t, func() { s, err = testConfig().NewSession(port) })
		require.Nil(t, s)
		require.True(t, errors.Is(err, ErrPortNotComparable), "%v", err)
	}

	s := newTestSession(t, &taggedPort{Pad: psxsim.New(psxsim.IDDigital), tags: []int{1}})
	require.NoError(t, s.Connect())
}

func TestSessionNoResponse(t *testing.T) {
	pad := psxsim.New(psxsim.IDDigital)
	pad.Unplug()
	s := newTestSession(t, pad)
	err := s.Connect()
	require.True(t, errors.Is(err, ErrNoResponse))
	stats, err := s.Stats()
	require.NoError(t, err)
	require.False(t, stats.Connected)

	pad.Plug()
	require.NoError(t, s.Connect())
	stats, _ = s.Stats()
	require.True(t, stats.Connected)
	require.Equal(t, ModeDigital, stats.Mode)
}

func TestSessionUnsupportedDevice(t *testing.T) {
	pad := psxsim.New(0x99)
	pad.SetButtons(1 << ButtonSelect)
	s := newTestSession(t, pad)
	err := s.Connect()
	require.True(t, errors.Is(err, ErrUnsupportedDevice))
	waitFor(t, func() bool {
		pressed, _ := s.IsPressed(ButtonSelect)
		return pressed
	})
	stats, err := s.Stats()
	require.NoError(t, err)
	require.True(t, stats.Connected)
	require.False(t, stats.Analog)
	require.Equal(t, ModeOther(0x99), stats.Mode)
}

func TestSessionReconnects(t *testing.T) {
	pad := psxsim.New(psxsim.IDAnalogGreen)
	s := newTestSession(t, pad)
	var lost, back atomic.Int32
	s.Notifier = StateChangedFunc(func(st State, err error) {
		if errors.Is(err, ErrLinkLost) {
			lost.Add(1)
		} else if st.Connected {
			back.Add(1)
		}
	})
	require.NoError(t, s.Connect())
	waitFor(t, func() bool { return back.Load() == 1 })

	pad.Unplug()
	waitFor(t, func() bool { return lost.Load() == 1 })
	stats, _ := s.Stats()
	require.False(t, stats.Connected)

	pad.Plug()
	waitFor(t, func() bool { return back.Load() == 2 })
	stats, _ = s.Stats()
	require.True(t, stats.Connected)
	require.True(t, stats.Analog)
	require.Equal(t, ModeAnalogGreen, stats.Mode)
	require.Equal(t, uint64(1), stats.Renegotiations)
}

// stallPort blocks the bus on demand.
type stallPort struct {
	*psxsim.Pad
	stall   atomic.Bool
	stalled chan struct{}
	release chan struct{}
	once    sync.Once
}

func (p *stallPort) Delay(d time.Duration) {
	if p.stall.Load() {
		p.once.Do(func() { close(p.stalled) })
		<-p.release
	}
	p.Pad.Delay(d)
}

func TestSessionPollerLeaked(t *testing.T) {
	port := &stallPort{
		Pad:     psxsim.New(psxsim.IDDigital),
		stalled: make(chan struct{}),
		release: make(chan struct{}),
	}
	conf := testConfig()
	conf.JoinTimeout = 20 * time.Millisecond
	s, err := conf.NewSession(port)
	require.NoError(t, err)
	require.NoError(t, s.Connect())
	port.stall.Store(true)
	defer close(port.release)
	<-port.stalled

	err = s.Shutdown()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrPollerLeaked))
}

func TestJoinTimeout(t *testing.T) {
	conf := testConfig()
	require.Equal(t, minJoinTimeout, conf.joinTimeout())
	conf.BackoffInterval = time.Second
	require.Equal(t, 2*time.Second, conf.joinTimeout())
	conf.JoinTimeout = time.Millisecond
	require.Equal(t, time.Millisecond, conf.joinTimeout())
}
