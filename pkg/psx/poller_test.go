package psx

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/psxpad/pkg/gpio"
	"github.com/robotalks/psxpad/pkg/psx/psxsim"
)

type notification struct {
	state State
	err   error
}

func newTestPoller(t *testing.T, pad *psxsim.Pad, threshold int) (*poller, *[]notification) {
	frames := NewFrameExchange(pad, Timing{})
	var notes []notification
	p := &poller{
		frames:    frames,
		neg:       NewNegotiator(frames, 0),
		mon:       newMonitor(),
		threshold: threshold,
		period:    time.Millisecond,
		backoff:   time.Millisecond,
		bus:       &sync.Mutex{},
		notify: func(s State, err error) {
			notes = append(notes, notification{state: s, err: err})
		},
	}
	link, err := p.neg.Negotiate()
	require.NoError(t, err)
	p.attach(link)
	return p, &notes
}

func TestPollerEdges(t *testing.T) {
	pad := psxsim.New(psxsim.IDAnalogRed)
	p, _ := newTestPoller(t, pad, 5)
	cross := uint16(1) << ButtonCross

	steps := []struct {
		pressed  uint16
		down     bool
		wasPress bool
		wasRel   bool
	}{
		{0, false, false, false},
		{cross, true, true, false},
		{cross, true, false, false},
		{0, false, false, true},
	}
	for n, step := range steps {
		pad.SetButtons(step.pressed)
		p.tick()
		st := p.mon.load()
		require.Equal(t, uint64(n+1), st.Snapshot.Sequence)
		require.Equal(t, step.down, st.IsPressed(ButtonCross), "step %d", n)
		require.Equal(t, step.wasPress, st.WasPressed(ButtonCross), "step %d", n)
		require.Equal(t, step.wasRel, st.WasReleased(ButtonCross), "step %d", n)
		require.False(t, st.IsPressed(ButtonCircle))
	}
	stats := p.mon.stats()
	require.Equal(t, uint64(4), stats.Reads)
	require.Equal(t, uint64(0), stats.Errors)
	require.Equal(t, float64(100), stats.SuccessRate())
}

func TestPollerReport(t *testing.T) {
	pad := psxsim.New(psxsim.IDAnalogRed)
	p, _ := newTestPoller(t, pad, 5)
	pad.SetReport(0x00, 0xFF, 0x80, 0x80, 0x10, 0xF0)
	pad.ResetFrames()
	p.tick()

	require.Equal(t, [][]byte{{CmdPoll, 0, 0, 0, 0, 0, 0}}, pad.Frames())
	st := p.mon.load()
	require.True(t, st.Connected)
	require.True(t, st.Analog)
	require.Equal(t, AxisState{128, 128, 16, 240}, st.Snapshot.Axes)
	require.Equal(t, uint8(16), st.Axis(AxisRX))
	require.Equal(t, uint8(240), st.Axis(AxisRY))
	for b := Button(0); b < NumButtons; b++ {
		// active-low: the zero byte holds the first eight buttons down.
		require.Equal(t, b < 8, st.IsPressed(b), b.String())
	}
}

func TestPollerDigitalAxesCentered(t *testing.T) {
	pad := psxsim.New(psxsim.IDDigital)
	p, _ := newTestPoller(t, pad, 5)
	pad.SetAxes(10, 20, 30, 40)
	pad.SetButtons(1 << ButtonStart)
	pad.ResetFrames()
	p.tick()

	require.Equal(t, [][]byte{{CmdPoll, 0, 0}}, pad.Frames())
	st := p.mon.load()
	require.False(t, st.Analog)
	require.True(t, st.IsPressed(ButtonStart))
	require.Equal(t, CenteredAxes, st.Snapshot.Axes)
	for a := Axis(0); a < NumAxes; a++ {
		require.Equal(t, AxisCenter, st.Axis(a))
	}
}

func TestPollerBackoffRecovery(t *testing.T) {
	pad := psxsim.New(psxsim.IDAnalogRed)
	p, notes := newTestPoller(t, pad, 1)
	p.tick()
	require.True(t, p.mon.load().Connected)

	pad.DropFrames(3)
	require.Equal(t, time.Millisecond, p.tick())
	require.Equal(t, StateBackoff, p.state)
	require.False(t, p.mon.load().Connected)
	require.Len(t, *notes, 1)
	require.True(t, errors.Is((*notes)[0].err, ErrLinkLost))
	require.False(t, (*notes)[0].state.Connected)

	// two identification attempts fall into the dropped frames.
	p.tick()
	p.tick()
	require.Equal(t, StateBackoff, p.state)
	require.Len(t, *notes, 1)

	p.tick()
	require.Equal(t, StatePolling, p.state)
	require.Len(t, *notes, 2)
	require.NoError(t, (*notes)[1].err)
	st := p.mon.load()
	require.True(t, st.Connected)
	require.Equal(t, ModeAnalogRed, st.Mode)
	require.True(t, st.Analog)

	p.tick()
	stats := p.mon.stats()
	require.Equal(t, uint64(2), stats.Reads)
	require.Equal(t, uint64(1), stats.Errors)
	require.Equal(t, uint64(1), stats.Renegotiations)
	require.True(t, stats.Connected)
}

func TestPollerThreshold(t *testing.T) {
	pad := psxsim.New(psxsim.IDDigital)
	p, notes := newTestPoller(t, pad, 3)
	pad.DropFrames(2)
	p.tick()
	p.tick()
	require.Equal(t, StatePolling, p.state)
	require.Empty(t, *notes)
	p.tick()
	require.Equal(t, uint64(1), p.mon.stats().Reads)
	require.Equal(t, uint64(2), p.mon.stats().Errors)

	pad.DropFrames(3)
	p.tick()
	p.tick()
	p.tick()
	require.Equal(t, StateBackoff, p.state)
	require.Len(t, *notes, 1)
}

func TestPollerRejectsUnknownStatus(t *testing.T) {
	tests := []struct {
		id     byte
		status byte
	}{
		{psxsim.IDAnalogRed, 0x00},
		{psxsim.IDAnalogRed, 0x99},
		{psxsim.IDDigital, 0x00},
	}
	for _, test := range tests {
		pad := psxsim.New(test.id)
		p, _ := newTestPoller(t, pad, 5)
		p.tick()
		before := p.mon.load()

		pad.SetID(test.status)
		pad.SetReport(0, 0, 0, 0, 0, 0)
		p.tick()
		stats := p.mon.stats()
		require.Equal(t, uint64(1), stats.Reads, "status 0x%02x", test.status)
		require.Equal(t, uint64(1), stats.Errors, "status 0x%02x", test.status)
		st := p.mon.load()
		require.Equal(t, before.Snapshot, st.Snapshot)
		require.False(t, st.IsPressed(ButtonCross))
		require.True(t, st.Connected)
		require.Equal(t, StatePolling, p.state)
	}
}

func TestPollerModeDrop(t *testing.T) {
	pad := psxsim.New(psxsim.IDAnalogRed)
	p, notes := newTestPoller(t, pad, 1)
	pad.SetID(psxsim.IDDigital)
	p.tick()
	require.Equal(t, StateBackoff, p.state)
	require.True(t, errors.Is((*notes)[0].err, ErrTransientFrame))

	p.tick()
	st := p.mon.load()
	require.True(t, st.Connected)
	require.Equal(t, ModeDigital, st.Mode)
	require.False(t, st.Analog)
}

func TestPollerRunSkipsOverruns(t *testing.T) {
	pad := psxsim.New(psxsim.IDDigital)
	p, _ := newTestPoller(t, pad, 5)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	now := time.Unix(0, 0)
	calls := 0
	p.now = func() time.Time {
		// every tick takes three periods.
		now = now.Add(3 * p.period)
		if calls++; calls > 20 {
			cancel()
		}
		return now
	}
	require.Equal(t, context.Canceled, p.Run(ctx))
	stats := p.mon.stats()
	require.True(t, stats.Reads > 0)
	require.Equal(t, stats.Reads, stats.Skipped)
}

// clockPort advances a fake clock on every frame.
type clockPort struct {
	*psxsim.Pad
	frame func()
}

func (p *clockPort) SetLine(l gpio.Line, high bool) {
	if l == gpio.Attention && !high {
		p.frame()
	}
	p.Pad.SetLine(l, high)
}

func TestPollerRunKeepsGrid(t *testing.T) {
	pad := psxsim.New(psxsim.IDDigital)
	p, _ := newTestPoller(t, pad, 5)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	start := time.Unix(100, 0)
	now := start
	var frames, waits []time.Duration
	p.frames = NewFrameExchange(&clockPort{
		Pad: pad,
		frame: func() {
			frames = append(frames, now.Sub(start))
			// every tick takes half a period.
			now = now.Add(p.period / 2)
			if len(frames) == 6 {
				cancel()
			}
		},
	}, Timing{})
	p.now = func() time.Time { return now }
	p.after = func(d time.Duration) <-chan time.Time {
		waits = append(waits, d)
		now = now.Add(d)
		ch := make(chan time.Time, 1)
		ch <- now
		return ch
	}

	require.Equal(t, context.Canceled, p.Run(ctx))
	require.Len(t, frames, 6)
	for k, at := range frames {
		require.Equal(t, time.Duration(k)*p.period, at, "tick %d", k)
	}
	for _, d := range waits {
		require.Equal(t, p.period/2, d)
	}
	stats := p.mon.stats()
	require.Equal(t, uint64(6), stats.Reads)
	require.Zero(t, stats.Skipped)
}

func TestPollStateString(t *testing.T) {
	require.Equal(t, "idle", StateIdle.String())
	require.Equal(t, "polling", StatePolling.String())
	require.Equal(t, "backoff", StateBackoff.String())
}
