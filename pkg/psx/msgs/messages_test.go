package msgs

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	l1msgs "github.com/robotalks/psxpad/pkg/l1/msgs"
	"github.com/robotalks/psxpad/pkg/psx"
)

func TestPadStateThroughTyped(t *testing.T) {
	st := psx.State{
		Snapshot: psx.Snapshot{
			Buttons:   psx.ButtonState(0).With(psx.ButtonL2),
			Axes:      psx.AxisState{1, 2, 3, 4},
			Sequence:  42,
			Timestamp: time.Unix(10, 500),
		},
		Edges:     psx.Edges{Pressed: psx.ButtonState(0).With(psx.ButtonL2)},
		Connected: true,
		Mode:      psx.ModeAnalogRed,
		Analog:    true,
	}
	typed, err := l1msgs.TypedFrom(StateFrom(st))
	require.NoError(t, err)
	require.True(t, typed.IsEvent())
	data, err := typed.Encode()
	require.NoError(t, err)
	decoded, err := l1msgs.DecodeTyped(data)
	require.NoError(t, err)
	msg, err := decoded.Decode()
	require.NoError(t, err)

	got := msg.(*PadState).ToState()
	require.Equal(t, st.Snapshot.Buttons, got.Snapshot.Buttons)
	require.Equal(t, st.Snapshot.Axes, got.Snapshot.Axes)
	require.Equal(t, st.Edges, got.Edges)
	require.True(t, st.Snapshot.Timestamp.Equal(got.Snapshot.Timestamp))
	require.Equal(t, uint64(42), got.Snapshot.Sequence)
	require.True(t, got.Analog)
	require.Equal(t, psx.ModeAnalogRed, got.Mode)
	require.Contains(t, got.Format(), psx.ModeAnalogRed.String())
}

func TestPadStateMode(t *testing.T) {
	tests := []psx.DeviceMode{
		psx.ModeDigital,
		psx.ModeAnalogGreen,
		psx.ModeOther(0x99),
	}
	for _, mode := range tests {
		m := StateFrom(psx.State{Connected: true, Mode: mode})
		require.Equal(t, uint32(mode.Code()), m.ModeCode)
		require.Equal(t, mode, m.ToState().Mode)
	}
	require.Equal(t, psx.ModeUnknown, (&PadState{}).ToState().Mode)
}

func TestStateFromDigital(t *testing.T) {
	m := StateFrom(psx.State{Snapshot: psx.Snapshot{Axes: psx.AxisState{9, 9, 9, 9}}})
	require.Equal(t, []byte{128, 128, 128, 128}, m.Axes)
	require.Zero(t, m.Timestamp)
}

func TestStatusFrom(t *testing.T) {
	stats := psx.Stats{Reads: 9, Errors: 1, Mode: psx.ModeDigital, Connected: true}
	m := StatusFrom(stats, errors.New("link lost"))
	require.Equal(t, "digital", m.Mode)
	require.Equal(t, uint32(0x41), m.ModeCode)
	require.Equal(t, float64(90), m.SuccessRate)
	require.Equal(t, "link lost", m.Error)

	typed, err := l1msgs.TypedFrom(&PadStatusReply{Status: m})
	require.NoError(t, err)
	require.True(t, typed.IsReply())
	msg, err := typed.Decode()
	require.NoError(t, err)
	require.Equal(t, uint64(9), msg.(*PadStatusReply).Status.Reads)
}
