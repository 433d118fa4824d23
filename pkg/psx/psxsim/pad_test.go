package psxsim_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/psxpad/pkg/gpio"
	"github.com/robotalks/psxpad/pkg/psx"
	"github.com/robotalks/psxpad/pkg/psx/psxsim"
)

func TestPadIdle(t *testing.T) {
	pad := psxsim.New(psxsim.IDDigital)
	for l := gpio.Clock; l <= gpio.Acknowledge; l++ {
		require.True(t, pad.Level(l), l.String())
	}
	require.True(t, pad.ReadLine(gpio.Data))
}

func TestPadPollReport(t *testing.T) {
	pad := psxsim.New(psxsim.IDAnalogRed)
	pad.SetButtons(1<<psx.ButtonSelect | 1<<psx.ButtonR1)
	pad.SetAxes(1, 2, 3, 4)
	frames := psx.NewFrameExchange(pad, psx.Timing{})
	resp, err := frames.Exchange(psx.CmdPoll, 6)
	require.NoError(t, err)
	require.Equal(t, []byte{0x73, 0xFE, 0xF7, 1, 2, 3, 4}, resp)

	// reports beyond the announced length float high.
	pad.SetID(psxsim.IDDigital)
	resp, err = frames.Exchange(psx.CmdPoll, 4)
	require.NoError(t, err)
	require.Equal(t, []byte{0x41, 0xFE, 0xF7, 0xFF, 0xFF}, resp)
}

func TestPadConfigMode(t *testing.T) {
	pad := psxsim.New(psxsim.IDAnalogRed)
	frames := psx.NewFrameExchange(pad, psx.Timing{})
	_, err := frames.ExchangeWith(psx.CmdConfig, []byte{0x00, 0x01}, 2)
	require.NoError(t, err)
	require.True(t, pad.InConfig())

	resp, err := frames.ExchangeWith(psx.CmdSetMode, []byte{0x00, 0x01, 0x03}, 7)
	require.NoError(t, err)
	require.Equal(t, psx.StatusConfig, resp[0])
	require.Equal(t, psx.FrameMarker, resp[1])
	enabled, locked := pad.Extended()
	require.True(t, enabled)
	require.True(t, locked)

	_, err = frames.ExchangeWith(psx.CmdConfig, []byte{0x00, 0x00}, 2)
	require.NoError(t, err)
	require.False(t, pad.InConfig())
}

func TestPadDropFrames(t *testing.T) {
	pad := psxsim.New(psxsim.IDDigital)
	frames := psx.NewFrameExchange(pad, psx.Timing{})
	pad.DropFrames(1)
	_, err := frames.Exchange(psx.CmdIdentify, 2)
	require.Error(t, err)
	resp, err := frames.Exchange(psx.CmdIdentify, 2)
	require.NoError(t, err)
	require.Equal(t, []byte{0x41, 0x5A, 0x00}, resp)
	require.Len(t, pad.Frames(), 2)

	pad.ResetFrames()
	pad.SetLine(gpio.Attention, false)
	pad.SetLine(gpio.Attention, true)
	require.Empty(t, pad.Frames())
}
