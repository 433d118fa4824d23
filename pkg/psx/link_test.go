package psx

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/psxpad/pkg/gpio"
	"github.com/robotalks/psxpad/pkg/psx/psxsim"
)

// loopbackPort feeds the command line back on data and records the clock
// edges.
type loopbackPort struct {
	levels  [5]bool
	falling int
	bits    []bool
	delayed time.Duration
}

func (p *loopbackPort) SetLine(l gpio.Line, high bool) {
	if l == gpio.Clock && p.levels[l] && !high {
		p.falling++
		p.bits = append(p.bits, p.levels[gpio.Command])
	}
	p.levels[l] = high
}

func (p *loopbackPort) ReadLine(l gpio.Line) bool {
	if l == gpio.Data {
		return p.levels[gpio.Command]
	}
	return p.levels[l]
}

func (p *loopbackPort) Delay(d time.Duration) {
	p.delayed += d
}

func TestTransferByteRoundTrip(t *testing.T) {
	port := &loopbackPort{}
	port.levels[gpio.Clock] = true
	link := &BitLink{Port: port, Timing: TimingPS2}
	for v := 0; v < 256; v++ {
		require.Equal(t, byte(v), link.TransferByte(byte(v)))
	}
	require.Equal(t, 256*8, port.falling)
	require.True(t, port.levels[gpio.Clock])
	require.Equal(t, 256*TimingPS2.ByteTime()-256*TimingPS2.ByteGap, port.delayed)
}

func TestTransferByteLSBFirst(t *testing.T) {
	port := &loopbackPort{}
	port.levels[gpio.Clock] = true
	link := &BitLink{Port: port}
	link.TransferByte(0x01)
	require.Equal(t, []bool{true, false, false, false, false, false, false, false}, port.bits)
}

func TestExchange(t *testing.T) {
	pad := psxsim.New(psxsim.IDAnalogRed)
	frames := NewFrameExchange(pad, Timing{})

	resp, err := frames.Exchange(CmdIdentify, 2)
	require.NoError(t, err)
	require.Equal(t, []byte{0x73, 0x5A, 0x00}, resp)

	resp, err = frames.ExchangeWith(CmdConfig, enterConfigPayload, 4)
	require.NoError(t, err)
	require.Len(t, resp, 5)
	require.True(t, pad.InConfig())
	require.Equal(t, [][]byte{
		{CmdIdentify, 0x00, 0x00},
		{CmdConfig, 0x00, 0x01, 0x00, 0x00},
	}, pad.Frames())
	require.True(t, pad.Level(gpio.Attention))
}

func TestExchangeNotPresent(t *testing.T) {
	pad := psxsim.New(psxsim.IDDigital)
	pad.Unplug()
	frames := NewFrameExchange(pad, Timing{})
	resp, err := frames.Exchange(CmdPoll, 2)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrTransientFrame))
	var ferr *FrameError
	require.True(t, errors.As(err, &ferr))
	require.Equal(t, CmdPoll, ferr.Command)
	require.Equal(t, []byte{0xFF, 0xFF, 0xFF}, resp)
}
