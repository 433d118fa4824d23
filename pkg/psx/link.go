package psx

import (
	"github.com/golang/glog"

	"github.com/robotalks/psxpad/pkg/gpio"
)

// BitLink shifts bytes over the clock/command/data lines. The pad is a
// clocked slave: it shifts out on the falling edge and samples command on
// the rising edge.
type BitLink struct {
	Port   gpio.Port
	Timing Timing
}

// TransferByte sends out and returns the byte shifted in, LSB first.
func (l *BitLink) TransferByte(out byte) byte {
	var in byte
	t, p := &l.Timing, l.Port
	for i := uint(0); i < 8; i++ {
		p.SetLine(gpio.Command, out&(1<<i) != 0)
		p.Delay(t.Settle)
		p.SetLine(gpio.Clock, false)
		p.Delay(t.HalfClock)
		if p.ReadLine(gpio.Data) {
			in |= 1 << i
		}
		p.SetLine(gpio.Clock, true)
		p.Delay(t.HalfClock)
	}
	return in
}

// FrameExchange runs one attention-framed transaction.
type FrameExchange struct {
	BitLink
}

// NewFrameExchange creates a FrameExchange on port.
func NewFrameExchange(port gpio.Port, timing Timing) *FrameExchange {
	return &FrameExchange{BitLink: BitLink{Port: port, Timing: timing}}
}

// Exchange sends cmd followed by n zero bytes.
func (f *FrameExchange) Exchange(cmd byte, n int) ([]byte, error) {
	return f.ExchangeWith(cmd, nil, n)
}

// ExchangeWith sends cmd followed by n bytes taken from payload, padded
// with zeros. The result holds n+1 bytes, the first being the status byte.
// A status of StatusNotPresent fails the frame; the bytes are still
// returned for inspection.
func (f *FrameExchange) ExchangeWith(cmd byte, payload []byte, n int) ([]byte, error) {
	t, p := &f.Timing, f.Port
	resp := make([]byte, n+1)

	p.SetLine(gpio.Attention, false)
	p.Delay(t.Select)
	resp[0] = f.TransferByte(cmd)
	for i := 0; i < n; i++ {
		p.Delay(t.ByteGap)
		var out byte
		if i < len(payload) {
			out = payload[i]
		}
		resp[i+1] = f.TransferByte(out)
	}
	p.SetLine(gpio.Attention, true)
	p.Delay(t.Deselect)

	if glog.V(4) {
		glog.Infof("frame 0x%02x %x -> % x", cmd, payload, resp)
	}
	if resp[0] == StatusNotPresent {
		return resp, &FrameError{Command: cmd, Status: resp[0]}
	}
	return resp, nil
}
