// Package periph implements gpio.Port on top of periph.io.
package periph

import (
	"fmt"
	"time"

	pgpio "periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/robotalks/psxpad/pkg/gpio"
)

// Port drives the pad lines through periph.io pins.
type Port struct {
	pins [5]pgpio.PinIO

	// DelayFunc performs the microsecond delays, gpio.BusyWait by default.
	DelayFunc func(time.Duration)
}

// Open initializes the periph.io host drivers and resolves the pins by
// name (e.g. "GPIO17" or "17").
func Open(pins gpio.PinSet) (*Port, error) {
	if err := pins.Validate(); err != nil {
		return nil, err
	}
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initialize periph.io host: %w", err)
	}
	var resolved [5]pgpio.PinIO
	for n, name := range pins.Names() {
		if name == "" {
			continue
		}
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, fmt.Errorf("pin %s for %s not found", name, gpio.Line(n))
		}
		resolved[n] = p
	}
	return newPort(resolved)
}

func newPort(pins [5]pgpio.PinIO) (*Port, error) {
	p := &Port{pins: pins, DelayFunc: gpio.BusyWait}
	for _, l := range []gpio.Line{gpio.Clock, gpio.Command, gpio.Attention} {
		if err := p.pins[l].Out(pgpio.High); err != nil {
			return nil, fmt.Errorf("configure %s as output: %w", l, err)
		}
	}
	if err := p.pins[gpio.Data].In(pgpio.PullUp, pgpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configure %s as input: %w", gpio.Data, err)
	}
	if ack := p.pins[gpio.Acknowledge]; ack != nil {
		if err := ack.In(pgpio.PullUp, pgpio.NoEdge); err != nil {
			return nil, fmt.Errorf("configure %s as input: %w", gpio.Acknowledge, err)
		}
	}
	return p, nil
}

// SetLine implements gpio.Port.
func (p *Port) SetLine(l gpio.Line, high bool) {
	if pin := p.pins[l]; pin != nil {
		pin.Out(pgpio.Level(high))
	}
}

// ReadLine implements gpio.Port. Unassigned lines read high, like a
// floating line behind a pull-up.
func (p *Port) ReadLine(l gpio.Line) bool {
	if pin := p.pins[l]; pin != nil {
		return bool(pin.Read())
	}
	return true
}

// Delay implements gpio.Port.
func (p *Port) Delay(d time.Duration) {
	if fn := p.DelayFunc; fn != nil {
		fn(d)
		return
	}
	gpio.BusyWait(d)
}

// Close halts all pins after returning outputs to idle.
func (p *Port) Close() error {
	gpio.Idle(p)
	var err error
	for _, pin := range p.pins {
		if pin == nil {
			continue
		}
		if e := pin.Halt(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
