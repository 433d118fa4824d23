// Package psxsim simulates a pad at the signal level. A Pad is a gpio.Port:
// it watches attention and clock edges driven by the host, shifts command
// bits in and response bits out, and applies configuration commands when
// the frame ends.
package psxsim

import (
	"sync"
	"time"

	"github.com/robotalks/psxpad/pkg/gpio"
)

// Well-known identification codes.
const (
	IDDigital     byte = 0x41
	IDAnalogRed   byte = 0x73
	IDAnalogGreen byte = 0x53
	IDNegCon      byte = 0x23
	IDMouse       byte = 0x12

	idConfig  byte = 0xF3
	marker    byte = 0x5A
	floating  byte = 0xFF
	cmdIdent  byte = 0x01
	cmdPoll   byte = 0x42
	cmdConfig byte = 0x43
	cmdMode   byte = 0x44
)

// Pad is a simulated controller.
type Pad struct {
	// IgnoreConfig makes the pad answer configuration commands without
	// ever entering configuration mode.
	IgnoreConfig bool

	id        byte
	present   bool
	drop      int
	config    bool
	extended  bool
	locked    bool
	buttons   uint16
	axes      [4]byte
	report    []byte
	levels    [5]bool
	bit       uint
	in        byte
	out       byte
	rx        []byte
	frames    [][]byte
	delayed   time.Duration
	dataLevel bool

	lock sync.Mutex
}

// New creates a connected pad reporting id.
func New(id byte) *Pad {
	p := &Pad{id: id, present: true, dataLevel: true}
	p.axes = [4]byte{0x80, 0x80, 0x80, 0x80}
	for n := range p.levels {
		p.levels[n] = true
	}
	return p
}

// SetID changes the identification code.
func (p *Pad) SetID(id byte) {
	p.lock.Lock()
	p.id = id
	p.lock.Unlock()
}

// Unplug disconnects the pad from the bus.
func (p *Pad) Unplug() {
	p.lock.Lock()
	p.present = false
	p.config, p.extended, p.locked = false, false, false
	p.lock.Unlock()
}

// Plug reconnects the pad.
func (p *Pad) Plug() {
	p.lock.Lock()
	p.present = true
	p.lock.Unlock()
}

// DropFrames makes the next n frames read as if nothing is connected.
func (p *Pad) DropFrames(n int) {
	p.lock.Lock()
	p.drop = n
	p.lock.Unlock()
}

// SetButtons sets the pressed buttons, bit i being button i in report order.
func (p *Pad) SetButtons(pressed uint16) {
	p.lock.Lock()
	p.buttons = pressed
	p.report = nil
	p.lock.Unlock()
}

// SetAxes sets the stick positions in LX, LY, RX, RY order.
func (p *Pad) SetAxes(lx, ly, rx, ry byte) {
	p.lock.Lock()
	p.axes = [4]byte{lx, ly, rx, ry}
	p.report = nil
	p.lock.Unlock()
}

// SetReport overrides the raw poll payload following the status byte.
func (p *Pad) SetReport(payload ...byte) {
	p.lock.Lock()
	p.report = append([]byte(nil), payload...)
	p.lock.Unlock()
}

// Extended reports whether analog mode was enabled through configuration,
// and whether it was locked.
func (p *Pad) Extended() (enabled, locked bool) {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.extended, p.locked
}

// InConfig reports whether the pad is in configuration mode.
func (p *Pad) InConfig() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.config
}

// Frames returns the bytes the host sent, one slice per frame.
func (p *Pad) Frames() [][]byte {
	p.lock.Lock()
	defer p.lock.Unlock()
	frames := make([][]byte, len(p.frames))
	for n, f := range p.frames {
		frames[n] = append([]byte(nil), f...)
	}
	return frames
}

// ResetFrames clears the recorded frames.
func (p *Pad) ResetFrames() {
	p.lock.Lock()
	p.frames = nil
	p.lock.Unlock()
}

// Level returns the last level the host drove on l.
func (p *Pad) Level(l gpio.Line) bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.levels[l]
}

// Delayed returns the accumulated delay requested by the host.
func (p *Pad) Delayed() time.Duration {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.delayed
}

// SetLine implements gpio.Port.
func (p *Pad) SetLine(l gpio.Line, high bool) {
	p.lock.Lock()
	defer p.lock.Unlock()
	prev := p.levels[l]
	p.levels[l] = high
	switch l {
	case gpio.Attention:
		if prev && !high {
			p.beginFrame()
		} else if !prev && high {
			p.endFrame()
		}
	case gpio.Clock:
		if p.levels[gpio.Attention] {
			return
		}
		if prev && !high {
			p.dataLevel = p.out&(1<<p.bit) != 0
		} else if !prev && high {
			p.shiftIn()
		}
	}
}

// ReadLine implements gpio.Port.
func (p *Pad) ReadLine(l gpio.Line) bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	switch l {
	case gpio.Data:
		if p.levels[gpio.Attention] {
			return true
		}
		return p.dataLevel
	case gpio.Acknowledge:
		return true
	}
	return p.levels[l]
}

// Delay implements gpio.Port. Nothing is waited.
func (p *Pad) Delay(d time.Duration) {
	p.lock.Lock()
	p.delayed += d
	p.lock.Unlock()
}

func (p *Pad) beginFrame() {
	p.rx, p.bit, p.in = nil, 0, 0
	p.dataLevel = true
	p.out = p.respond(0)
}

func (p *Pad) endFrame() {
	rx := p.rx
	p.rx = nil
	p.dataLevel = true
	if len(rx) == 0 {
		// attention pulsed without clocking, e.g. a reset pulse.
		return
	}
	p.frames = append(p.frames, rx)
	if p.drop > 0 {
		p.drop--
		return
	}
	if !p.present || len(rx) < 3 || p.IgnoreConfig {
		return
	}
	switch rx[0] {
	case cmdConfig:
		p.config = rx[2] == 0x01
	case cmdMode:
		if p.config {
			p.extended = rx[2] == 0x01
			p.locked = len(rx) > 3 && rx[3] == 0x03
		}
	}
}

func (p *Pad) shiftIn() {
	if p.levels[gpio.Command] {
		p.in |= 1 << p.bit
	}
	p.bit++
	if p.bit < 8 {
		return
	}
	p.rx = append(p.rx, p.in)
	p.bit, p.in = 0, 0
	p.dataLevel = true
	p.out = p.respond(len(p.rx))
}

// respond computes the byte shifted out at position k of the frame.
func (p *Pad) respond(k int) byte {
	if !p.present || p.drop > 0 {
		return floating
	}
	if k == 0 {
		if p.config {
			return idConfig
		}
		return p.id
	}
	switch cmd := p.rx[0]; {
	case cmd == cmdPoll && !p.config:
		return p.pollByte(k - 1)
	case k == 1:
		return marker
	}
	return 0x00
}

func (p *Pad) pollByte(i int) byte {
	payload := p.report
	if payload == nil {
		payload = []byte{
			^byte(p.buttons), ^byte(p.buttons >> 8),
			p.axes[0], p.axes[1], p.axes[2], p.axes[3],
		}
		if n := int(p.id&0x0f) * 2; n < len(payload) {
			payload = payload[:n]
		}
	}
	if i < len(payload) {
		return payload[i]
	}
	return floating
}
