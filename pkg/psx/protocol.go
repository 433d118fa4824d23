package psx

import (
	"fmt"
	"strings"
	"time"
)

// Command bytes.
const (
	CmdIdentify byte = 0x01
	CmdPoll     byte = 0x42
	CmdConfig   byte = 0x43
	CmdSetMode  byte = 0x44
)

// Fixed response values.
const (
	// StatusNotPresent is what the data line reads with nothing driving it.
	StatusNotPresent byte = 0xFF
	// FrameMarker follows the status byte when a real pad answers.
	FrameMarker byte = 0x5A
	// StatusConfig is reported while the pad is in configuration mode.
	StatusConfig byte = 0xF3
)

// Payloads of the extended mode sequence, following the command byte.
var (
	enterConfigPayload = []byte{0x00, 0x01}
	setAnalogPayload   = []byte{0x00, 0x01, 0x03, 0x00, 0x00, 0x00, 0x00}
	exitConfigPayload  = []byte{0x00, 0x00, 0x5A, 0x5A, 0x5A, 0x5A, 0x5A}
)

// Payload lengths of poll frames.
const (
	digitalPollLen = 2
	analogPollLen  = 6
)

// Timing holds the bus delays. All of them are busy-waited.
type Timing struct {
	// Settle is the delay between driving command and the clock edge.
	Settle time.Duration
	// HalfClock is the duration of each clock phase.
	HalfClock time.Duration
	// Select is the delay after asserting attention.
	Select time.Duration
	// ByteGap is the delay between bytes, where the pad pulses ack.
	ByteGap time.Duration
	// Deselect is the delay after releasing attention.
	Deselect time.Duration
}

// Timing profiles.
var (
	TimingPS1 = Timing{
		Settle:    2 * time.Microsecond,
		HalfClock: 2 * time.Microsecond,
		Select:    50 * time.Microsecond,
		ByteGap:   15 * time.Microsecond,
		Deselect:  20 * time.Microsecond,
	}
	TimingPS2 = Timing{
		Settle:    1 * time.Microsecond,
		HalfClock: 1 * time.Microsecond,
		Select:    15 * time.Microsecond,
		ByteGap:   15 * time.Microsecond,
		Deselect:  20 * time.Microsecond,
	}
)

// ParseTiming resolves a profile name.
func ParseTiming(name string) (Timing, error) {
	switch strings.ToLower(name) {
	case "ps1":
		return TimingPS1, nil
	case "ps2", "":
		return TimingPS2, nil
	}
	return Timing{}, fmt.Errorf("unknown timing profile %q", name)
}

// ByteTime estimates the bus time of one byte including the gap.
func (t Timing) ByteTime() time.Duration {
	return 8*(t.Settle+2*t.HalfClock) + t.ByteGap
}
