package psx

import (
	"fmt"
	"strings"
	"time"
)

// DeviceMode is the report format a pad identified itself with.
type DeviceMode struct {
	kind modeKind
	code byte
}

type modeKind byte

const (
	kindUnknown modeKind = iota
	kindDigital
	kindAnalogRed
	kindAnalogGreen
	kindNegCon
	kindMouse
	kindOther
)

// Known modes.
var (
	ModeUnknown     = DeviceMode{}
	ModeDigital     = DeviceMode{kind: kindDigital, code: 0x41}
	ModeAnalogRed   = DeviceMode{kind: kindAnalogRed, code: 0x73}
	ModeAnalogGreen = DeviceMode{kind: kindAnalogGreen, code: 0x53}
	ModeNegCon      = DeviceMode{kind: kindNegCon, code: 0x23}
	ModeMouse       = DeviceMode{kind: kindMouse, code: 0x12}
)

var knownModes = []DeviceMode{
	ModeDigital,
	ModeAnalogRed,
	ModeAnalogGreen,
	ModeNegCon,
	ModeMouse,
}

// ModeOther wraps an identification code not in the table.
func ModeOther(code byte) DeviceMode {
	return DeviceMode{kind: kindOther, code: code}
}

// ModeFromCode maps an identification code to a mode.
func ModeFromCode(code byte) DeviceMode {
	for _, m := range knownModes {
		if m.code == code {
			return m
		}
	}
	return ModeOther(code)
}

// Code returns the identification code, 0 for ModeUnknown.
func (m DeviceMode) Code() byte {
	return m.code
}

// IsKnown indicates the mode is in the identification table.
func (m DeviceMode) IsKnown() bool {
	return m.kind != kindUnknown && m.kind != kindOther
}

// AnalogCapable indicates the pad can be switched to extended reporting.
func (m DeviceMode) AnalogCapable() bool {
	return m.kind == kindAnalogRed || m.kind == kindAnalogGreen
}

// PayloadLen is the number of bytes the pad reports after the status
// byte: the low nibble of the code counts 16-bit words.
func (m DeviceMode) PayloadLen() int {
	return int(m.code&0x0f) * 2
}

// String implements fmt.Stringer.
func (m DeviceMode) String() string {
	switch m.kind {
	case kindDigital:
		return "digital"
	case kindAnalogRed:
		return "analog-red"
	case kindAnalogGreen:
		return "analog-green"
	case kindNegCon:
		return "negcon"
	case kindMouse:
		return "mouse"
	case kindOther:
		return fmt.Sprintf("other(0x%02x)", m.code)
	}
	return "unknown"
}

// Button identifies one of the 16 pad buttons. The value is the bit index
// in the two active-low button bytes of a poll response.
type Button uint8

// Buttons, in bit order.
const (
	ButtonSelect Button = iota
	ButtonL3
	ButtonR3
	ButtonStart
	ButtonUp
	ButtonRight
	ButtonDown
	ButtonLeft
	ButtonL2
	ButtonR2
	ButtonL1
	ButtonR1
	ButtonTriangle
	ButtonCircle
	ButtonCross
	ButtonSquare

	NumButtons = 16
)

var buttonNames = [NumButtons]string{
	"SELECT", "L3", "R3", "START",
	"UP", "RIGHT", "DOWN", "LEFT",
	"L2", "R2", "L1", "R1",
	"TRIANGLE", "CIRCLE", "CROSS", "SQUARE",
}

// String implements fmt.Stringer.
func (b Button) String() string {
	if b < NumButtons {
		return buttonNames[b]
	}
	return fmt.Sprintf("BUTTON(%d)", uint8(b))
}

// ParseButton parses a button name, case-insensitive.
func ParseButton(name string) (Button, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for n, s := range buttonNames {
		if s == name {
			return Button(n), nil
		}
	}
	return 0, fmt.Errorf("unknown button %q", name)
}

// ButtonState holds one pressed flag per button.
type ButtonState uint16

// Has tells whether b is set.
func (s ButtonState) Has(b Button) bool {
	return b < NumButtons && s&(1<<b) != 0
}

// With returns the state with b set.
func (s ButtonState) With(b Button) ButtonState {
	return s | 1<<b
}

// Buttons lists the set buttons in bit order.
func (s ButtonState) Buttons() []Button {
	var res []Button
	for b := Button(0); b < NumButtons; b++ {
		if s.Has(b) {
			res = append(res, b)
		}
	}
	return res
}

// String implements fmt.Stringer.
func (s ButtonState) String() string {
	btns := s.Buttons()
	names := make([]string, len(btns))
	for n, b := range btns {
		names[n] = b.String()
	}
	return "[" + strings.Join(names, " ") + "]"
}

// decodeButtons converts the two active-low status bytes.
func decodeButtons(b1, b2 byte) ButtonState {
	return ButtonState(^(uint16(b1) | uint16(b2)<<8))
}

// Axis identifies a stick axis.
type Axis uint8

// Axes, in report order.
const (
	AxisLX Axis = iota
	AxisLY
	AxisRX
	AxisRY

	NumAxes = 4
)

// AxisCenter is the rest position.
const AxisCenter uint8 = 128

var axisNames = [NumAxes]string{"LX", "LY", "RX", "RY"}

// String implements fmt.Stringer.
func (a Axis) String() string {
	if a < NumAxes {
		return axisNames[a]
	}
	return fmt.Sprintf("AXIS(%d)", uint8(a))
}

// ParseAxis parses an axis name, case-insensitive.
func ParseAxis(name string) (Axis, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for n, s := range axisNames {
		if s == name {
			return Axis(n), nil
		}
	}
	return 0, fmt.Errorf("unknown axis %q", name)
}

// AxisState holds the four stick positions.
type AxisState [NumAxes]uint8

// CenteredAxes is the AxisState with all sticks at rest.
var CenteredAxes = AxisState{AxisCenter, AxisCenter, AxisCenter, AxisCenter}

// Snapshot is one decoded poll result.
type Snapshot struct {
	Buttons   ButtonState
	Axes      AxisState
	Sequence  uint64
	Timestamp time.Time
}

// Edges are the transitions between two consecutive snapshots.
type Edges struct {
	Pressed  ButtonState
	Released ButtonState
}

// EdgesBetween derives press/release transitions from prev to cur.
func EdgesBetween(prev, cur Snapshot) Edges {
	return Edges{
		Pressed:  ^prev.Buttons & cur.Buttons,
		Released: prev.Buttons &^ cur.Buttons,
	}
}

// State is the published view of a session, replaced as a whole on every
// change.
type State struct {
	Snapshot  Snapshot
	Edges     Edges
	Connected bool
	Mode      DeviceMode
	Analog    bool
}

// IsPressed tells whether b is held down.
func (s *State) IsPressed(b Button) bool {
	return s.Snapshot.Buttons.Has(b)
}

// WasPressed tells whether b went down with the latest snapshot.
func (s *State) WasPressed(b Button) bool {
	return s.Edges.Pressed.Has(b)
}

// WasReleased tells whether b went up with the latest snapshot.
func (s *State) WasReleased(b Button) bool {
	return s.Edges.Released.Has(b)
}

// Axis returns the stick position, AxisCenter without analog reporting.
func (s *State) Axis(a Axis) uint8 {
	if !s.Analog || a >= NumAxes {
		return AxisCenter
	}
	return s.Snapshot.Axes[a]
}

// Stats are the session counters.
type Stats struct {
	Reads          uint64
	Errors         uint64
	Skipped        uint64
	Renegotiations uint64
	Connected      bool
	Mode           DeviceMode
	Analog         bool
}

// SuccessRate is the percentage of poll frames decoded successfully.
func (s Stats) SuccessRate() float64 {
	total := s.Reads + s.Errors
	if total == 0 {
		return 0
	}
	return float64(s.Reads) * 100 / float64(total)
}
