// Package gpio defines the line-level capability the pad protocol engine
// is built on. Platform adapters implement Port.
package gpio

import (
	"fmt"
	"strings"
	"time"
)

// Line identifies the role of a signal line.
type Line int

// Line roles.
const (
	// Clock is driven by the host, idle high.
	Clock Line = iota
	// Command is driven by the host.
	Command
	// Attention frames a transaction, idle high, asserted low.
	Attention
	// Data is driven by the pad, idle high (pull-up).
	Data
	// Acknowledge is an optional pulse from the pad.
	Acknowledge

	numLines
)

var lineNames = [numLines]string{"clk", "cmd", "att", "dat", "ack"}

// String implements fmt.Stringer.
func (l Line) String() string {
	if l >= 0 && l < numLines {
		return lineNames[l]
	}
	return fmt.Sprintf("line(%d)", int(l))
}

// Port is the capability to drive and sample the pad lines.
// Implementations are owned by exactly one session, which tells them apart
// with ==, so they must be comparable. Pointers always are.
type Port interface {
	// SetLine drives an output line.
	SetLine(l Line, high bool)
	// ReadLine samples an input line.
	ReadLine(l Line) bool
	// Delay blocks for d without yielding to the scheduler when d is
	// in the microsecond range.
	Delay(d time.Duration)
}

// PinSet assigns platform GPIO names to line roles.
type PinSet struct {
	Clock       string
	Command     string
	Attention   string
	Data        string
	Acknowledge string // optional
}

// Names returns the assigned names indexed by Line.
func (p PinSet) Names() [5]string {
	return [5]string{p.Clock, p.Command, p.Attention, p.Data, p.Acknowledge}
}

// Validate checks required roles are assigned and no GPIO is used twice.
func (p PinSet) Validate() error {
	names := p.Names()
	seen := make(map[string]Line, len(names))
	for n, name := range names {
		l := Line(n)
		if name == "" {
			if l == Acknowledge {
				continue
			}
			return fmt.Errorf("pin for %s not assigned", l)
		}
		if prev, ok := seen[name]; ok {
			return fmt.Errorf("pin %s assigned to both %s and %s", name, prev, l)
		}
		seen[name] = l
	}
	return nil
}

// String renders the PinSet in the format accepted by ParsePinSet.
func (p PinSet) String() string {
	items := []string{
		"clk=" + p.Clock,
		"cmd=" + p.Command,
		"att=" + p.Attention,
		"dat=" + p.Data,
	}
	if p.Acknowledge != "" {
		items = append(items, "ack="+p.Acknowledge)
	}
	return strings.Join(items, ",")
}

// ParsePinSet parses "clk=GPIO22,cmd=GPIO18,att=GPIO27,dat=GPIO17[,ack=...]".
func ParsePinSet(s string) (PinSet, error) {
	var p PinSet
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		kv := strings.SplitN(item, "=", 2)
		if len(kv) != 2 {
			return p, fmt.Errorf("invalid pin assignment %q", item)
		}
		val := strings.TrimSpace(kv[1])
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "clk", "clock":
			p.Clock = val
		case "cmd", "command":
			p.Command = val
		case "att", "attention", "sel", "select":
			p.Attention = val
		case "dat", "data":
			p.Data = val
		case "ack", "acknowledge":
			p.Acknowledge = val
		default:
			return p, fmt.Errorf("unknown line %q", kv[0])
		}
	}
	return p, p.Validate()
}

// Idle puts all host-driven lines into their idle (high) state.
func Idle(p Port) {
	p.SetLine(Attention, true)
	p.SetLine(Clock, true)
	p.SetLine(Command, true)
}

// BusyWait spins until d elapses. It is used for the microsecond delays of
// the bit protocol where time.Sleep granularity is far too coarse.
func BusyWait(d time.Duration) {
	if d <= 0 {
		return
	}
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
	}
}
