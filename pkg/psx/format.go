package psx

import (
	"fmt"
	"strings"
)

const barWidth = 16

// Format renders the state as text: a header line, the buttons in groups
// of four with pressed ones starred, then one bar per stick axis.
func (s *State) Format() string {
	var b strings.Builder
	conn := "disconnected"
	if s.Connected {
		conn = "connected"
	}
	fmt.Fprintf(&b, "%s %s seq=%d\n", s.Mode, conn, s.Snapshot.Sequence)
	for row := Button(0); row < NumButtons; row += 4 {
		for btn := row; btn < row+4; btn++ {
			mark := " "
			if s.IsPressed(btn) {
				mark = "*"
			}
			fmt.Fprintf(&b, "%s%-9s", mark, btn)
		}
		b.WriteString("\n")
	}
	for a := Axis(0); a < NumAxes; a++ {
		if !s.Analog {
			fmt.Fprintf(&b, "%s [%s]   -\n", a, strings.Repeat(" ", barWidth))
			continue
		}
		v := s.Axis(a)
		n := (int(v)*barWidth + 128) / 256
		fmt.Fprintf(&b, "%s [%s%s] %3d\n", a,
			strings.Repeat("#", n), strings.Repeat(".", barWidth-n), v)
	}
	return b.String()
}
