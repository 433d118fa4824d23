// Package pad provides shell commands for pads, either on local pins or
// published by a remote psxd.
package pad

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/psxpad/pkg/cli/sh"
	"github.com/robotalks/psxpad/pkg/psx"
	"github.com/robotalks/psxpad/pkg/psx/msgs"
	"github.com/robotalks/psxpad/pkg/psx/psxsim"
)

// OpenLocal creates a session from args: no args opens the configured
// pins, "sim [CODE]" attaches a simulated pad.
func OpenLocal(args []string) (*psx.Session, error) {
	if len(args) == 0 {
		return psx.Default().OpenSession()
	}
	if args[0] != "sim" {
		return nil, fmt.Errorf("unknown port %q", args[0])
	}
	id := psxsim.IDAnalogRed
	if len(args) > 1 {
		code, err := strconv.ParseUint(args[1], 0, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid device code %q: %w", args[1], err)
		}
		id = byte(code)
	}
	return psx.Default().NewSession(psxsim.New(id))
}

func printState(c *ishell.Context, st psx.State) {
	if sh.ShellFrom(c).OutputJSON {
		sh.Print(c, msgs.StateFrom(st))
		return
	}
	c.Print(st.Format())
}

func changed(a, b *psx.State) bool {
	if a.Connected != b.Connected || a.Snapshot.Buttons != b.Snapshot.Buttons {
		return true
	}
	for n := psx.Axis(0); n < psx.NumAxes; n++ {
		if a.Axis(n) != b.Axis(n) {
			return true
		}
	}
	return false
}

var (
	// OpenCmd opens a local session.
	OpenCmd = ishell.Cmd{
		Name:    "pad.open",
		Aliases: []string{"open"},
		Help:    "[sim [CODE]]",
		Func: func(c *ishell.Context) {
			session, err := OpenLocal(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			if err := sh.ShellFrom(c).SetLocal(session); err != nil {
				c.Err(err)
			}
		},
	}

	// ConnectCmd negotiates the local pad and starts polling.
	ConnectCmd = ishell.Cmd{
		Name:    "pad.connect",
		Aliases: []string{"pc"},
		Help:    "",
		Func: sh.MustHaveSession(func(c *ishell.Context, s *psx.Session) {
			err := s.Connect()
			if errors.Is(err, psx.ErrUnsupportedDevice) {
				c.Printf("warning: %v\n", err)
				err = nil
			}
			if err != nil {
				c.Err(err)
				return
			}
			stats, _ := s.Stats()
			c.Printf("connected %s\n", stats.Mode)
		}),
	}

	// StateCmd prints the local pad state.
	StateCmd = ishell.Cmd{
		Name:    "pad.state",
		Aliases: []string{"ps"},
		Help:    "",
		Func: sh.MustHaveSession(func(c *ishell.Context, s *psx.Session) {
			st, err := s.State()
			if err != nil {
				c.Err(err)
				return
			}
			printState(c, st)
		}),
	}

	// PressedCmd tells whether buttons are held down.
	PressedCmd = ishell.Cmd{
		Name:    "pad.pressed",
		Aliases: []string{"pp"},
		Help:    "BUTTON...",
		Func: sh.MustHaveSession(func(c *ishell.Context, s *psx.Session) {
			if len(c.Args) == 0 {
				c.Err(fmt.Errorf("button expected"))
				return
			}
			for _, arg := range c.Args {
				b, err := psx.ParseButton(arg)
				if err != nil {
					c.Err(err)
					return
				}
				pressed, err := s.IsPressed(b)
				if err != nil {
					c.Err(err)
					return
				}
				c.Printf("%s %v\n", b, pressed)
			}
		}),
	}

	// AxisCmd prints stick positions.
	AxisCmd = ishell.Cmd{
		Name:    "pad.axis",
		Aliases: []string{"pa"},
		Help:    "[AXIS...]",
		Func: sh.MustHaveSession(func(c *ishell.Context, s *psx.Session) {
			axes := make([]psx.Axis, 0, psx.NumAxes)
			for _, arg := range c.Args {
				a, err := psx.ParseAxis(arg)
				if err != nil {
					c.Err(err)
					return
				}
				axes = append(axes, a)
			}
			if len(axes) == 0 {
				for a := psx.Axis(0); a < psx.NumAxes; a++ {
					axes = append(axes, a)
				}
			}
			for _, a := range axes {
				val, err := s.Axis(a)
				if err != nil {
					c.Err(err)
					return
				}
				c.Printf("%s %d\n", a, val)
			}
		}),
	}

	// StatsCmd prints the local session counters.
	StatsCmd = ishell.Cmd{
		Name:    "pad.stats",
		Aliases: []string{"pst"},
		Help:    "",
		Func: sh.MustHaveSession(func(c *ishell.Context, s *psx.Session) {
			stats, err := s.Stats()
			if err != nil {
				c.Err(err)
				return
			}
			sh.Print(c, msgs.StatusFrom(stats, nil))
		}),
	}

	// WatchCmd prints the state on every change.
	WatchCmd = ishell.Cmd{
		Name:    "pad.watch",
		Aliases: []string{"pw"},
		Help:    "[DURATION]",
		Func: sh.MustHaveSession(func(c *ishell.Context, s *psx.Session) {
			d := 10 * time.Second
			if len(c.Args) > 0 {
				var err error
				if d, err = time.ParseDuration(c.Args[0]); err != nil {
					c.Err(err)
					return
				}
			}
			var last *psx.State
			deadline := time.Now().Add(d)
			for time.Now().Before(deadline) {
				st, err := s.State()
				if err != nil {
					c.Err(err)
					return
				}
				if last == nil || changed(last, &st) {
					printState(c, st)
					last = &st
				}
				time.Sleep(100 * time.Millisecond)
			}
		}),
	}

	// ShutdownCmd shuts the local session down.
	ShutdownCmd = ishell.Cmd{
		Name:    "pad.shutdown",
		Aliases: []string{"close"},
		Help:    "",
		Func: sh.MustHaveSession(func(c *ishell.Context, s *psx.Session) {
			if err := sh.ShellFrom(c).SetLocal(nil); err != nil {
				c.Err(err)
			}
		}),
	}

	// StatusCmd queries the status of a remote pad.
	StatusCmd = ishell.Cmd{
		Name:    "pad.status",
		Aliases: []string{"status"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			res, err := sh.DoCommand(c, &msgs.PadStatusQuery{})
			if err != nil {
				return
			}
			reply, ok := res.(*msgs.PadStatusReply)
			if !ok || sh.ShellFrom(c).OutputJSON || reply.State == nil {
				sh.Print(c, res)
				return
			}
			sh.Print(c, reply.Status)
			st := reply.State.ToState()
			c.Print(st.Format())
		}),
	}

	// ReconnectCmd asks a remote pad to renegotiate.
	ReconnectCmd = ishell.Cmd{
		Name:    "pad.reconnect",
		Aliases: []string{"reconnect"},
		Help:    "",
		Func: sh.MustBeConnected(func(c *ishell.Context) {
			if res, err := sh.DoCommand(c, &msgs.PadReconnect{}); err == nil {
				sh.Print(c, res)
			}
		}),
	}
)

func init() {
	sh.AddCmds(
		&OpenCmd,
		&ConnectCmd,
		&StateCmd,
		&PressedCmd,
		&AxisCmd,
		&StatsCmd,
		&WatchCmd,
		&ShutdownCmd,
		&StatusCmd,
		&ReconnectCmd,
	)
}
