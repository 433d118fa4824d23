package comm

import (
	"context"

	fx "github.com/robotalks/psxpad/pkg/framework"
	"github.com/robotalks/psxpad/pkg/l1"
	"github.com/robotalks/psxpad/pkg/l1/msgs"
)

// Registrar implements l1.Registrar with Pipe and dispatches received
// commands to Handler.
type Registrar struct {
	Handler l1.CommandHandler

	pipe Pipe
}

// Init initializes the Registrar with defaults.
func (r *Registrar) Init(rw PacketReadWriter) {
	r.pipe.ReadWriter = rw
	r.pipe.Handler = msgs.HandleTypedMsgFunc(func(ctx context.Context, msg fx.Message, typed *msgs.Typed) error {
		if !typed.IsCommand() || typed.IsReply() {
			return nil
		}
		cmd := &command{seq: typed.Sequence, msg: msg, pipe: &r.pipe}
		handler := r.Handler
		if handler == nil {
			handler = UnsupportedCommands
		}
		handler.HandleCommand(ctx, cmd)
		return nil
	})
}

// SetHandler sets the command handler.
func (r *Registrar) SetHandler(h l1.CommandHandler) {
	r.Handler = h
}

// SendEvent implements Registrar.
func (r *Registrar) SendEvent(ctx context.Context, msg fx.Message) error {
	return r.pipe.SendEventMsg(msg)
}

// Run implements Runnable.
func (r *Registrar) Run(ctx context.Context) error {
	return r.pipe.Run(ctx)
}

type command struct {
	seq  uint32
	msg  fx.Message
	pipe *Pipe
}

func (c *command) Msg() fx.Message {
	return c.msg
}

func (c *command) Done(msg fx.Message) error {
	return c.pipe.SendCommandMsg(msg, c.seq)
}

// RegistrarMux registers a controller with multiple Registrars.
type RegistrarMux struct {
	Registrars []l1.Registrar
}

// SendEvent implements Registrar.
func (r *RegistrarMux) SendEvent(ctx context.Context, msg fx.Message) error {
	var errs fx.AggregatedError
	for _, reg := range r.Registrars {
		errs.Add(reg.SendEvent(ctx, msg))
	}
	return errs.Aggregate()
}

// Run implements Runnable and runs all Registrars which are Runnable.
func (r *RegistrarMux) Run(ctx context.Context) error {
	runner := fx.NewRunnerWith(ctx)
	for _, reg := range r.Registrars {
		if runnable, ok := reg.(fx.Runnable); ok {
			runner.Go(runnable)
		}
	}
	return runner.Wait()
}

// Add adds more registrars.
func (r *RegistrarMux) Add(regs ...l1.Registrar) {
	r.Registrars = append(r.Registrars, regs...)
}

// SetHandler sets the command handler on all Registrars accepting one.
func (r *RegistrarMux) SetHandler(h l1.CommandHandler) {
	for _, reg := range r.Registrars {
		if setter, ok := reg.(interface{ SetHandler(l1.CommandHandler) }); ok {
			setter.SetHandler(h)
		}
	}
}

// UnsupportedCommands replies every command as unsupported.
var UnsupportedCommands = l1.HandleCommandFunc(func(_ context.Context, cmd l1.Command) {
	cmd.Done(msgs.NewCommandErr(msgs.ErrUnsupportedCommand))
})
