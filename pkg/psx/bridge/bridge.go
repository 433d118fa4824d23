// Package bridge publishes a Session to registrars: pad state and status
// go out as events, status queries and reconnect requests come in as
// commands.
package bridge

import (
	"context"
	"errors"
	"flag"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/psxpad/pkg/l1"
	"github.com/robotalks/psxpad/pkg/l1/comm"
	l1msgs "github.com/robotalks/psxpad/pkg/l1/msgs"
	"github.com/robotalks/psxpad/pkg/psx"
	"github.com/robotalks/psxpad/pkg/psx/msgs"
)

// Config defines the configurations of the bridge.
type Config struct {
	// StatePeriod is how often the state is sampled for changes.
	StatePeriod time.Duration
	// StatusInterval is how often the status is published regardless of
	// changes.
	StatusInterval time.Duration
}

var defaultConfig = Config{
	StatePeriod:    20 * time.Millisecond,
	StatusInterval: 5 * time.Second,
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.DurationVar(&defaultConfig.StatePeriod, "state-period", defaultConfig.StatePeriod, "Interval sampling the pad state for changes.")
	flag.DurationVar(&defaultConfig.StatusInterval, "status-interval", defaultConfig.StatusInterval, "Interval publishing the pad status.")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a config with defaults.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// NewBridge creates a Bridge using the config.
func (c *Config) NewBridge(s *psx.Session, reg l1.Registrar) *Bridge {
	b := NewBridge(s, reg)
	b.StatePeriod = c.StatePeriod
	b.StatusInterval = c.StatusInterval
	return b
}

type change struct {
	state psx.State
	cause error
}

// Bridge publishes a Session.
type Bridge struct {
	Session        *psx.Session
	Registrar      l1.Registrar
	StatePeriod    time.Duration
	StatusInterval time.Duration

	changes chan change
	last    *psx.State
}

// NewBridge creates a Bridge and hooks it as the session notifier.
func NewBridge(s *psx.Session, reg l1.Registrar) *Bridge {
	b := &Bridge{
		Session:        s,
		Registrar:      reg,
		StatePeriod:    defaultConfig.StatePeriod,
		StatusInterval: defaultConfig.StatusInterval,
		changes:        make(chan change, 8),
	}
	s.Notifier = b
	return b
}

// Name implements framework.Named.
func (b *Bridge) Name() string {
	return "psx-bridge"
}

// StateChanged implements psx.StateNotifier. It's called on the poller
// goroutine, so only queues the change.
func (b *Bridge) StateChanged(state psx.State, cause error) {
	select {
	case b.changes <- change{state: state, cause: cause}:
	default:
		glog.Warning("bridge: connection change dropped")
	}
}

// Run implements Runnable.
func (b *Bridge) Run(ctx context.Context) error {
	stateTicker := time.NewTicker(b.StatePeriod)
	defer stateTicker.Stop()
	statusTicker := time.NewTicker(b.StatusInterval)
	defer statusTicker.Stop()
	for {
		var err error
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-b.changes:
			err = b.publishStatus(ctx, c.cause)
		case <-statusTicker.C:
			err = b.publishStatus(ctx, nil)
		case <-stateTicker.C:
			err = b.publishState(ctx)
		}
		if errors.Is(err, psx.ErrSessionClosed) {
			return err
		}
		if err != nil {
			glog.Warningf("bridge: publish failed: %v", err)
		}
	}
}

func (b *Bridge) publishStatus(ctx context.Context, cause error) error {
	stats, err := b.Session.Stats()
	if err != nil {
		return err
	}
	return b.Registrar.SendEvent(ctx, msgs.StatusFrom(stats, cause))
}

// publishState sends the state when it differs from the last one sent.
// Edges are relative to the last sent state so transitions between two
// samples are not lost.
func (b *Bridge) publishState(ctx context.Context) error {
	st, err := b.Session.State()
	if err != nil {
		return err
	}
	if b.last != nil && !differs(b.last, &st) {
		return nil
	}
	if b.last != nil {
		st.Edges = psx.EdgesBetween(b.last.Snapshot, st.Snapshot)
	}
	b.last = &st
	return b.Registrar.SendEvent(ctx, msgs.StateFrom(st))
}

func differs(a, b *psx.State) bool {
	if a.Connected != b.Connected || a.Analog != b.Analog || a.Mode != b.Mode {
		return true
	}
	if a.Snapshot.Buttons != b.Snapshot.Buttons {
		return true
	}
	for n := psx.Axis(0); n < psx.NumAxes; n++ {
		if a.Axis(n) != b.Axis(n) {
			return true
		}
	}
	return false
}

// HandleCommand implements l1.CommandHandler.
func (b *Bridge) HandleCommand(ctx context.Context, cmd l1.Command) {
	switch cmd.Msg().(type) {
	case *msgs.PadStatusQuery:
		stats, err := b.Session.Stats()
		if err != nil {
			cmd.Done(l1msgs.NewCommandErr(err))
			return
		}
		st, _ := b.Session.State()
		cmd.Done(&msgs.PadStatusReply{
			Status: msgs.StatusFrom(stats, nil),
			State:  msgs.StateFrom(st),
		})
	case *msgs.PadReconnect:
		if err := b.Session.Connect(); err != nil && !errors.Is(err, psx.ErrUnsupportedDevice) {
			cmd.Done(l1msgs.NewCommandErr(err))
			return
		}
		cmd.Done(l1msgs.NewCommandOK())
	default:
		comm.UnsupportedCommands.HandleCommand(ctx, cmd)
	}
}
