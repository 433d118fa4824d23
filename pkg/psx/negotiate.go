package psx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"
)

// Link is the outcome of a negotiation.
type Link struct {
	Mode   DeviceMode
	Analog bool
	// Warning is set when the extended mode sequence failed and the link
	// was downgraded to digital reporting.
	Warning error
}

// PollLen is the poll payload length for the link.
func (l Link) PollLen() int {
	if l.Analog {
		return analogPollLen
	}
	return digitalPollLen
}

// Negotiator identifies the pad and switches it to extended reporting.
type Negotiator struct {
	Frames *FrameExchange
	// Budget bounds the extended mode sequence.
	Budget time.Duration

	now func() time.Time
}

// NewNegotiator creates a Negotiator.
func NewNegotiator(frames *FrameExchange, budget time.Duration) *Negotiator {
	return &Negotiator{Frames: frames, Budget: budget, now: time.Now}
}

// Identify asks the pad for its identification code. An unknown code is
// returned as ModeOther together with an *UnsupportedDeviceError.
func (n *Negotiator) Identify() (DeviceMode, error) {
	resp, err := n.Frames.Exchange(CmdIdentify, 2)
	if err == nil && resp[0] == StatusConfig {
		// left in configuration mode by an interrupted sequence.
		glog.V(2).Info("pad in configuration mode, leaving it")
		n.exitConfig()
		resp, err = n.Frames.Exchange(CmdIdentify, 2)
	}
	if err != nil {
		return ModeUnknown, fmt.Errorf("%w: %v", ErrNoResponse, err)
	}
	if resp[1] != FrameMarker {
		return ModeUnknown, fmt.Errorf("%w: bad marker 0x%02x", ErrNoResponse, resp[1])
	}
	mode := ModeFromCode(resp[0])
	if !mode.IsKnown() {
		return mode, &UnsupportedDeviceError{Code: resp[0]}
	}
	return mode, nil
}

type configStep struct {
	name    string
	cmd     byte
	payload []byte
}

var extendedSequence = []configStep{
	{"enter config", CmdConfig, enterConfigPayload},
	{"set analog mode", CmdSetMode, setAnalogPayload},
	{"exit config", CmdConfig, exitConfigPayload},
}

// EnableExtended runs the enter-config, set-mode, exit-config sequence.
// On failure the pad is asked to leave configuration mode so it keeps
// reporting digitally.
func (n *Negotiator) EnableExtended() (err error) {
	start := n.clock()
	defer func() {
		if err != nil {
			n.exitConfig()
		}
	}()
	for _, step := range extendedSequence {
		resp, err := n.Frames.ExchangeWith(step.cmd, step.payload, len(step.payload))
		if err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
		if step.cmd == CmdSetMode && resp[0] != StatusConfig {
			return fmt.Errorf("%s: %w (status 0x%02x)", step.name, ErrConfigRejected, resp[0])
		}
		if elapsed := n.clock().Sub(start); n.Budget > 0 && elapsed > n.Budget {
			return fmt.Errorf("%s: %w after %v", step.name, ErrConfigurationTimeout, elapsed)
		}
	}
	return nil
}

// Negotiate identifies the pad and enables extended reporting when the pad
// supports it. Running it again on a negotiated pad yields the same Link.
func (n *Negotiator) Negotiate() (Link, error) {
	mode, err := n.Identify()
	link := Link{Mode: mode}
	if err != nil {
		if errors.Is(err, ErrUnsupportedDevice) {
			return link, err
		}
		return Link{}, err
	}
	if mode.AnalogCapable() {
		if err := n.EnableExtended(); err != nil {
			glog.Warningf("pad %s: extended mode unavailable, reporting digitally: %v", mode, err)
			link.Warning = err
		} else {
			link.Analog = true
		}
	}
	return link, nil
}

func (n *Negotiator) exitConfig() {
	n.Frames.ExchangeWith(CmdConfig, exitConfigPayload, len(exitConfigPayload))
}

func (n *Negotiator) clock() time.Time {
	if n.now != nil {
		return n.now()
	}
	return time.Now()
}
