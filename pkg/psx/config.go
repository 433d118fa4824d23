package psx

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/robotalks/psxpad/pkg/gpio"
	"github.com/robotalks/psxpad/pkg/gpio/periph"
)

// Config defines the configurations of a Session.
type Config struct {
	Pins gpio.PinSet
	// PollRate is the number of polls per second.
	PollRate         float64
	FailureThreshold int
	BackoffInterval  time.Duration
	ConfigBudget     time.Duration
	// ResetPulse is how long attention is held low before the first
	// identification. 0 disables it.
	ResetPulse time.Duration
	// JoinTimeout bounds the wait for the poller on Shutdown. 0 means
	// two intervals, at least 100ms.
	JoinTimeout time.Duration
	Timing      Timing
}

var defaultConfig = Config{
	Pins: gpio.PinSet{
		Clock:     "GPIO22",
		Command:   "GPIO18",
		Attention: "GPIO27",
		Data:      "GPIO17",
	},
	PollRate:         50,
	FailureThreshold: 5,
	BackoffInterval:  time.Second,
	ConfigBudget:     50 * time.Millisecond,
	ResetPulse:       10 * time.Millisecond,
	Timing:           TimingPS2,
}

const minJoinTimeout = 100 * time.Millisecond

func init() {
	if val := os.Getenv("PSX_PINS"); val != "" {
		if pins, err := gpio.ParsePinSet(val); err == nil {
			defaultConfig.Pins = pins
		}
	}
	if val := os.Getenv("PSX_TIMING"); val != "" {
		if t, err := ParseTiming(val); err == nil {
			defaultConfig.Timing = t
		}
	}
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.Var((*pinsFlag)(&defaultConfig.Pins), "pins", "Pin assignment, e.g. clk=GPIO22,cmd=GPIO18,att=GPIO27,dat=GPIO17[,ack=GPIO23].")
	flag.Float64Var(&defaultConfig.PollRate, "poll-rate", defaultConfig.PollRate, "Polls per second.")
	flag.IntVar(&defaultConfig.FailureThreshold, "fail-threshold", defaultConfig.FailureThreshold, "Consecutive failed polls before the pad is considered lost.")
	flag.DurationVar(&defaultConfig.BackoffInterval, "backoff", defaultConfig.BackoffInterval, "Interval between reconnect attempts.")
	flag.DurationVar(&defaultConfig.ConfigBudget, "config-budget", defaultConfig.ConfigBudget, "Time budget for switching the pad to analog mode.")
	flag.DurationVar(&defaultConfig.ResetPulse, "reset-pulse", defaultConfig.ResetPulse, "Attention pulse before the first identification, 0 to disable.")
	flag.Var((*timingFlag)(&defaultConfig.Timing), "timing", "Bus timing profile: ps1 or ps2.")
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

// Validate checks the config.
func (c *Config) Validate() error {
	if c.PollRate <= 0 {
		return fmt.Errorf("invalid poll rate %v", c.PollRate)
	}
	if c.FailureThreshold < 1 {
		return fmt.Errorf("invalid failure threshold %d", c.FailureThreshold)
	}
	if c.BackoffInterval <= 0 {
		return fmt.Errorf("invalid backoff interval %v", c.BackoffInterval)
	}
	return nil
}

// Period is the interval between polls.
func (c *Config) Period() time.Duration {
	return time.Duration(float64(time.Second) / c.PollRate)
}

func (c *Config) joinTimeout() time.Duration {
	if c.JoinTimeout > 0 {
		return c.JoinTimeout
	}
	d := c.Period()
	if c.BackoffInterval > d {
		d = c.BackoffInterval
	}
	if d *= 2; d < minJoinTimeout {
		d = minJoinTimeout
	}
	return d
}

// NewSession creates a Session owning port.
func (c *Config) NewSession(port gpio.Port) (*Session, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return newSession(*c, port)
}

// OpenSession opens the configured pins through the host GPIO driver and
// creates a Session on them. The pins are released on Shutdown.
func (c *Config) OpenSession() (*Session, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	port, err := periph.Open(c.Pins)
	if err != nil {
		return nil, err
	}
	s, err := newSession(*c, port)
	if err != nil {
		port.Close()
		return nil, err
	}
	return s, nil
}

type pinsFlag gpio.PinSet

func (f *pinsFlag) String() string {
	return (*gpio.PinSet)(f).String()
}

func (f *pinsFlag) Set(s string) error {
	pins, err := gpio.ParsePinSet(s)
	if err != nil {
		return err
	}
	*f = pinsFlag(pins)
	return nil
}

type timingFlag Timing

func (f *timingFlag) String() string {
	switch Timing(*f) {
	case TimingPS1:
		return "ps1"
	case TimingPS2:
		return "ps2"
	}
	return "custom"
}

func (f *timingFlag) Set(s string) error {
	t, err := ParseTiming(s)
	if err != nil {
		return err
	}
	*f = timingFlag(t)
	return nil
}
