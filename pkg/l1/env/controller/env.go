package controller

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/psxpad/pkg/l1"
	"github.com/robotalks/psxpad/pkg/l1/comm"
	"github.com/robotalks/psxpad/pkg/l1/comm/mqtt"
	"github.com/robotalks/psxpad/pkg/l1/comm/websocket"
	"github.com/robotalks/psxpad/pkg/l1/env"
)

// Config provides common options to publish a controller.
type Config struct {
	Info l1.ControllerInfo

	// MQTTBrokerURL specifies the MQTT broker to use.
	// e.g. mqtt://host:port/topic-prefix
	MQTTBrokerURL string
	// FeedAddr is the listen address of the websocket feed.
	FeedAddr string
}

var defaultConfig = Config{
	MQTTBrokerURL: "mqtt://localhost:1883/psx/",
}

func init() {
	if val := os.Getenv("PSX_MQTT_URL"); val != "" {
		defaultConfig.MQTTBrokerURL = val
	}
	if val := os.Getenv("PSX_FEED_ADDR"); val != "" {
		defaultConfig.FeedAddr = val
	}
	defaultConfig.Info.Ref.ID = env.MachineID("psxpad")
}

// SetupFlags sets command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.Info.Ref.Type, "type", defaultConfig.Info.Ref.Type, "Controller type")
	flag.StringVar(&defaultConfig.Info.Ref.ID, "id", defaultConfig.Info.Ref.ID, "Controller ID")
	flag.StringVar(&defaultConfig.MQTTBrokerURL, "mqtt", defaultConfig.MQTTBrokerURL, "MQTT broker URL, empty to disable")
	flag.StringVar(&defaultConfig.FeedAddr, "feed", defaultConfig.FeedAddr, "Websocket feed listen address, e.g. :8090, empty to disable")
}

// Default gets default config.
func Default() *Config {
	return &defaultConfig
}

// SetControllerType should be called in init with basic info about the controller.
func SetControllerType(typ string, meta l1.ControllerMeta) {
	defaultConfig.Info.Ref.Type = typ
	defaultConfig.Info.Meta = meta
}

// Env is the env for controllers.
type Env struct {
	Config       *Config
	RegistryURLs []string
	Registrar    *comm.RegistrarMux
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// NewEnv creates Env from config.
func (c *Config) NewEnv() (*Env, error) {
	if !c.Info.Ref.IsValid() {
		return nil, fmt.Errorf("controller type and id must be specified")
	}
	env := &Env{
		Config:    c,
		Registrar: &comm.RegistrarMux{},
	}
	if c.MQTTBrokerURL != "" {
		reg, err := mqtt.NewRegistrar(c.MQTTBrokerURL, c.Info)
		if err != nil {
			return nil, fmt.Errorf("create MQTT registrar error: %w", err)
		}
		env.Registrar.Add(reg)
		env.RegistryURLs = append(env.RegistryURLs, c.MQTTBrokerURL)
	}
	if c.FeedAddr != "" {
		env.Registrar.Add(websocket.NewHub(c.FeedAddr))
		env.RegistryURLs = append(env.RegistryURLs, "ws://"+c.FeedAddr)
	}
	if len(env.Registrar.Registrars) == 0 {
		glog.Warning("no registrar configured, events are not published")
	}
	return env, nil
}

// MustNewEnv creates Env and fails on error.
func (c *Config) MustNewEnv() *Env {
	env, err := c.NewEnv()
	if err != nil {
		log.Fatalln(err)
	}
	return env
}

// HandleCommands routes commands from all registrars to h.
func (e *Env) HandleCommands(h l1.CommandHandler) {
	e.Registrar.SetHandler(h)
}
