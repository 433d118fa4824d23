package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"errors"
	"flag"
	"log"
	"strconv"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/psxpad/pkg/framework"
	"github.com/robotalks/psxpad/pkg/l1"
	env "github.com/robotalks/psxpad/pkg/l1/env/controller"
	"github.com/robotalks/psxpad/pkg/psx"
	"github.com/robotalks/psxpad/pkg/psx/bridge"
	"github.com/robotalks/psxpad/pkg/psx/psxsim"
)

var simID string

func init() {
	env.SetControllerType("psxpad", l1.ControllerMeta{Description: "PlayStation Game Pad"})
	env.SetupFlags()
	psx.SetupFlags()
	bridge.SetupFlags()
	flag.StringVar(&simID, "sim", simID, "Attach a simulated pad reporting this device code instead of the pins, e.g. 0x73.")
}

func openSession() (*psx.Session, error) {
	if simID == "" {
		return psx.Default().OpenSession()
	}
	code, err := strconv.ParseUint(simID, 0, 8)
	if err != nil {
		return nil, err
	}
	return psx.Default().NewSession(psxsim.New(byte(code)))
}

// connectFunc keeps connecting until a pad answers. Once connected the
// session recovers lost links on its own.
func connectFunc(session *psx.Session) framework.RunFunc {
	return func(ctx context.Context) error {
		ticker := time.NewTicker(psx.Default().BackoffInterval)
		defer ticker.Stop()
		for {
			err := session.Connect()
			switch {
			case err == nil:
				return nil
			case errors.Is(err, psx.ErrUnsupportedDevice):
				glog.Warning(err)
				return nil
			case !errors.Is(err, psx.ErrNoResponse):
				return err
			}
			glog.V(2).Info("waiting for pad")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	}
}

func main() {
	flag.Parse()

	env := env.NewConfig().MustNewEnv()
	session, err := openSession()
	if err != nil {
		log.Fatalln(err)
	}
	b := bridge.NewConfig().NewBridge(session, env.Registrar)
	env.HandleCommands(b)

	err = framework.NewRunner().HandleSignals().Go(env.Registrar, b, framework.NamedRun("psx-connect", connectFunc(session))).Wait()
	if shutdownErr := session.Shutdown(); shutdownErr != nil {
		glog.Error(shutdownErr)
	}
	if err != nil {
		log.Fatalln(err)
	}
}
