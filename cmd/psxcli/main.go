package main

import (
	"github.com/robotalks/psxpad/pkg/cli/sh"
	env "github.com/robotalks/psxpad/pkg/l1/env/connector"
	"github.com/robotalks/psxpad/pkg/psx"

	_ "github.com/robotalks/psxpad/pkg/cli/cmds/pad"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
	psx.SetupFlags()
}

func main() {
	sh.Main()
}
