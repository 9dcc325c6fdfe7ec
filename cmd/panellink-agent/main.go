package main

import (
	"os"

	_ "go.uber.org/automaxprocs"
	"k8s.io/apiserver/pkg/server"

	"github.com/autopeer-io/panellink/cmd/panellink-agent/app"
)

func main() {
	ctx := server.SetupSignalContext()
	if err := app.NewAgentCommand(ctx).Execute(); err != nil {
		os.Exit(1)
	}
}
