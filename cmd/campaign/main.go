// Command campaign runs the fundraising campaign service and its one-shot
// chain commands.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"stacks-fundraising/internal/config"
)

var Version = "dev"

func main() {
	app := cli.NewApp()
	app.Name = "campaign"
	app.Version = Version
	app.Usage = "fundraising campaign core for Stacks"
	app.Flags = []cli.Flag{networkFlag, apiURLFlag, logLevelFlag}
	app.Commands = append(
		app.Commands,
		&serveCommand,
		&infoCommand,
		&purchaseStatusCommand,
		&buildCommand,
		&submitCommand,
		&walletsCommand,
	)
	app.Before = func(ctx *cli.Context) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if ctx.IsSet(networkFlag.Name) {
			cfg.Network = ctx.String(networkFlag.Name)
		}
		if ctx.IsSet(apiURLFlag.Name) {
			cfg.APIURL = ctx.String(apiURLFlag.Name)
		}
		if ctx.IsSet(logLevelFlag.Name) {
			cfg.LogLevel = ctx.String(logLevelFlag.Name)
		}
		cfg.SetupLogging()
		ctx.App.Metadata = map[string]any{configKey: cfg}
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, fmt.Errorf("error: %v", err))
		os.Exit(1)
	}
}

const configKey = "config"

func getConfig(ctx *cli.Context) *config.Config {
	cfg, ok := ctx.App.Metadata[configKey].(*config.Config)
	if !ok {
		log.Fatal("configuration not loaded")
	}
	return cfg
}
