package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/waveline/cmd"
	"github.com/waveline/internal/logging"
)

const (
	version = "0.3.0"
)

func main() {
	logging.Setup()
	app := &cli.App{
		Name:    "waveline",
		Usage:   "Multi-tenant WhatsApp CRM and automation platform",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
				Value:   "waveline.toml",
			},
		},
		Commands: []*cli.Command{
			cmd.ServeCommand(),
			cmd.ConfigCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
