package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/waveline/internal/api"
	"github.com/waveline/internal/config"
)

// ServeCommand returns the CLI command for starting the API server
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the Waveline API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (overrides config)",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := config.LoadConfig(c.String("config"))
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			if port := c.Int("port"); port > 0 {
				cfg.Server.Port = port
			}

			server, err := api.NewServer(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize server: %w", err)
			}

			fmt.Printf("Starting Waveline API server on port %d...\n", cfg.Server.Port)
			return server.Start()
		},
	}
}
