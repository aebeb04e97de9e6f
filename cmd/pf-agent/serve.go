package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pfagent/internal/app"
)

// serveCmd returns the command that runs the HTTP API with the daily
// refresh scheduler.
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the license agent server",
		Long: `Serve runs the HTTP API and, unless disabled in the configuration, the
daily refresh scheduler. The server stops cleanly on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			app.Version = version
			application, err := app.NewApplicationWithConfig(ctx, cfg)
			if err != nil {
				return err
			}
			return application.Run(ctx)
		},
	}
}
