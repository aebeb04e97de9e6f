// Package main runs a mock PingFederate admin API for local development
// and testing of the license pipeline.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pfagent/internal/simulator"
)

var version = "dev"

func main() {
	var (
		port      int
		instances string
	)

	rootCmd := &cobra.Command{
		Use:     "pingfed-sim",
		Short:   "Mock PingFederate admin API",
		Version: version,
		Long: `pingfed-sim serves a mock PingFederate admin API with seeded licenses
for the configured instances. Credentials match PingFederate defaults
(Administrator / 2FederateM0re) and every authenticated request must carry
the X-XSRF-Header header.

Examples:
  pingfed-sim --port 9031
  pingfed-sim --instances pf-dev-1,pf-stage-2,pf-prod-3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

			ids := strings.Split(instances, ",")
			for i := range ids {
				ids[i] = strings.TrimSpace(ids[i])
			}

			sim := simulator.New(ids, logger)
			server := &http.Server{
				Addr:         fmt.Sprintf(":%d", port),
				Handler:      sim.Routes(),
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("simulator listening",
					slog.String("addr", server.Addr),
					slog.Any("instances", ids))
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	rootCmd.Flags().IntVarP(&port, "port", "p", 9031, "Listen port")
	rootCmd.Flags().StringVar(&instances, "instances", "pf-dev-1,pf-stage-2,pf-prod-3", "Comma separated instance ids to seed")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
