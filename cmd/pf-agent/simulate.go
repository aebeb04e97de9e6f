package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pfagent/internal/simulator"
)

// simulateCmd returns the command that runs the mock PingFederate admin API
// in-process. The standalone pingfed-sim binary does the same thing.
func simulateCmd() *cobra.Command {
	var (
		port      int
		instances string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a mock PingFederate admin API",
		Long: `Simulate serves a mock PingFederate admin API with seeded licenses, for
exercising the pipeline without real instances.

Examples:
  pf-agent simulate --port 9031 --instances pf-dev-1,pf-stage-2`,
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

			logger.Info("simulator listening",
				slog.String("addr", server.Addr),
				slog.Any("instances", ids))
			return server.ListenAndServe()
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 9031, "Listen port")
	cmd.Flags().StringVar(&instances, "instances", "pf-dev-1,pf-stage-2,pf-prod-3", "Comma separated instance ids to seed")
	return cmd
}
