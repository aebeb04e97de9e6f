// Package main implements the pf-agent CLI for managing PingFederate
// licenses across an instance inventory.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pfagent/internal/app"
	"pfagent/internal/config"
	"pfagent/internal/services"
)

var version = "dev"

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:     "pf-agent",
		Short:   "PingFederate license agent",
		Long:    `pf-agent tracks, refreshes and applies PingFederate licenses across a configured instance inventory.`,
		Version: version,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to the YAML config file")

	rootCmd.AddCommand(refreshCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(applyCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(simulateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration from --config, falling back to the
// PFAGENT_CONFIG_FILE environment variable.
func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.LoadFrom(configFile)
	}
	return config.Load()
}

// withPipeline builds the service graph, runs fn and releases the storage
// backend afterwards.
func withPipeline(ctx context.Context, fn func(*services.LicenseService) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	service, closer, err := app.NewPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer(ctx)

	return fn(service)
}
