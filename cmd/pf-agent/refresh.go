package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pfagent/internal/services"
)

// refreshCmd returns the command that pulls current license state from the
// instance endpoints into the cache.
func refreshCmd() *cobra.Command {
	var instanceID string

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh cached license state from the instances",
		Long: `Refresh pulls the current license from each configured instance's admin
API, derives its status and updates the cache and the audit trail.

Examples:
  pf-agent refresh
  pf-agent refresh --instance pf-prod-1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(cmd.Context(), func(service *services.LicenseService) error {
				if instanceID != "" {
					summary, err := service.RefreshOne(cmd.Context(), instanceID)
					if err != nil {
						return err
					}
					fmt.Printf("%s: %s (expires %s, %d days)\n",
						summary.InstanceID, summary.Status, summary.ExpiryDate, summary.DaysToExpiry)
					return nil
				}

				report, err := service.RefreshAll(cmd.Context())
				if err != nil {
					return err
				}
				for _, summary := range report.Succeeded {
					fmt.Printf("%s: %s (expires %s, %d days)\n",
						summary.InstanceID, summary.Status, summary.ExpiryDate, summary.DaysToExpiry)
				}
				for _, skipped := range report.Skipped {
					fmt.Printf("%s: SKIPPED (%s)\n", skipped.InstanceID, skipped.Error)
				}
				if len(report.Skipped) > 0 {
					return fmt.Errorf("%d of %d instances failed to refresh",
						len(report.Skipped), len(report.Succeeded)+len(report.Skipped))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&instanceID, "instance", "i", "", "Refresh a single instance")
	return cmd
}
