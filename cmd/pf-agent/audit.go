package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pfagent/internal/services"
)

// auditCmd returns the command that prints recent audit trail entries.
func auditCmd() *cobra.Command {
	var (
		instanceID string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent audit trail entries",
		Long: `Audit prints the most recent refresh and apply operations, newest first.

Examples:
  pf-agent audit
  pf-agent audit --instance pf-prod-1 --limit 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(cmd.Context(), func(service *services.LicenseService) error {
				records, err := service.RecentAudit(cmd.Context(), instanceID, limit)
				if err != nil {
					return err
				}
				if len(records) == 0 {
					fmt.Println("No audit entries.")
					return nil
				}

				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "TIMESTAMP\tACTOR\tACTION\tINSTANCE\tDETAILS")
				for _, rec := range records {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\n",
						rec.Timestamp.Format("2006-01-02 15:04:05"),
						rec.Actor, rec.Action, rec.InstanceID, rec.Details)
				}
				return w.Flush()
			})
		},
	}

	cmd.Flags().StringVarP(&instanceID, "instance", "i", "", "Filter by instance")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum entries to show")
	return cmd
}
