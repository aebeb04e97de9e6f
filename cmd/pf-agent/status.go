package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pfagent/internal/domain"
	"pfagent/internal/services"
)

// statusCmd returns the command that prints the cached license inventory.
func statusCmd() *cobra.Command {
	var (
		instanceID string
		env        string
		statusName string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show cached license status",
		Long: `Status prints the cached license state. It never contacts the instances;
run refresh first for current data.

Examples:
  pf-agent status
  pf-agent status --instance pf-prod-1
  pf-agent status --env prod
  pf-agent status --status EXPIRED`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(cmd.Context(), func(service *services.LicenseService) error {
				ctx := cmd.Context()

				var (
					records []domain.LicenseRecord
					err     error
				)
				switch {
				case instanceID != "":
					var record *domain.LicenseRecord
					record, err = service.GetByInstance(ctx, instanceID)
					if err == nil {
						records = []domain.LicenseRecord{*record}
					}
				case env != "":
					records, err = service.GetByEnv(ctx, env)
				case statusName != "":
					records, err = service.GetByStatus(ctx, domain.Status(statusName))
				default:
					records, err = service.GetAll(ctx)
				}
				if err != nil {
					return err
				}
				if len(records) == 0 {
					fmt.Println("No cached licenses. Run 'pf-agent refresh' first.")
					return nil
				}

				printRecords(records)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&instanceID, "instance", "i", "", "Show a single instance")
	cmd.Flags().StringVarP(&env, "env", "e", "", "Filter by environment")
	cmd.Flags().StringVarP(&statusName, "status", "s", "", "Filter by status (OK, WARNING, EXPIRED)")
	return cmd
}

func printRecords(records []domain.LicenseRecord) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INSTANCE\tENV\tSTATUS\tEXPIRES\tDAYS\tISSUED TO\tSYNCED")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			rec.InstanceID, rec.Env, rec.Status, rec.ExpiryDate,
			rec.DaysToExpiry, rec.IssuedTo,
			rec.LastSyncedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()
}
