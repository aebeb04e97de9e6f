package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"pfagent/internal/exporter"
	"pfagent/internal/services"
)

// exportCmd returns the command that writes the cached inventory to a
// report file.
func exportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the cached license inventory to a report file",
		Long: `Export writes the cached license inventory to an xlsx workbook or a csv
file, chosen by the output file extension.

Examples:
  pf-agent export --out reports/licenses.xlsx
  pf-agent export --out reports/licenses.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPipeline(cmd.Context(), func(service *services.LicenseService) error {
				records, err := service.GetAll(cmd.Context())
				if err != nil {
					return err
				}

				writer := exporter.NewWriter(slog.Default())
				switch {
				case strings.HasSuffix(out, ".xlsx"):
					err = writer.WriteWorkbook(out, records)
				case strings.HasSuffix(out, ".csv"):
					err = writer.WriteCSV(out, records)
				default:
					return fmt.Errorf("unsupported output format: %s (use .xlsx or .csv)", out)
				}
				if err != nil {
					return err
				}
				fmt.Printf("Wrote %d records to %s\n", len(records), out)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "licenses.xlsx", "Output file (.xlsx or .csv)")
	return cmd
}
