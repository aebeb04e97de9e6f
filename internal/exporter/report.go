package exporter

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"pfagent/internal/domain"
)

// reportHeaders is the column order shared by the xlsx and csv reports.
var reportHeaders = []string{
	"Instance ID", "Instance Name", "Env", "Issued To", "Product",
	"License Key ID", "Expiry Date", "Days To Expiry", "Status",
	"Last Synced At", "Source",
}

// Writer produces license inventory reports for operators.
type Writer struct {
	logger *slog.Logger
}

// NewWriter creates a report writer.
func NewWriter(logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{logger: logger}
}

// WriteWorkbook writes the cached license inventory to an xlsx workbook with
// a Licenses sheet and a per-status Summary sheet.
func (w *Writer) WriteWorkbook(path string, records []domain.LicenseRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Licenses"
	f.SetSheetName("Sheet1", sheet)

	for col, header := range reportHeaders {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("failed to compute header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to write header %q: %w", header, err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err == nil {
		lastCol, _ := excelize.CoordinatesToCellName(len(reportHeaders), 1)
		f.SetCellStyle(sheet, "A1", lastCol, headerStyle)
	}

	for i, rec := range records {
		row := i + 2
		values := []interface{}{
			rec.InstanceID, rec.InstanceName, rec.Env, rec.IssuedTo,
			rec.Product, rec.LicenseKeyID, rec.ExpiryDate, rec.DaysToExpiry,
			string(rec.Status), rec.LastSyncedAt.UTC().Format(time.RFC3339),
			string(rec.Source),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return fmt.Errorf("failed to compute cell for row %d: %w", row, err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("failed to write row %d: %w", row, err)
			}
		}
	}

	if err := w.writeSummarySheet(f, records); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}

	w.logger.Info("wrote license workbook",
		slog.String("path", path),
		slog.Int("record_count", len(records)))
	return nil
}

func (w *Writer) writeSummarySheet(f *excelize.File, records []domain.LicenseRecord) error {
	const sheet = "Summary"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	counts := map[domain.Status]int{}
	for _, rec := range records {
		counts[rec.Status]++
	}

	rows := [][]interface{}{
		{"Status", "Count"},
		{string(domain.StatusOK), counts[domain.StatusOK]},
		{string(domain.StatusWarning), counts[domain.StatusWarning]},
		{string(domain.StatusExpired), counts[domain.StatusExpired]},
		{"Total", len(records)},
	}
	for i, row := range rows {
		for col, value := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, i+1)
			if err != nil {
				return fmt.Errorf("failed to compute summary cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("failed to write summary row %d: %w", i+1, err)
			}
		}
	}
	return nil
}

// RecordRow renders one license record in the shared report column order.
func RecordRow(rec domain.LicenseRecord) []string {
	return []string{
		rec.InstanceID, rec.InstanceName, rec.Env, rec.IssuedTo,
		rec.Product, rec.LicenseKeyID, rec.ExpiryDate,
		strconv.Itoa(rec.DaysToExpiry), string(rec.Status),
		rec.LastSyncedAt.UTC().Format(time.RFC3339), string(rec.Source),
	}
}
