// Package audit exports the status engine's tables to monthly Excel
// workbooks for offline review, and optionally prunes long-expired
// override rows.
package audit

import (
	"context"
	"fmt"
	"io"
	"time"
)

// TableExporter provides access to database tables for export.
type TableExporter interface {
	GetTableNames(ctx context.Context) ([]string, error)
	GetTableData(ctx context.Context, tableName string) ([]map[string]interface{}, []string, error)
}

// ExcelWriter writes tabular data into a workbook.
type ExcelWriter interface {
	AddSheet(name string) error
	WriteHeader(columns []string) error
	WriteRow(row []interface{}) error
	Save(w io.Writer) error
	SaveToFile(path string) error
}

// Cleaner prunes aged-out rows after a successful export.
type Cleaner interface {
	// PurgeExpiredOverrides deletes overrides expired for longer than
	// olderThan and returns the number of rows removed.
	PurgeExpiredOverrides(ctx context.Context, olderThan time.Duration) (int64, error)
}

// ReportFilename names the workbook for the month containing t,
// like "status_audit_2026-08.xlsx".
func ReportFilename(t time.Time) string {
	return fmt.Sprintf("status_audit_%s.xlsx", t.Format("2006-01"))
}

// PreviousMonthFilename names the report generated on the 1st for the
// month that just ended.
func PreviousMonthFilename(now time.Time) string {
	return ReportFilename(now.AddDate(0, -1, 0))
}
