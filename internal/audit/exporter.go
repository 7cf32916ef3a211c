package audit

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ems-platform/ems-backend/internal/db/models"
)

// MaxExportRows caps how many records a single export may contain, bounding
// memory and response size regardless of how broad the filter is.
const MaxExportRows = 10000

// csvHeader is the fixed export column order.
const csvHeader = "Timestamp,User,Email,Action,Resource Type,Resource Name,Endpoint,IP Address,Status Code\n"

// WriteCSV serializes records as CSV rows in the fixed column order, one row
// per record after a header row. The header is written even for an empty set.
// Commas in free-text fields are replaced with semicolons; the format has no
// quoting beyond that. At most MaxExportRows rows are written.
func WriteCSV(w io.Writer, logs []*models.AuditLog) error {
	if _, err := io.WriteString(w, csvHeader); err != nil {
		return err
	}

	if len(logs) > MaxExportRows {
		logs = logs[:MaxExportRows]
	}

	for _, log := range logs {
		row := strings.Join([]string{
			log.CreatedAt.UTC().Format(time.RFC3339),
			csvField(log.ActorName, "Unknown"),
			csvField(log.ActorEmail, "Unknown"),
			log.Action,
			log.ResourceType,
			csvField(deref(log.ResourceName), "N/A"),
			csvField(log.Endpoint, ""),
			csvField(deref(log.IPAddress), "N/A"),
			statusField(log.StatusCode),
		}, ",")
		if _, err := io.WriteString(w, row+"\n"); err != nil {
			return err
		}
	}

	return nil
}

// ExportFilename returns the attachment filename for an export taken at t.
func ExportFilename(t time.Time) string {
	return fmt.Sprintf("audit-logs-%d.csv", t.UnixMilli())
}

// csvField substitutes fallback for empty values and keeps the row structure
// intact by replacing commas with semicolons.
func csvField(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return strings.ReplaceAll(s, ",", ";")
}

func statusField(code *int) string {
	if code == nil {
		return "N/A"
	}
	return fmt.Sprintf("%d", *code)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
