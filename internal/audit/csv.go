package audit

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"ausschreibungen/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var csvHeader = []string{
	"at", "action", "table", "row_pk", "actor_id", "actor_email",
	"ip", "user_agent", "request_id", "before", "after",
}

// WriteCSV renders entries as delimited text. A UTF-8 byte-order marker is
// written first so spreadsheet software picks the right encoding.
func WriteCSV(w io.Writer, entries []models.AuditEntry) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, e := range entries {
		row := []string{
			e.At.UTC().Format(time.RFC3339),
			e.Action,
			e.TableName,
			string(e.RowPK),
			formatInt(e.ActorUserID),
			deref(e.ActorEmail),
			deref(e.IP),
			deref(e.UserAgent),
			deref(e.RequestID),
			string(e.Before),
			string(e.After),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFilename names the download after the export moment, filesystem-safe.
func ExportFilename(now time.Time) string {
	return "audit_" + now.UTC().Format("2006-01-02-15-04-05") + ".csv"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatInt(n *int64) string {
	if n == nil {
		return ""
	}
	return strconv.FormatInt(*n, 10)
}
