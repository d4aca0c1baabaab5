package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"ausschreibungen/db"
	"ausschreibungen/internal/audit"
	"ausschreibungen/internal/auth"
)

func parseAuditFilter(r *http.Request) db.AuditFilter {
	q := r.URL.Query()
	var f db.AuditFilter

	if from := parseTimestamp(q.Get("from")); from != nil {
		f.From = from
	}
	if to := parseTimestamp(q.Get("to")); to != nil {
		f.To = to
	}
	f.Actions = splitCSV(q.Get("action"))
	f.Tables = splitCSV(q.Get("table"))
	if actor := q.Get("actor"); actor != "" {
		if id, err := strconv.ParseInt(actor, 10, 64); err == nil {
			f.ActorID = &id
		} else {
			f.ActorEmail = actor
		}
	}
	f.PK = q.Get("pk")
	f.Query = q.Get("query")
	return f
}

func parseTimestamp(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// AuditQueryHandler returns a filtered, paginated page of audit entries,
// newest first, with the total match count.
func (h *Handler) AuditQueryHandler(w http.ResponseWriter, r *http.Request) {
	f := parseAuditFilter(r)

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= 100 {
			limit = n
		}
	}
	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			offset = n
		}
	}

	entries, total, err := h.Store.QueryAudit(r.Context(), f, limit, offset)
	if err != nil {
		h.writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":   entries,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// AuditExportHandler streams the complete (capped) match set as CSV with a
// UTF-8 BOM for spreadsheet compatibility. The export itself is audited.
func (h *Handler) AuditExportHandler(w http.ResponseWriter, r *http.Request) {
	f := parseAuditFilter(r)

	max := h.ExportMax
	if s := r.URL.Query().Get("max"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 1 && n < max {
			max = n
		}
	}

	entries, err := h.Store.ExportAudit(r.Context(), f, max)
	if err != nil {
		h.writeTaxonomyError(w, err)
		return
	}

	actor, _ := auth.FromContext(r.Context())
	h.Audit.Record(r.Context(), audit.Input{
		Action: audit.ActionExport,
		Table:  "audit_log",
		RowPK:  map[string]any{"export": "csv"},
		After:  map[string]any{"rows": len(entries)},
		Actor:  actor,
		Meta:   audit.RequestMeta(r),
	})

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+audit.ExportFilename(time.Now())+`"`)
	w.WriteHeader(http.StatusOK)
	if err := audit.WriteCSV(w, entries); err != nil {
		h.log.Error("audit export write failed", "err", err)
	}
}
