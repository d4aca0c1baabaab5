package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ausschreibungen/internal/attach"
	"ausschreibungen/internal/audit"
	"ausschreibungen/internal/auth"
	"ausschreibungen/models"
)

const recordsTable = "ausschreibungen"

// parseListLimit clamps the list limit to 1..5000, default 50.
func parseListLimit(r *http.Request) int {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= 5000 {
			limit = n
		}
	}
	return limit
}

func parseID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	return id, err == nil && id > 0
}

// ListAusschreibungenHandler returns the newest records first.
func (h *Handler) ListAusschreibungenHandler(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Store.ListAusschreibungen(r.Context(), parseListLimit(r))
	if err != nil {
		h.writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// CreateAusschreibungHandler inserts a record and allocates its attachment
// folder. A taken folder name is a conflict unless useExisting is set. If
// the folder cannot be created after the row is committed, the record is
// returned with a null verzeichnis (recognized inconsistency, logged).
func (h *Handler) CreateAusschreibungHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, reasonBadRequest, "failed to read request body")
		return
	}
	defer r.Body.Close()

	var input struct {
		models.Ausschreibung
		Ordnername  string `json:"ordnername"`
		UseExisting bool   `json:"useExisting"`
	}
	if err := json.Unmarshal(body, &input); err != nil {
		writeError(w, http.StatusBadRequest, reasonBadRequest, "invalid JSON format")
		return
	}
	if err := h.validate.Struct(&input.Ausschreibung); err != nil {
		writeError(w, http.StatusBadRequest, reasonBadRequest, err.Error())
		return
	}

	// Conflict check before the row exists; the id fallback name cannot
	// collide for a row that is not inserted yet, so a name that sanitizes
	// away is skipped here as well.
	if attach.SanitizeFolderName(input.Ordnername) != "" && !input.UseExisting {
		taken, err := h.Binder.Taken(0, input.Ordnername)
		if err != nil {
			h.writeTaxonomyError(w, err)
			return
		}
		if taken {
			writeError(w, http.StatusConflict, reasonFolderExists, "folder already exists: "+input.Ordnername)
			return
		}
	}

	record := input.Ausschreibung
	if err := h.Store.CreateAusschreibung(r.Context(), &record); err != nil {
		h.writeTaxonomyError(w, err)
		return
	}

	path, err := h.Binder.Allocate(record.ID, input.Ordnername, input.UseExisting)
	if err != nil {
		// Row is committed; verzeichnis stays null until someone retries.
		h.log.Error("folder allocation failed", "id", record.ID, "err", err)
	} else {
		if err := h.Store.UpdateVerzeichnis(r.Context(), record.ID, path); err != nil {
			h.log.Error("persisting verzeichnis failed", "id", record.ID, "err", err)
		} else {
			record.Verzeichnis = &path
		}
	}

	actor, _ := auth.FromContext(r.Context())
	h.Audit.Record(r.Context(), audit.Input{
		Action: audit.ActionCreate,
		Table:  recordsTable,
		RowPK:  map[string]any{"id": record.ID},
		After:  record,
		Actor:  actor,
		Meta:   audit.RequestMeta(r),
	})

	writeJSON(w, http.StatusCreated, record)
}

// UpdateAusschreibungHandler applies a partial update. When a new folder
// name is supplied the folder is relocated first; only after a successful
// move is the row touched, so a failed move leaves the stored path intact.
func (h *Handler) UpdateAusschreibungHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, reasonBadRequest, "invalid id")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)

	var input struct {
		models.AusschreibungUpdate
		Ordnername  *string `json:"ordnername"`
		UseExisting bool    `json:"useExisting"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, reasonBadRequest, "invalid JSON format")
		return
	}
	defer r.Body.Close()

	before, err := h.Store.GetAusschreibung(r.Context(), id)
	if err != nil {
		h.writeTaxonomyError(w, err)
		return
	}

	update := input.AusschreibungUpdate
	if input.Ordnername != nil {
		newPath, err := h.Binder.Rename(id, before.Verzeichnis, *input.Ordnername, input.UseExisting)
		if err != nil {
			h.writeTaxonomyError(w, err)
			return
		}
		update.Verzeichnis = &newPath
	}

	after, err := h.Store.UpdateAusschreibung(r.Context(), id, update)
	if err != nil {
		h.writeTaxonomyError(w, err)
		return
	}

	actor, _ := auth.FromContext(r.Context())
	h.Audit.Record(r.Context(), audit.Input{
		Action: audit.ActionUpdate,
		Table:  recordsTable,
		RowPK:  map[string]any{"id": id},
		Before: before,
		After:  after,
		Actor:  actor,
		Meta:   audit.RequestMeta(r),
	})

	writeJSON(w, http.StatusOK, after)
}

// DeleteAusschreibungHandler removes the row, then the folder tree as a
// courtesy: a folder that will not delete is logged, never surfaced.
func (h *Handler) DeleteAusschreibungHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, reasonBadRequest, "invalid id")
		return
	}

	before, err := h.Store.GetAusschreibung(r.Context(), id)
	if err != nil {
		h.writeTaxonomyError(w, err)
		return
	}
	if err := h.Store.DeleteAusschreibung(r.Context(), id); err != nil {
		h.writeTaxonomyError(w, err)
		return
	}
	h.Binder.Remove(id, before.Verzeichnis)

	actor, _ := auth.FromContext(r.Context())
	h.Audit.Record(r.Context(), audit.Input{
		Action: audit.ActionDelete,
		Table:  recordsTable,
		RowPK:  map[string]any{"id": id},
		Before: before,
		Actor:  actor,
		Meta:   audit.RequestMeta(r),
	})

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ColumnsHandler lists the record columns in display order.
func (h *Handler) ColumnsHandler(w http.ResponseWriter, r *http.Request) {
	cols, err := h.Store.OrderedColumns(r.Context())
	if err != nil {
		h.writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cols)
}

// KPIsHandler returns the dashboard headline numbers.
func (h *Handler) KPIsHandler(w http.ResponseWriter, r *http.Request) {
	kpis, err := h.Store.GetKPIs(r.Context())
	if err != nil {
		h.writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, kpis)
}

// ByMonthHandler returns submission-deadline counts per month.
func (h *Handler) ByMonthHandler(w http.ResponseWriter, r *http.Request) {
	rows, err := h.Store.GetByMonth(r.Context())
	if err != nil {
		h.writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}
