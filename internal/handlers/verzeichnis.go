package handlers

import (
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"

	"ausschreibungen/internal/attach"
	"ausschreibungen/internal/audit"
	"ausschreibungen/internal/auth"
)

// VerzeichnisHandler serves a record's attachment folder: without a name
// parameter it lists the contents, with one it streams the file. A folder
// that does not exist yet lists as empty, not as an error.
func (h *Handler) VerzeichnisHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, reasonBadRequest, "invalid id")
		return
	}
	record, err := h.Store.GetAusschreibung(r.Context(), id)
	if err != nil {
		h.writeTaxonomyError(w, err)
		return
	}
	folder := h.Binder.CurrentPath(id, record.Verzeichnis)

	if name := r.URL.Query().Get("name"); name != "" {
		h.streamFile(w, r, folder, name)
		return
	}

	entries, err := h.Files.List(folder)
	if err != nil {
		h.writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"folder":  filepath.Base(folder),
		"entries": entries,
	})
}

func isTruthy(s string) bool {
	switch s {
	case "1", "true", "TRUE", "True", "yes", "YES", "Yes":
		return true
	}
	return false
}

func (h *Handler) streamFile(w http.ResponseWriter, r *http.Request, folder, name string) {
	safeName := filepath.Base(name)
	data, err := h.Files.ReadFile(folder, safeName)
	if err != nil {
		h.writeTaxonomyError(w, err)
		return
	}

	disposition := "attachment"
	if isTruthy(r.URL.Query().Get("inline")) {
		disposition = "inline"
	}
	w.Header().Set("Content-Type", attach.ContentType(safeName))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", disposition+`; filename="`+url.PathEscape(safeName)+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

type uploadError struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// UploadHandler accepts a multipart batch and saves each file into the
// record's folder, suffixing names on collision. Partial success is a
// valid outcome: saved names and per-file errors are reported side by
// side, never a silent overall success.
func (h *Handler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, reasonBadRequest, "invalid id")
		return
	}
	record, err := h.Store.GetAusschreibung(r.Context(), id)
	if err != nil {
		h.writeTaxonomyError(w, err)
		return
	}
	folder := h.Binder.CurrentPath(id, record.Verzeichnis)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, reasonBadRequest, "invalid form-data")
		return
	}
	var files []*multipart.FileHeader
	files = append(files, r.MultipartForm.File["files"]...)
	files = append(files, r.MultipartForm.File["file"]...)
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, reasonBadRequest, "no files provided")
		return
	}

	saved := []string{}
	uploadErrors := []uploadError{}
	for _, fh := range files {
		name := filepath.Base(fh.Filename)
		if name == "" || name == "." {
			uploadErrors = append(uploadErrors, uploadError{Name: "(unnamed)", Error: "empty filename"})
			continue
		}
		f, err := fh.Open()
		if err != nil {
			uploadErrors = append(uploadErrors, uploadError{Name: name, Error: err.Error()})
			continue
		}
		stored, err := h.Files.WriteFile(folder, name, f)
		f.Close()
		if err != nil {
			uploadErrors = append(uploadErrors, uploadError{Name: name, Error: err.Error()})
			continue
		}
		saved = append(saved, stored)
	}

	// First upload may have created the folder; heal a stale or missing
	// stored path while we are here.
	if len(saved) > 0 && (record.Verzeichnis == nil || *record.Verzeichnis != folder) {
		if err := h.Store.UpdateVerzeichnis(r.Context(), id, folder); err != nil {
			h.log.Error("persisting verzeichnis failed", "id", id, "err", err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"saved":  saved,
		"errors": uploadErrors,
	})
}

// DeleteFileHandler removes one file from a record's folder. Anonymous
// callers are rejected at the router.
func (h *Handler) DeleteFileHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, reasonBadRequest, "invalid id")
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		writeError(w, http.StatusBadRequest, reasonBadRequest, "missing name parameter")
		return
	}
	record, err := h.Store.GetAusschreibung(r.Context(), id)
	if err != nil {
		h.writeTaxonomyError(w, err)
		return
	}
	folder := h.Binder.CurrentPath(id, record.Verzeichnis)

	safeName := filepath.Base(name)
	if err := h.Files.DeleteFile(folder, safeName); err != nil {
		h.writeTaxonomyError(w, err)
		return
	}

	actor, _ := auth.FromContext(r.Context())
	h.Audit.Record(r.Context(), audit.Input{
		Action: audit.ActionDelete,
		Table:  "verzeichnis",
		RowPK:  map[string]any{"id": id, "name": safeName},
		Actor:  actor,
		Meta:   audit.RequestMeta(r),
	})

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
