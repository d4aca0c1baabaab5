package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"ausschreibungen/db"
	"ausschreibungen/internal/attach"
	"ausschreibungen/internal/audit"
	"ausschreibungen/internal/auth"
	"ausschreibungen/internal/folders"
)

// Machine-checkable reason tags for the error envelope.
const (
	reasonBadRequest   = "bad_request"
	reasonUnauthorized = "unauthorized"
	reasonForbidden    = "forbidden"
	reasonNotFound     = "not_found"
	reasonPathEscape   = "path_escape"
	reasonFolderExists = "folder_exists"
	reasonMoveFailed   = "move_failed"
	reasonInternal     = "internal"
)

// Handler wires the storage, the attachment layer and the audit recorder
// behind the HTTP API.
type Handler struct {
	Store     StorageInterface
	Files     *attach.Store
	Binder    *folders.Binder
	Audit     *audit.Recorder
	Auth      *auth.Service
	ExportMax int

	log      *slog.Logger
	validate *validator.Validate
}

func NewHandler(store StorageInterface, files *attach.Store, binder *folders.Binder, recorder *audit.Recorder, authSvc *auth.Service, exportMax int, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if exportMax <= 0 {
		exportMax = 25000
	}
	return &Handler{
		Store:     store,
		Files:     files,
		Binder:    binder,
		Audit:     recorder,
		Auth:      authSvc,
		ExportMax: exportMax,
		log:       log,
		validate:  validator.New(),
	}
}

// PingHandler answers "ok" for liveness checks.
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeError(w http.ResponseWriter, status int, reason, detail string) {
	writeJSON(w, status, errorResponse{Error: reason, Detail: detail})
}

// writeTaxonomyError maps the error taxonomy onto HTTP statuses and reason
// tags. Anything unrecognized becomes a generic internal failure.
func (h *Handler) writeTaxonomyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, attach.ErrPathEscape):
		writeError(w, http.StatusBadRequest, reasonPathEscape, err.Error())
	case errors.Is(err, folders.ErrFolderExists):
		writeError(w, http.StatusConflict, reasonFolderExists, err.Error())
	case errors.Is(err, attach.ErrNotFound), errors.Is(err, db.ErrNotFound):
		writeError(w, http.StatusNotFound, reasonNotFound, err.Error())
	case errors.Is(err, folders.ErrMoveFailed):
		writeError(w, http.StatusInternalServerError, reasonMoveFailed, err.Error())
	default:
		h.log.Error("internal error", "err", err)
		writeError(w, http.StatusInternalServerError, reasonInternal, "internal server error")
	}
}

// RequireAuth rejects anonymous callers.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.FromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, reasonUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireWriter allows only roles that may mutate records.
func (h *Handler) RequireWriter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := auth.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, reasonUnauthorized, "authentication required")
			return
		}
		if !actor.CanWrite() {
			writeError(w, http.StatusForbidden, reasonForbidden, "write access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin allows only administrators (audit views).
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := auth.FromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, reasonUnauthorized, "authentication required")
			return
		}
		if !actor.IsAdmin() {
			writeError(w, http.StatusForbidden, reasonForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// LoginHandler verifies credentials and issues a session token. Every
// attempt, successful or not, produces a login audit entry.
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1048576)

	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, reasonBadRequest, "invalid JSON")
		return
	}
	defer r.Body.Close()
	if input.Email == "" || input.Password == "" {
		writeError(w, http.StatusBadRequest, reasonBadRequest, "email and password are required")
		return
	}

	meta := audit.RequestMeta(r)
	user, err := h.Store.GetUserByEmail(r.Context(), input.Email)
	if err != nil || !auth.CheckPassword(user.PasswordHash, input.Password) {
		h.Audit.Record(r.Context(), audit.Input{
			Action: audit.ActionLogin,
			Table:  "users",
			RowPK:  map[string]any{"email": input.Email},
			After:  map[string]any{"success": false},
			Meta:   meta,
		})
		writeError(w, http.StatusUnauthorized, reasonUnauthorized, "invalid credentials")
		return
	}

	token, err := h.Auth.IssueToken(user)
	if err != nil {
		h.writeTaxonomyError(w, err)
		return
	}
	h.Audit.Record(r.Context(), audit.Input{
		Action: audit.ActionLogin,
		Table:  "users",
		RowPK:  map[string]any{"id": user.ID},
		After:  map[string]any{"success": true, "email": user.Email},
		Actor:  &auth.Actor{UserID: user.ID, Email: user.Email, Role: user.Role},
		Meta:   meta,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user": map[string]interface{}{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
			"role":  user.Role,
		},
	})
}
