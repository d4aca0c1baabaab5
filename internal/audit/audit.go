// Package audit records every state-changing action as an immutable
// audit_log row. Writes are best-effort: a failed audit write is logged
// and never blocks or reverses the primary mutation.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"

	"ausschreibungen/internal/auth"
	"ausschreibungen/models"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionExport = "export"
	ActionLogin  = "login"
)

// Store is the slice of the database the recorder needs.
type Store interface {
	InsertAuditEntry(ctx context.Context, e *models.AuditEntry) error
}

// Meta is the request metadata captured alongside each entry.
type Meta struct {
	IP        *string
	UserAgent *string
	RequestID *string
}

// RequestMeta extracts source address, client agent and a correlation id
// from the incoming request.
func RequestMeta(r *http.Request) Meta {
	var m Meta
	ip := r.Header.Get("X-Forwarded-For")
	if ip == "" {
		ip = r.Header.Get("X-Real-Ip")
	}
	if ip != "" {
		first := strings.TrimSpace(strings.Split(ip, ",")[0])
		m.IP = &first
	} else if r.RemoteAddr != "" {
		addr := r.RemoteAddr
		if i := strings.LastIndex(addr, ":"); i > 0 {
			addr = addr[:i]
		}
		m.IP = &addr
	}
	if ua := r.UserAgent(); ua != "" {
		m.UserAgent = &ua
	}
	reqID := middleware.GetReqID(r.Context())
	if reqID == "" {
		reqID = uuid.NewString()
	}
	m.RequestID = &reqID
	return m
}

// Input describes one logical mutation to record.
type Input struct {
	Action string
	Table  string
	RowPK  map[string]any
	Before any
	After  any
	Actor  *auth.Actor
	Meta   Meta
}

type Recorder struct {
	store Store
	log   *slog.Logger
}

func NewRecorder(store Store, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{store: store, log: log}
}

// Record appends one entry. Fire-and-forget: failures are logged, never
// returned, so the caller's primary effect stands regardless.
func (r *Recorder) Record(ctx context.Context, in Input) {
	entry := &models.AuditEntry{
		Action:    in.Action,
		TableName: in.Table,
		RowPK:     mustJSON(in.RowPK),
	}
	if in.Before != nil {
		entry.Before = mustJSON(in.Before)
	}
	if in.After != nil {
		entry.After = mustJSON(in.After)
	}
	if in.Actor != nil {
		uid := in.Actor.UserID
		email := in.Actor.Email
		entry.ActorUserID = &uid
		entry.ActorEmail = &email
	}
	entry.IP = in.Meta.IP
	entry.UserAgent = in.Meta.UserAgent
	entry.RequestID = in.Meta.RequestID

	// The entry must survive the request being canceled mid-write.
	if err := r.store.InsertAuditEntry(context.WithoutCancel(ctx), entry); err != nil {
		r.log.Error("audit write failed",
			"action", in.Action, "table", in.Table, "pk", in.RowPK, "err", err)
	}
}

func mustJSON(v any) types.JSONText {
	b, err := json.Marshal(v)
	if err != nil {
		return types.JSONText(`{"_marshal_error":true}`)
	}
	return types.JSONText(b)
}
