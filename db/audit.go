package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"ausschreibungen/models"
)

// AuditFilter narrows audit queries. Zero values mean "no restriction".
type AuditFilter struct {
	From       *time.Time
	To         *time.Time
	Actions    []string
	Tables     []string
	ActorID    *int64
	ActorEmail string
	PK         string // matched by jsonb containment on {"id": <pk>}
	Query      string // substring across row_pk/before/after
}

func (f AuditFilter) whereClause() (string, []interface{}) {
	var where []string
	var args []interface{}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.From != nil {
		add("at >= $%d", *f.From)
	}
	if f.To != nil {
		add("at < $%d", *f.To)
	}
	if len(f.Actions) > 0 {
		add("action = ANY ($%d)", pq.Array(f.Actions))
	}
	if len(f.Tables) > 0 {
		add("table_name = ANY ($%d)", pq.Array(f.Tables))
	}
	if f.ActorID != nil {
		add("actor_user_id = $%d", *f.ActorID)
	} else if f.ActorEmail != "" {
		add("actor_email = $%d", f.ActorEmail)
	}
	if f.PK != "" {
		pk := f.PK
		if isDigits(pk) {
			add("row_pk @> $%d::jsonb", fmt.Sprintf(`{"id": %s}`, pk))
		} else {
			add("row_pk @> $%d::jsonb", fmt.Sprintf(`{"id": %q}`, pk))
		}
	}
	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(row_pk::text ILIKE $%d OR before::text ILIKE $%d OR after::text ILIKE $%d)", n, n, n))
	}

	if len(where) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(where, " AND "), args
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

const auditColumns = `id, at, action, table_name, row_pk, before, after,
	actor_user_id, actor_email, ip, user_agent, request_id`

// InsertAuditEntry appends one immutable audit row. There is no update or
// delete counterpart on purpose.
func (s *Storage) InsertAuditEntry(ctx context.Context, e *models.AuditEntry) error {
	query := `
        INSERT INTO audit_log
            (action, table_name, row_pk, before, after,
             actor_user_id, actor_email, ip, user_agent, request_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, at`
	return s.db.QueryRowContext(ctx, query,
		e.Action, e.TableName, e.RowPK, e.Before, e.After,
		e.ActorUserID, e.ActorEmail, e.IP, e.UserAgent, e.RequestID).
		Scan(&e.ID, &e.At)
}

// QueryAudit returns a page of matching entries, newest first, plus the
// total match count for pagination.
func (s *Storage) QueryAudit(ctx context.Context, f AuditFilter, limit, offset int) ([]models.AuditEntry, int64, error) {
	whereSQL, args := f.whereClause()

	query := fmt.Sprintf(`SELECT %s FROM audit_log %s ORDER BY at DESC LIMIT $%d OFFSET $%d`,
		auditColumns, whereSQL, len(args)+1, len(args)+2)
	entries := []models.AuditEntry{}
	if err := s.db.SelectContext(ctx, &entries, query, append(args, limit, offset)...); err != nil {
		return nil, 0, err
	}

	var total int64
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM audit_log %s`, whereSQL)
	if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// ExportAudit returns up to max matching entries in one non-paginated
// sequence for bulk export.
func (s *Storage) ExportAudit(ctx context.Context, f AuditFilter, max int) ([]models.AuditEntry, error) {
	whereSQL, args := f.whereClause()
	query := fmt.Sprintf(`SELECT %s FROM audit_log %s ORDER BY at DESC LIMIT $%d`,
		auditColumns, whereSQL, len(args)+1)
	entries := []models.AuditEntry{}
	err := s.db.SelectContext(ctx, &entries, query, append(args, max)...)
	return entries, err
}
