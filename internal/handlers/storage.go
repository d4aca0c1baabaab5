package handlers

import (
	"context"

	"ausschreibungen/db"
	"ausschreibungen/models"
)

type StorageInterface interface {
	ListAusschreibungen(ctx context.Context, limit int) ([]models.Ausschreibung, error)
	GetAusschreibung(ctx context.Context, id int) (*models.Ausschreibung, error)
	CreateAusschreibung(ctx context.Context, a *models.Ausschreibung) error
	UpdateAusschreibung(ctx context.Context, id int, u models.AusschreibungUpdate) (*models.Ausschreibung, error)
	UpdateVerzeichnis(ctx context.Context, id int, path string) error
	DeleteAusschreibung(ctx context.Context, id int) error
	OrderedColumns(ctx context.Context) ([]string, error)
	GetKPIs(ctx context.Context) (*db.KPIs, error)
	GetByMonth(ctx context.Context) ([]db.MonthCount, error)

	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	InsertAuditEntry(ctx context.Context, e *models.AuditEntry) error
	QueryAudit(ctx context.Context, f db.AuditFilter, limit, offset int) ([]models.AuditEntry, int64, error)
	ExportAudit(ctx context.Context, f db.AuditFilter, max int) ([]models.AuditEntry, error)
}
