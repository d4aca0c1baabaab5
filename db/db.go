package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jmoiron/sqlx"

	"ausschreibungen/models"
)

// ErrNotFound is returned when a referenced row does not exist.
var ErrNotFound = errors.New("not found")

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

const ausschreibungColumns = `id, abgabefrist, uhrzeit, ort, name, kurzbesch_auftrag,
	teilnahme, grund_bei_ablehnung, bearbeiter, bemerkung, abgegeben,
	abholfrist, fragefrist, besichtigung, bewertung, zuschlagsfrist,
	ausfuehrung, vergabe_nr, link, verzeichnis, created_at, updated_at`

func (s *Storage) ListAusschreibungen(ctx context.Context, limit int) ([]models.Ausschreibung, error) {
	query := fmt.Sprintf(`SELECT %s FROM ausschreibungen ORDER BY id DESC LIMIT $1`, ausschreibungColumns)
	rows := []models.Ausschreibung{}
	err := s.db.SelectContext(ctx, &rows, query, limit)
	return rows, err
}

func (s *Storage) GetAusschreibung(ctx context.Context, id int) (*models.Ausschreibung, error) {
	a := &models.Ausschreibung{}
	query := fmt.Sprintf(`SELECT %s FROM ausschreibungen WHERE id=$1`, ausschreibungColumns)
	err := s.db.GetContext(ctx, a, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (s *Storage) CreateAusschreibung(ctx context.Context, a *models.Ausschreibung) error {
	query := `
        INSERT INTO ausschreibungen
            (abgabefrist, uhrzeit, ort, name, kurzbesch_auftrag, teilnahme,
             grund_bei_ablehnung, bearbeiter, bemerkung, abgegeben,
             abholfrist, fragefrist, besichtigung, bewertung, zuschlagsfrist,
             ausfuehrung, vergabe_nr, link)
        VALUES
            ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
        RETURNING id, created_at, updated_at`
	return s.db.QueryRowContext(ctx, query,
		a.Abgabefrist, a.Uhrzeit, a.Ort, a.Name, a.KurzbeschAuftrag,
		a.Teilnahme, a.GrundBeiAblehnung, a.Bearbeiter, a.Bemerkung,
		a.Abgegeben, a.Abholfrist, a.Fragefrist, a.Besichtigung,
		a.Bewertung, a.Zuschlagsfrist, a.Ausfuehrung, a.VergabeNr, a.Link).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

// UpdateAusschreibung applies a partial update: nil fields keep the stored
// value via COALESCE. Returns the row as stored after the update.
func (s *Storage) UpdateAusschreibung(ctx context.Context, id int, u models.AusschreibungUpdate) (*models.Ausschreibung, error) {
	query := fmt.Sprintf(`
        UPDATE ausschreibungen SET
            abgabefrist = COALESCE($1, abgabefrist),
            uhrzeit = COALESCE($2, uhrzeit),
            ort = COALESCE($3, ort),
            name = COALESCE($4, name),
            kurzbesch_auftrag = COALESCE($5, kurzbesch_auftrag),
            teilnahme = COALESCE($6, teilnahme),
            grund_bei_ablehnung = COALESCE($7, grund_bei_ablehnung),
            bearbeiter = COALESCE($8, bearbeiter),
            bemerkung = COALESCE($9, bemerkung),
            abgegeben = COALESCE($10, abgegeben),
            abholfrist = COALESCE($11, abholfrist),
            fragefrist = COALESCE($12, fragefrist),
            besichtigung = COALESCE($13, besichtigung),
            bewertung = COALESCE($14, bewertung),
            zuschlagsfrist = COALESCE($15, zuschlagsfrist),
            ausfuehrung = COALESCE($16, ausfuehrung),
            vergabe_nr = COALESCE($17, vergabe_nr),
            link = COALESCE($18, link),
            verzeichnis = COALESCE($19, verzeichnis),
            updated_at = NOW()
        WHERE id=$20
        RETURNING %s`, ausschreibungColumns)
	a := &models.Ausschreibung{}
	err := s.db.GetContext(ctx, a, query,
		u.Abgabefrist, u.Uhrzeit, u.Ort, u.Name, u.KurzbeschAuftrag,
		u.Teilnahme, u.GrundBeiAblehnung, u.Bearbeiter, u.Bemerkung,
		u.Abgegeben, u.Abholfrist, u.Fragefrist, u.Besichtigung,
		u.Bewertung, u.Zuschlagsfrist, u.Ausfuehrung, u.VergabeNr,
		u.Link, u.Verzeichnis, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

// UpdateVerzeichnis persists the attachment folder path onto the record.
func (s *Storage) UpdateVerzeichnis(ctx context.Context, id int, path string) error {
	query := `UPDATE ausschreibungen SET verzeichnis=$1, updated_at=NOW() WHERE id=$2`
	res, err := s.db.ExecContext(ctx, query, path, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Storage) DeleteAusschreibung(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ausschreibungen WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// preferredColumns is the display order the UI expects; columns the schema
// grows later are appended alphabetically after these.
var preferredColumns = []string{
	"id", "abgabefrist", "uhrzeit", "ort", "name", "kurzbesch_auftrag",
	"teilnahme", "bearbeiter", "abgegeben", "vergabe_nr", "link", "verzeichnis",
	"grund_bei_ablehnung", "bemerkung", "abholfrist", "fragefrist",
	"besichtigung", "bewertung", "zuschlagsfrist", "ausfuehrung",
	"created_at", "updated_at",
}

func (s *Storage) OrderedColumns(ctx context.Context) ([]string, error) {
	query := `
        SELECT column_name
        FROM information_schema.columns
        WHERE table_schema = 'public' AND table_name = 'ausschreibungen'
        ORDER BY ordinal_position`
	var cols []string
	if err := s.db.SelectContext(ctx, &cols, query); err != nil {
		return nil, err
	}
	ordered := make([]string, 0, len(cols))
	for _, p := range preferredColumns {
		if slices.Contains(cols, p) {
			ordered = append(ordered, p)
		}
	}
	rest := make([]string, 0)
	for _, c := range cols {
		if !slices.Contains(preferredColumns, c) {
			rest = append(rest, c)
		}
	}
	slices.Sort(rest)
	return append(ordered, rest...), nil
}

// KPIs are the dashboard headline numbers.
type KPIs struct {
	Total    int          `json:"total"`
	Open     int          `json:"open"`
	NextDate *models.Date `json:"nextDate"`
}

func (s *Storage) GetKPIs(ctx context.Context) (*KPIs, error) {
	k := &KPIs{}
	if err := s.db.GetContext(ctx, &k.Total, `SELECT COUNT(*) FROM ausschreibungen`); err != nil {
		return nil, err
	}
	if err := s.db.GetContext(ctx, &k.Open,
		`SELECT COUNT(*) FROM ausschreibungen WHERE COALESCE(abgegeben,false)=false`); err != nil {
		return nil, err
	}
	var next sql.Null[time.Time]
	if err := s.db.GetContext(ctx, &next,
		`SELECT MIN(abgabefrist)::date FROM ausschreibungen WHERE abgabefrist IS NOT NULL`); err != nil {
		return nil, err
	}
	if next.Valid {
		k.NextDate = &models.Date{Time: next.V}
	}
	return k, nil
}

type MonthCount struct {
	Monat string `db:"monat" json:"monat"`
	N     int    `db:"n" json:"n"`
}

func (s *Storage) GetByMonth(ctx context.Context) ([]MonthCount, error) {
	query := `
        SELECT to_char(date_trunc('month', abgabefrist), 'YYYY-MM-01') AS monat,
               COUNT(*)::int AS n
        FROM ausschreibungen
        WHERE abgabefrist IS NOT NULL
        GROUP BY 1
        ORDER BY 1`
	rows := []MonthCount{}
	err := s.db.SelectContext(ctx, &rows, query)
	return rows, err
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u := &models.User{}
	query := `SELECT id, email, name, role, password_hash, created_at FROM users WHERE email=$1`
	err := s.db.GetContext(ctx, u, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return u, err
}
