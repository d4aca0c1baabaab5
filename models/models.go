package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx/types"
)

const dateLayout = "2006-01-02"

// Date is a calendar date without a time component, stored as a Postgres
// DATE column and serialized as "YYYY-MM-DD".
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) *Date {
	return &Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` {
		d.Time = time.Time{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date %q", s)
	}
	s = s[1 : len(s)-1]
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		// Date pickers occasionally send full timestamps
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("invalid date %q", s)
		}
	}
	d.Time = t
	return nil
}

func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Time, nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Time = time.Time{}
	case time.Time:
		d.Time = v
	case []byte:
		t, err := time.Parse(dateLayout, string(v))
		if err != nil {
			return err
		}
		d.Time = t
	case string:
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return err
		}
		d.Time = t
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
	return nil
}

// Ausschreibung ist ein Tender-Eintrag.
type Ausschreibung struct {
	ID                int        `db:"id" json:"id"`
	Abgabefrist       *Date      `db:"abgabefrist" json:"abgabefrist"`
	Uhrzeit           *string    `db:"uhrzeit" json:"uhrzeit"`
	Ort               *string    `db:"ort" json:"ort"`
	Name              string     `db:"name" json:"name" validate:"required,max=300"`
	KurzbeschAuftrag  *string    `db:"kurzbesch_auftrag" json:"kurzbesch_auftrag"`
	Teilnahme         *string    `db:"teilnahme" json:"teilnahme"`
	GrundBeiAblehnung *string    `db:"grund_bei_ablehnung" json:"grund_bei_ablehnung"`
	Bearbeiter        *string    `db:"bearbeiter" json:"bearbeiter"`
	Bemerkung         *string    `db:"bemerkung" json:"bemerkung"`
	Abgegeben         bool       `db:"abgegeben" json:"abgegeben"`
	Abholfrist        *Date      `db:"abholfrist" json:"abholfrist"`
	Fragefrist        *Date      `db:"fragefrist" json:"fragefrist"`
	Besichtigung      *string    `db:"besichtigung" json:"besichtigung"`
	Bewertung         *string    `db:"bewertung" json:"bewertung"`
	Zuschlagsfrist    *Date      `db:"zuschlagsfrist" json:"zuschlagsfrist"`
	Ausfuehrung       *string    `db:"ausfuehrung" json:"ausfuehrung"`
	VergabeNr         *string    `db:"vergabe_nr" json:"vergabe_nr"`
	Link              *string    `db:"link" json:"link"`
	Verzeichnis       *string    `db:"verzeichnis" json:"verzeichnis"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         *time.Time `db:"updated_at" json:"updated_at"`
}

// AusschreibungUpdate carries a partial update: nil fields keep the stored
// value (COALESCE semantics in the UPDATE).
type AusschreibungUpdate struct {
	Abgabefrist       *Date   `json:"abgabefrist"`
	Uhrzeit           *string `json:"uhrzeit"`
	Ort               *string `json:"ort"`
	Name              *string `json:"name"`
	KurzbeschAuftrag  *string `json:"kurzbesch_auftrag"`
	Teilnahme         *string `json:"teilnahme"`
	GrundBeiAblehnung *string `json:"grund_bei_ablehnung"`
	Bearbeiter        *string `json:"bearbeiter"`
	Bemerkung         *string `json:"bemerkung"`
	Abgegeben         *bool   `json:"abgegeben"`
	Abholfrist        *Date   `json:"abholfrist"`
	Fragefrist        *Date   `json:"fragefrist"`
	Besichtigung      *string `json:"besichtigung"`
	Bewertung         *string `json:"bewertung"`
	Zuschlagsfrist    *Date   `json:"zuschlagsfrist"`
	Ausfuehrung       *string `json:"ausfuehrung"`
	VergabeNr         *string `json:"vergabe_nr"`
	Link              *string `json:"link"`
	Verzeichnis       *string `json:"-"`
}

// AuditEntry ist ein unveränderlicher Audit-Eintrag (append-only).
type AuditEntry struct {
	ID          int64          `db:"id" json:"id"`
	At          time.Time      `db:"at" json:"at"`
	Action      string         `db:"action" json:"action"`
	TableName   string         `db:"table_name" json:"table"`
	RowPK       types.JSONText `db:"row_pk" json:"row_pk"`
	Before      types.JSONText `db:"before" json:"before,omitempty"`
	After       types.JSONText `db:"after" json:"after,omitempty"`
	ActorUserID *int64         `db:"actor_user_id" json:"actor_user_id"`
	ActorEmail  *string        `db:"actor_email" json:"actor_email"`
	IP          *string        `db:"ip" json:"ip"`
	UserAgent   *string        `db:"user_agent" json:"user_agent"`
	RequestID   *string        `db:"request_id" json:"request_id"`
}

// User ist ein Benutzerkonto.
type User struct {
	ID           int64     `db:"id" json:"id"`
	Email        string    `db:"email" json:"email" validate:"required,email"`
	Name         string    `db:"name" json:"name"`
	Role         string    `db:"role" json:"role" validate:"required,oneof=admin vertrieb viewer"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
