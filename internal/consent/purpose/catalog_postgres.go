package purpose

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"consentd/internal/consent/models"
	"consentd/pkg/platform/sentinel"
)

// PostgresCatalog reads purposes from the consent_purposes table.
type PostgresCatalog struct {
	db *sql.DB
}

// NewPostgresCatalog constructs a PostgreSQL-backed purpose catalog.
func NewPostgresCatalog(db *sql.DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

const purposeColumns = `code, name, description, mandatory, category, legal_basis,
	retention_days, active, jurisdictions, consent_text`

func (c *PostgresCatalog) Get(ctx context.Context, code string) (models.Purpose, error) {
	query := `SELECT ` + purposeColumns + ` FROM consent_purposes WHERE code = $1`
	p, err := scanPurpose(c.db.QueryRowContext(ctx, query, strings.ToUpper(strings.TrimSpace(code))))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Purpose{}, sentinel.ErrNotFound
		}
		return models.Purpose{}, fmt.Errorf("find purpose: %w", err)
	}
	return p, nil
}

func (c *PostgresCatalog) List(ctx context.Context) ([]models.Purpose, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT `+purposeColumns+` FROM consent_purposes ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list purposes: %w", err)
	}
	defer rows.Close()

	var out []models.Purpose
	for rows.Next() {
		p, err := scanPurpose(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purpose: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purposes: %w", err)
	}
	return out, nil
}

// Register inserts a purpose. Existing codes are never updated: an identical
// row is accepted, a differing one returns sentinel.ErrConflict.
func (c *PostgresCatalog) Register(ctx context.Context, p models.Purpose) error {
	if err := p.Validate(); err != nil {
		return err
	}
	jurisdictions, err := json.Marshal(nonNil(p.Jurisdictions))
	if err != nil {
		return fmt.Errorf("marshal jurisdictions: %w", err)
	}
	res, err := c.db.ExecContext(ctx, `
		INSERT INTO consent_purposes (`+purposeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (code) DO NOTHING
	`, p.Code, p.Name, p.Description, p.Mandatory, p.Category, p.LegalBasis,
		p.RetentionDays, p.Active, jurisdictions, p.ConsentText)
	if err != nil {
		return fmt.Errorf("insert purpose: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		return nil
	}
	existing, err := c.Get(ctx, p.Code)
	if err != nil {
		return err
	}
	p.Jurisdictions = nonNil(p.Jurisdictions)
	if !reflect.DeepEqual(existing, p) {
		return sentinel.ErrConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPurpose(row rowScanner) (models.Purpose, error) {
	var (
		p             models.Purpose
		jurisdictions []byte
	)
	if err := row.Scan(&p.Code, &p.Name, &p.Description, &p.Mandatory, &p.Category, &p.LegalBasis,
		&p.RetentionDays, &p.Active, &jurisdictions, &p.ConsentText); err != nil {
		return models.Purpose{}, err
	}
	p.Jurisdictions = []string{}
	if len(jurisdictions) > 0 {
		if err := json.Unmarshal(jurisdictions, &p.Jurisdictions); err != nil {
			return models.Purpose{}, fmt.Errorf("decode jurisdictions: %w", err)
		}
	}
	return p, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
