package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"consentd/internal/consent/models"
	"consentd/internal/platform/database"
	id "consentd/pkg/domain"
	"consentd/pkg/platform/sentinel"
)

// PostgresStore writes to the consent_audit table.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx binds the store to the engine transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{tx: tx}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer() dbExecutor {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, entry *models.AuditEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("encode audit details: %w", err)
	}
	if entry.Details == nil {
		details = []byte(`{}`)
	}
	_, err = s.execer().ExecContext(ctx, `
		INSERT INTO consent_audit (
			consent_id, sequence, action, actor_type, actor_id,
			occurred_at, details, source_ip, user_agent
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		string(entry.ConsentID),
		entry.Sequence,
		string(entry.Action),
		string(entry.ActorType),
		entry.ActorID,
		entry.Timestamp,
		details,
		entry.SourceIP,
		entry.UserAgent,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) LastSequence(ctx context.Context, consentID id.ConsentID) (int64, error) {
	var seq int64
	err := s.execer().QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) FROM consent_audit WHERE consent_id = $1`, string(consentID)).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("read audit sequence: %w", err)
	}
	return seq, nil
}

const auditColumns = `consent_id, sequence, action, actor_type, actor_id, occurred_at, details, source_ip, user_agent`

func (s *PostgresStore) ListByConsent(ctx context.Context, consentID id.ConsentID) ([]models.AuditEntry, error) {
	return s.query(ctx, `SELECT `+auditColumns+` FROM consent_audit WHERE consent_id = $1 ORDER BY sequence`, string(consentID))
}

func (s *PostgresStore) ListByActor(ctx context.Context, actorID string) ([]models.AuditEntry, error) {
	return s.query(ctx, `SELECT `+auditColumns+` FROM consent_audit WHERE actor_id = $1 ORDER BY occurred_at, id`, actorID)
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]models.AuditEntry, error) {
	rows, err := s.execer().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var out []models.AuditEntry
	for rows.Next() {
		var (
			e                            models.AuditEntry
			consentID, action, actorType string
			details                      []byte
		)
		if err := rows.Scan(&consentID, &e.Sequence, &action, &actorType, &e.ActorID,
			&e.Timestamp, &details, &e.SourceIP, &e.UserAgent); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.ConsentID = id.ConsentID(consentID)
		e.Action = models.Action(action)
		e.ActorType = models.ActorType(actorType)
		if err := json.Unmarshal(details, &e.Details); err != nil {
			return nil, fmt.Errorf("decode audit details: %w", err)
		}
		if len(e.Details) == 0 {
			e.Details = nil
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return out, nil
}
