package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"consentd/internal/consent/models"
	"consentd/internal/platform/database"
	id "consentd/pkg/domain"
	"consentd/pkg/platform/sentinel"
)

// PostgresStore persists consent records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPostgres constructs a PostgreSQL-backed record store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx constructs a record store bound to a transaction.
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

const recordColumns = `consent_id, student_id, guardian_id, purpose_code, state, method,
	requested_at, request_ip, request_user_agent,
	consent_text, granted_at, verification_metadata, grant_ip, grant_user_agent,
	withdrawn_at, withdraw_reason, expired_at, discarded_at, discard_reason,
	redacted_at, version`

func (s *PostgresStore) Create(ctx context.Context, r *models.Record) error {
	if r == nil {
		return fmt.Errorf("consent record is required")
	}
	meta, err := encodeMetadata(r.VerificationMetadata)
	if err != nil {
		return err
	}
	query := `INSERT INTO consent_records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, 1)`
	_, err = s.execer().ExecContext(ctx, query,
		string(r.ID),
		string(r.StudentID),
		string(r.GuardianID),
		r.PurposeCode,
		string(r.State),
		string(r.Method),
		r.RequestedAt,
		r.RequestIP,
		r.RequestUserAgent,
		r.ConsentText,
		r.GrantedAt,
		meta,
		r.GrantIP,
		r.GrantUserAgent,
		r.WithdrawnAt,
		r.WithdrawReason,
		r.ExpiredAt,
		r.DiscardedAt,
		string(r.DiscardReason),
		r.RedactedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create consent: %w", err)
	}
	r.Version = 1
	return nil
}

// FindByID locks the row when the store is bound to a transaction.
func (s *PostgresStore) FindByID(ctx context.Context, consentID id.ConsentID) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM consent_records WHERE consent_id = $1` + s.lockClause()
	r, err := scanRecord(s.execer().QueryRowContext(ctx, query, string(consentID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find consent: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) FindGranted(ctx context.Context, studentID id.StudentID, purposeCode string) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM consent_records
		WHERE student_id = $1 AND purpose_code = $2 AND state = 'GRANTED'` + s.lockClause()
	r, err := scanRecord(s.execer().QueryRowContext(ctx, query, string(studentID), purposeCode))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find granted consent: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) FindPending(ctx context.Context, studentID id.StudentID, purposeCode string) ([]*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM consent_records
		WHERE student_id = $1 AND purpose_code = $2
		  AND state = 'PENDING_VERIFICATION' AND discarded_at IS NULL
		ORDER BY requested_at` + s.lockClause()
	return s.queryRecords(ctx, "find pending consents", query, string(studentID), purposeCode)
}

func (s *PostgresStore) Update(ctx context.Context, r *models.Record) error {
	if r == nil {
		return fmt.Errorf("consent record is required")
	}
	meta, err := encodeMetadata(r.VerificationMetadata)
	if err != nil {
		return err
	}
	query := `
		UPDATE consent_records SET
			state = $2, request_ip = $3, request_user_agent = $4,
			consent_text = $5, granted_at = $6, verification_metadata = $7,
			grant_ip = $8, grant_user_agent = $9,
			withdrawn_at = $10, withdraw_reason = $11, expired_at = $12,
			discarded_at = $13, discard_reason = $14, redacted_at = $15,
			version = version + 1
		WHERE consent_id = $1 AND version = $16
	`
	res, err := s.execer().ExecContext(ctx, query,
		string(r.ID),
		string(r.State),
		r.RequestIP,
		r.RequestUserAgent,
		r.ConsentText,
		r.GrantedAt,
		meta,
		r.GrantIP,
		r.GrantUserAgent,
		r.WithdrawnAt,
		r.WithdrawReason,
		r.ExpiredAt,
		r.DiscardedAt,
		string(r.DiscardReason),
		r.RedactedAt,
		r.Version,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("update consent: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update consent rows: %w", err)
	}
	if rows == 0 {
		var exists bool
		err := s.execer().QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM consent_records WHERE consent_id = $1)`, string(r.ID)).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check consent exists: %w", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrStaleVersion
	}
	r.Version++
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter) ([]*models.Record, error) {
	var (
		conds []string
		args  []any
	)
	if !filter.GuardianID.IsNil() {
		args = append(args, string(filter.GuardianID))
		conds = append(conds, "guardian_id = $"+strconv.Itoa(len(args)))
	}
	if !filter.StudentID.IsNil() {
		args = append(args, string(filter.StudentID))
		conds = append(conds, "student_id = $"+strconv.Itoa(len(args)))
	}
	if filter.State != nil {
		args = append(args, string(*filter.State))
		conds = append(conds, "state = $"+strconv.Itoa(len(args)))
	}
	query := `SELECT ` + recordColumns + ` FROM consent_records`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY requested_at, row_id"
	return s.queryRecords(ctx, "list consents", query, args...)
}

func (s *PostgresStore) ListGrantedBefore(ctx context.Context, purposeCode string, grantedBefore time.Time, limit int) ([]*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM consent_records
		WHERE state = 'GRANTED' AND purpose_code = $1 AND granted_at <= $2
		ORDER BY granted_at LIMIT $3`
	return s.queryRecords(ctx, "list expiry candidates", query, purposeCode, grantedBefore, limitOrAll(limit))
}

func (s *PostgresStore) ListPendingBefore(ctx context.Context, requestedBefore time.Time, limit int) ([]*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM consent_records
		WHERE state = 'PENDING_VERIFICATION' AND discarded_at IS NULL AND requested_at < $1
		ORDER BY requested_at LIMIT $2`
	return s.queryRecords(ctx, "list stale pending", query, requestedBefore, limitOrAll(limit))
}

func (s *PostgresStore) ListUnredactedClosedBefore(ctx context.Context, closedBefore time.Time, limit int) ([]*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM consent_records
		WHERE redacted_at IS NULL
		  AND COALESCE(withdrawn_at, expired_at, discarded_at) < $1
		ORDER BY COALESCE(withdrawn_at, expired_at, discarded_at) LIMIT $2`
	return s.queryRecords(ctx, "list redaction candidates", query, closedBefore, limitOrAll(limit))
}

func (s *PostgresStore) lockClause() string {
	if s.tx != nil {
		return " FOR UPDATE"
	}
	return ""
}

func (s *PostgresStore) queryRecords(ctx context.Context, op, query string, args ...any) ([]*models.Record, error) {
	rows, err := s.execer().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consent: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consents: %w", err)
	}
	return records, nil
}

// limitOrAll maps a non-positive limit to NULL, which Postgres reads as no limit.
func limitOrAll(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

func encodeMetadata(meta map[string]string) ([]byte, error) {
	if meta == nil {
		return nil, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode verification metadata: %w", err)
	}
	return b, nil
}

type recordRow interface {
	Scan(dest ...any) error
}

func scanRecord(row recordRow) (*models.Record, error) {
	var (
		r                                 models.Record
		consentID, studentID, guardianID  string
		state, method, discardReason      string
		grantedAt, withdrawnAt, expiredAt sql.NullTime
		discardedAt, redactedAt           sql.NullTime
		meta                              []byte
	)
	err := row.Scan(
		&consentID, &studentID, &guardianID, &r.PurposeCode, &state, &method,
		&r.RequestedAt, &r.RequestIP, &r.RequestUserAgent,
		&r.ConsentText, &grantedAt, &meta, &r.GrantIP, &r.GrantUserAgent,
		&withdrawnAt, &r.WithdrawReason, &expiredAt, &discardedAt, &discardReason,
		&redactedAt, &r.Version,
	)
	if err != nil {
		return nil, err
	}
	r.ID = id.ConsentID(consentID)
	r.StudentID = id.StudentID(studentID)
	r.GuardianID = id.GuardianID(guardianID)
	r.State = models.State(state)
	r.Method = models.Method(method)
	r.DiscardReason = models.DiscardReason(discardReason)
	r.GrantedAt = nullTime(grantedAt)
	r.WithdrawnAt = nullTime(withdrawnAt)
	r.ExpiredAt = nullTime(expiredAt)
	r.DiscardedAt = nullTime(discardedAt)
	r.RedactedAt = nullTime(redactedAt)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &r.VerificationMetadata); err != nil {
			return nil, fmt.Errorf("decode verification metadata: %w", err)
		}
	}
	return &r, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
