package main

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"consentd/internal/consent/audit"
	"consentd/internal/consent/metrics"
	consentservice "consentd/internal/consent/service"
	consentstore "consentd/internal/consent/store"
	"consentd/internal/platform/database"
	dErrors "consentd/pkg/domain-errors"
	outboxpostgres "consentd/pkg/platform/audit/outbox/store/postgres"
)

const (
	defaultConsentTxTimeout = 5 * time.Second
	maxConsentTxAttempts    = 3
)

// consentPostgresTx runs each mutation in a transaction holding an advisory
// lock on the (student, purpose) scope. Serialization failures and deadlocks
// are retried, so fn writes only through the bound stores; challenge
// consumption and invalidation happen after RunInTx returns.
type consentPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func newConsentPostgresTx(db *sql.DB, m *metrics.Metrics, logger *slog.Logger) *consentPostgresTx {
	return &consentPostgresTx{db: db, timeout: defaultConsentTxTimeout, metrics: m, logger: logger}
}

func (t *consentPostgresTx) RunInTx(ctx context.Context, scope string, fn func(ctx context.Context, tx consentservice.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	var err error
	for attempt := 1; attempt <= maxConsentTxAttempts; attempt++ {
		err = t.runOnce(ctx, scope, fn)
		if err == nil || !database.IsRetryable(err) || ctx.Err() != nil {
			break
		}
		t.logger.WarnContext(ctx, "retrying consent transaction",
			"scope", scope,
			"attempt", attempt,
			"error", err,
		)
	}
	return err
}

func (t *consentPostgresTx) runOnce(ctx context.Context, scope string, fn func(ctx context.Context, tx consentservice.Stores) error) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // rollback after commit is no-op
	}()

	lockStart := time.Now()
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, scope); err != nil {
		if ctx.Err() != nil {
			t.metrics.IncrementLockTimeout()
			return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: lock wait exceeded deadline")
		}
		return err
	}
	t.metrics.ObserveLockWait(time.Since(lockStart))

	stores := consentservice.Stores{
		Records: consentstore.NewPostgresTx(tx),
		Audit:   audit.NewPostgresTx(tx),
		Outbox:  outboxpostgres.NewTx(tx),
	}
	if err := fn(ctx, stores); err != nil {
		return err
	}
	return tx.Commit()
}
