package service

import (
	"context"
	"time"

	"consentd/internal/consent/audit"
	"consentd/internal/consent/metrics"
	"consentd/internal/consent/store"
	pkgerrors "consentd/pkg/domain-errors"
	"consentd/pkg/platform/audit/outbox"
	platformsync "consentd/pkg/platform/sync"
)

// Stores is the set of stores a lifecycle transaction may touch. Inside
// RunInTx they are bound to the transaction.
type Stores struct {
	Records store.Store
	Audit   audit.Store
	Outbox  outbox.Store
}

// ConsentTx provides a transactional boundary for consent mutations. scope is
// the per (student, purpose) lock key; every mutation of records in that scope
// runs serialized behind it.
type ConsentTx interface {
	RunInTx(ctx context.Context, scope string, fn func(ctx context.Context, tx Stores) error) error
}

// defaultConsentTxTimeout is the maximum duration for a consent transaction.
const defaultConsentTxTimeout = 5 * time.Second

// ShardedTx serializes in-memory mutations per scope with a sharded mutex.
// fn writes to staged copies of the stores; the writes are applied only when
// fn returns nil, so an error discards every mutation it made.
type ShardedTx struct {
	mu      *platformsync.ShardedMutex
	stores  Stores
	timeout time.Duration
	metrics *metrics.Metrics
}

type ShardedTxOption func(*ShardedTx)

func WithTxTimeout(d time.Duration) ShardedTxOption {
	return func(t *ShardedTx) {
		if d > 0 {
			t.timeout = d
		}
	}
}

func WithTxMetrics(m *metrics.Metrics) ShardedTxOption {
	return func(t *ShardedTx) {
		t.metrics = m
	}
}

// NewShardedTx wraps in-memory stores.
func NewShardedTx(stores Stores, opts ...ShardedTxOption) *ShardedTx {
	t := &ShardedTx{
		mu:      platformsync.NewShardedMutex(),
		stores:  stores,
		timeout: defaultConsentTxTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *ShardedTx) RunInTx(ctx context.Context, scope string, fn func(ctx context.Context, tx Stores) error) error {
	if err := ctx.Err(); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	lockStart := time.Now()
	t.mu.Lock(scope)
	t.metrics.ObserveLockWait(time.Since(lockStart))
	defer t.mu.Unlock(scope)

	// The wait may have outlived the deadline.
	if err := ctx.Err(); err != nil {
		t.metrics.IncrementLockTimeout()
		return pkgerrors.Wrap(err, pkgerrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	tx := newStaged(t.stores)
	if err := fn(ctx, tx.stores()); err != nil {
		return err
	}
	if err := tx.commit(ctx); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CodeInternal, "failed to commit consent transaction")
	}
	return nil
}
