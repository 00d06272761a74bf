package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"consentd/internal/consent/metrics"
	"consentd/internal/consent/models"
	id "consentd/pkg/domain"
	"consentd/pkg/requestcontext"
)

// RecordLister finds candidates for each sweep phase. Candidates are
// re-checked under the scope lock before anything is written.
type RecordLister interface {
	ListGrantedBefore(ctx context.Context, purposeCode string, grantedBefore time.Time, limit int) ([]*models.Record, error)
	ListPendingBefore(ctx context.Context, requestedBefore time.Time, limit int) ([]*models.Record, error)
	ListUnredactedClosedBefore(ctx context.Context, closedBefore time.Time, limit int) ([]*models.Record, error)
}

// PurposeLister supplies every purpose, active or not, so consent granted
// under a retired purpose still expires.
type PurposeLister interface {
	List(ctx context.Context) ([]models.Purpose, error)
}

// Lifecycle applies system transitions. *service.Service implements it.
type Lifecycle interface {
	ExpireConsent(ctx context.Context, consentID id.ConsentID) (bool, error)
	DiscardStalePending(ctx context.Context, consentID id.ConsentID, requestedBefore time.Time) (bool, error)
	Redact(ctx context.Context, consentID id.ConsentID, closedBefore time.Time) (bool, error)
}

// Result summarizes one sweep.
type Result struct {
	Expired   int
	Discarded int
	Redacted  int
}

// Sweeper expires granted consent past retention, discards stale pending
// requests and redacts request metadata from long-closed records.
type Sweeper struct {
	records     RecordLister
	purposes    PurposeLister
	lifecycle   Lifecycle
	interval    time.Duration
	pendingTTL  time.Duration
	redactAfter time.Duration
	batchSize   int
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

type Option func(*Sweeper)

// WithInterval overrides the hourly default when greater than zero.
func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithPendingTTL sets how long a request may wait for proof. Zero disables
// the discard phase.
func WithPendingTTL(d time.Duration) Option {
	return func(s *Sweeper) {
		s.pendingTTL = d
	}
}

// WithRedactAfter sets how long closed records keep request metadata. Zero
// disables redaction.
func WithRedactAfter(d time.Duration) Option {
	return func(s *Sweeper) {
		s.redactAfter = d
	}
}

func WithBatchSize(n int) Option {
	return func(s *Sweeper) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a Sweeper with required dependencies and options applied.
func New(records RecordLister, purposes PurposeLister, lifecycle Lifecycle, opts ...Option) (*Sweeper, error) {
	if records == nil || purposes == nil || lifecycle == nil {
		return nil, fmt.Errorf("records, purposes, and lifecycle are required")
	}
	s := &Sweeper{
		records:    records,
		purposes:   purposes,
		lifecycle:  lifecycle,
		interval:   time.Hour,
		pendingTTL: 24 * time.Hour,
		batchSize:  200,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// Start runs a sweep every interval until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "consent sweep failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs one sweep at the context's request time. Every phase runs
// even when an earlier one fails; errors are joined. Re-running a sweep has
// no further effect on records it already handled.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	start := time.Now()
	now := requestcontext.Now(ctx)
	ctx = requestcontext.WithTime(ctx, now)

	var res Result
	var errs []error

	purposes, err := s.purposes.List(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("list purposes: %w", err))
	}
	for _, p := range purposes {
		cutoff := now.Add(-p.Retention())
		n, err := s.drain(ctx, func(ctx context.Context, limit int) ([]*models.Record, error) {
			return s.records.ListGrantedBefore(ctx, p.Code, cutoff, limit)
		}, s.lifecycle.ExpireConsent)
		res.Expired += n
		if err != nil {
			errs = append(errs, fmt.Errorf("expire %s: %w", p.Code, err))
		}
	}

	if s.pendingTTL > 0 {
		cutoff := now.Add(-s.pendingTTL)
		n, err := s.drain(ctx, func(ctx context.Context, limit int) ([]*models.Record, error) {
			return s.records.ListPendingBefore(ctx, cutoff, limit)
		}, func(ctx context.Context, consentID id.ConsentID) (bool, error) {
			return s.lifecycle.DiscardStalePending(ctx, consentID, cutoff)
		})
		res.Discarded = n
		if err != nil {
			errs = append(errs, fmt.Errorf("discard stale requests: %w", err))
		}
	}

	if s.redactAfter > 0 {
		cutoff := now.Add(-s.redactAfter)
		n, err := s.drain(ctx, func(ctx context.Context, limit int) ([]*models.Record, error) {
			return s.records.ListUnredactedClosedBefore(ctx, cutoff, limit)
		}, func(ctx context.Context, consentID id.ConsentID) (bool, error) {
			return s.lifecycle.Redact(ctx, consentID, cutoff)
		})
		res.Redacted = n
		if err != nil {
			errs = append(errs, fmt.Errorf("redact closed records: %w", err))
		}
	}

	err = errors.Join(errs...)
	s.metrics.ObserveSweep(time.Since(start), err != nil)
	if res != (Result{}) {
		s.logger.InfoContext(ctx, "consent sweep completed",
			"expired", res.Expired,
			"discarded", res.Discarded,
			"redacted", res.Redacted,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return res, err
}

// drain pages through candidates until a page is short or holds nothing new.
// Records that fail or turn out not to be due are skipped for the rest of the
// sweep: each later page asks for that many extra rows, so a stuck record
// never hides the ones listed after it.
func (s *Sweeper) drain(ctx context.Context, page func(ctx context.Context, limit int) ([]*models.Record, error), apply func(context.Context, id.ConsentID) (bool, error)) (int, error) {
	var errs []error
	skip := make(map[id.ConsentID]struct{})
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, errors.Join(append(errs, err)...)
		}
		limit := s.batchSize + len(skip)
		batch, err := page(ctx, limit)
		if err != nil {
			return total, errors.Join(append(errs, err)...)
		}
		fresh := 0
		for _, rec := range batch {
			if _, seen := skip[rec.ID]; seen {
				continue
			}
			fresh++
			ok, err := apply(ctx, rec.ID)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", rec.ID, err))
				skip[rec.ID] = struct{}{}
				continue
			}
			if ok {
				total++
			} else {
				skip[rec.ID] = struct{}{}
			}
		}
		if len(batch) < limit || fresh == 0 {
			return total, errors.Join(errs...)
		}
	}
}
