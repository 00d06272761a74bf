// Package worker relays outbox entries to Kafka.
package worker

import (
	"context"
	"log/slog"
	"time"

	"consentd/internal/platform/kafka/producer"
	"consentd/pkg/platform/audit/outbox"
	"consentd/pkg/platform/audit/outbox/metrics"
)

// DefaultTopic carries the consent audit stream.
const DefaultTopic = "consent.audit.events"

// Publisher is the subset of the Kafka producer the worker needs.
type Publisher interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Worker polls the outbox and publishes pending entries.
type Worker struct {
	store        outbox.Store
	publisher    Publisher
	topic        string
	batchSize    int
	pollInterval time.Duration
	retainFor    time.Duration
	metrics      *metrics.Metrics
	logger       *slog.Logger
	now          func() time.Time
}

// Option configures the Worker.
type Option func(*Worker)

func WithTopic(topic string) Option {
	return func(w *Worker) {
		w.topic = topic
	}
}

// WithBatchSize sets the maximum number of entries to fetch per poll.
func WithBatchSize(size int) Option {
	return func(w *Worker) {
		w.batchSize = size
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		w.pollInterval = interval
	}
}

// WithRetention keeps published entries for d before they are deleted.
// Zero keeps them forever.
func WithRetention(d time.Duration) Option {
	return func(w *Worker) {
		w.retainFor = d
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// New creates a new outbox worker.
func New(store outbox.Store, publisher Publisher, opts ...Option) *Worker {
	w := &Worker{
		store:        store,
		publisher:    publisher,
		topic:        DefaultTopic,
		batchSize:    100,
		pollInterval: 500 * time.Millisecond,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is cancelled, then drains what is left with a short deadline.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.drain()
			return nil
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
				w.logger.ErrorContext(ctx, "outbox poll failed", "error", err)
			}
		}
	}
}

// RunOnce publishes one batch and returns how many entries were published.
// Entries that fail to publish stay pending and are retried on the next poll.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() {
		if w.metrics != nil {
			w.metrics.ObservePollDuration(time.Since(start).Seconds())
		}
	}()

	entries, err := w.store.FetchUnprocessed(ctx, w.batchSize)
	if err != nil {
		if w.metrics != nil {
			w.metrics.IncPublishFailures()
		}
		return 0, err
	}
	if w.metrics != nil && len(entries) > 0 {
		w.metrics.ObserveBatchSize(len(entries))
	}

	published := 0
	for _, entry := range entries {
		if err := w.publish(ctx, entry); err != nil {
			w.logger.ErrorContext(ctx, "failed to publish outbox entry",
				"id", entry.ID,
				"event_type", entry.EventType,
				"error", err,
			)
			if w.metrics != nil {
				w.metrics.IncPublishFailures()
			}
			continue
		}
		// A published but unmarked entry is published again; consumers dedupe on the key.
		if err := w.store.MarkProcessed(ctx, entry.ID, w.now()); err != nil {
			w.logger.ErrorContext(ctx, "failed to mark entry as processed",
				"id", entry.ID,
				"error", err,
			)
			continue
		}
		published++
		if w.metrics != nil {
			w.metrics.IncPublished()
		}
	}

	w.updateDepth(ctx, entries)
	if w.retainFor > 0 {
		if n, err := w.store.DeleteProcessedBefore(ctx, w.now().Add(-w.retainFor)); err != nil {
			w.logger.WarnContext(ctx, "failed to prune outbox", "error", err)
		} else if n > 0 {
			w.logger.DebugContext(ctx, "pruned outbox", "deleted", n)
		}
	}
	return published, nil
}

func (w *Worker) publish(ctx context.Context, entry *outbox.Entry) error {
	start := time.Now()
	err := w.publisher.Produce(ctx, &producer.Message{
		Topic: w.topic,
		Key:   []byte(entry.ID.String()),
		Value: entry.Payload,
		Headers: map[string]string{
			"aggregate_type": entry.AggregateType,
			"aggregate_id":   entry.AggregateID,
			"event_type":     entry.EventType,
		},
	})
	if err != nil {
		return err
	}
	if w.metrics != nil {
		w.metrics.ObservePublishDuration(time.Since(start).Seconds())
	}
	return nil
}

func (w *Worker) updateDepth(ctx context.Context, batch []*outbox.Entry) {
	if w.metrics == nil {
		return
	}
	count, err := w.store.CountPending(ctx)
	if err != nil {
		return
	}
	w.metrics.SetPendingDepth(count)
	if len(batch) > 0 && count > 0 {
		w.metrics.SetOldestPendingAge(w.now().Sub(batch[0].CreatedAt).Seconds())
	} else {
		w.metrics.SetOldestPendingAge(0)
	}
}

func (w *Worker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	w.logger.InfoContext(ctx, "draining outbox worker")
	for ctx.Err() == nil {
		n, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.ErrorContext(ctx, "failed to drain outbox", "error", err)
			return
		}
		if n == 0 {
			return
		}
	}
}
