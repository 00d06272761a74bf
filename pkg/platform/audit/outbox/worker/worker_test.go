package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentd/internal/platform/kafka/producer"
	"consentd/pkg/platform/audit/outbox"
)

type fakePublisher struct {
	mu       sync.Mutex
	messages []*producer.Message
	failKey  string
}

func (p *fakePublisher) Produce(_ context.Context, msg *producer.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if msg.Headers["aggregate_id"] == p.failKey {
		return errors.New("broker unavailable")
	}
	p.messages = append(p.messages, msg)
	return nil
}

func TestRunOncePublishesAndMarks(t *testing.T) {
	ctx := context.Background()
	store := outbox.NewInMemoryStore()
	now := time.Now()
	require.NoError(t, store.Append(ctx, outbox.NewEntry("consent", "cns_a", "REQUESTED", []byte(`{}`), now)))
	require.NoError(t, store.Append(ctx, outbox.NewEntry("consent", "cns_b", "GRANTED", []byte(`{}`), now)))

	pub := &fakePublisher{}
	w := New(store, pub, WithTopic("audit-test"))

	n, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, pub.messages, 2)
	assert.Equal(t, "audit-test", pub.messages[0].Topic)
	assert.Equal(t, "REQUESTED", pub.messages[0].Headers["event_type"])

	pending, err := store.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

// Invariant: an entry that fails to publish stays pending for the next poll.
// Reason not a feature test: exercises retry bookkeeping only.
func TestRunOnceKeepsFailedEntries(t *testing.T) {
	ctx := context.Background()
	store := outbox.NewInMemoryStore()
	require.NoError(t, store.Append(ctx, outbox.NewEntry("consent", "cns_bad", "GRANTED", []byte(`{}`), time.Now())))
	require.NoError(t, store.Append(ctx, outbox.NewEntry("consent", "cns_ok", "GRANTED", []byte(`{}`), time.Now())))

	pub := &fakePublisher{failKey: "cns_bad"}
	w := New(store, pub)

	n, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending, err := store.FetchUnprocessed(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "cns_bad", pending[0].AggregateID)

	pub.failKey = ""
	n, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunOncePrunesPublished(t *testing.T) {
	ctx := context.Background()
	store := outbox.NewInMemoryStore()
	require.NoError(t, store.Append(ctx, outbox.NewEntry("consent", "cns_a", "GRANTED", []byte(`{}`), time.Now())))

	w := New(store, &fakePublisher{}, WithRetention(time.Hour))
	_, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Len(t, store.All(), 1)

	w.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, store.All())
}

func TestRunStopsAndDrains(t *testing.T) {
	store := outbox.NewInMemoryStore()
	pub := &fakePublisher{}
	w := New(store, pub, WithPollInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, store.Append(ctx, outbox.NewEntry("consent", "cns_a", "WITHDRAWN", []byte(`{}`), time.Now())))

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Len(t, pub.messages, 1)
}
