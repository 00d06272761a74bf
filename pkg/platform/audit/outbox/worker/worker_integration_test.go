//go:build integration

package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"consentd/internal/platform/kafka"
	"consentd/internal/platform/kafka/producer"
	"consentd/pkg/platform/audit/outbox"
	outboxpostgres "consentd/pkg/platform/audit/outbox/store/postgres"
	"consentd/pkg/platform/audit/outbox/worker"
	"consentd/pkg/testutil/containers"
)

type WorkerIntegrationSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	broker   *containers.RedpandaContainer
	store    *outboxpostgres.Store
	producer *producer.Producer
}

func TestWorkerIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(WorkerIntegrationSuite))
}

func (s *WorkerIntegrationSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.broker = mgr.GetRedpanda(s.T())
	s.store = outboxpostgres.New(s.postgres.DB)

	cfg := kafka.DefaultProducerConfig()
	cfg.Brokers = s.broker.Brokers
	prod, err := producer.New(cfg, nil)
	s.Require().NoError(err)
	s.producer = prod
}

func (s *WorkerIntegrationSuite) TearDownSuite() {
	if s.producer != nil {
		_ = s.producer.Close(context.Background())
	}
}

func (s *WorkerIntegrationSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateConsentTables(context.Background()))
}

// Invariant: entries written to the outbox appear on the topic and are marked processed.
func (s *WorkerIntegrationSuite) TestOutboxToKafkaFlow() {
	ctx := context.Background()
	topic := "test-consent-audit"
	s.Require().NoError(s.broker.CreateTopic(ctx, topic, 1))

	entry := outbox.NewEntry("consent", "cns_0123456789abcdef0123456789abcdef", "GRANTED",
		[]byte(`{"action":"GRANTED","sequence":3}`), time.Now())
	s.Require().NoError(s.store.Append(ctx, entry))

	w := worker.New(s.store, s.producer, worker.WithTopic(topic))
	n, err := w.RunOnce(ctx)
	s.Require().NoError(err)
	s.Equal(1, n)

	consumer, err := s.broker.NewConsumer("outbox-test", topic)
	s.Require().NoError(err)
	defer consumer.Close()

	rec := s.broker.WaitForRecord(ctx, consumer, 10*time.Second, func(r *kgo.Record) bool {
		return string(r.Key) == entry.ID.String()
	})
	s.Require().NotNil(rec)
	s.JSONEq(`{"action":"GRANTED","sequence":3}`, string(rec.Value))

	pending, err := s.store.CountPending(ctx)
	s.Require().NoError(err)
	s.Zero(pending)
}
