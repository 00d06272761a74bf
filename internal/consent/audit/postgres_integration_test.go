//go:build integration

package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"consentd/internal/consent/audit"
	"consentd/internal/consent/models"
	"consentd/internal/platform/database"
	id "consentd/pkg/domain"
	"consentd/pkg/platform/sentinel"
	"consentd/pkg/testutil/containers"
)

type PostgresAuditSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *audit.PostgresStore
}

func TestPostgresAuditSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresAuditSuite))
}

func (s *PostgresAuditSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = audit.NewPostgres(s.postgres.DB)
}

func (s *PostgresAuditSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateConsentTables(context.Background()))
}

func (s *PostgresAuditSuite) appendEntry(cid id.ConsentID, seq int64, action models.Action) error {
	return s.store.Append(context.Background(), &models.AuditEntry{
		ConsentID: cid,
		Sequence:  seq,
		Action:    action,
		ActorType: models.ActorGuardian,
		ActorID:   "g-1",
		Timestamp: time.Now().UTC(),
		Details:   map[string]string{models.DetailReason: "test"},
		SourceIP:  "198.51.100.1",
	})
}

func (s *PostgresAuditSuite) TestAppendAndList() {
	ctx := context.Background()
	cid := id.NewConsentID()
	s.Require().NoError(s.appendEntry(cid, 1, models.ActionRequested))
	s.Require().NoError(s.appendEntry(cid, 2, models.ActionOTPSent))
	s.ErrorIs(s.appendEntry(cid, 2, models.ActionGranted), sentinel.ErrConflict)

	seq, err := s.store.LastSequence(ctx, cid)
	s.Require().NoError(err)
	s.Equal(int64(2), seq)

	trail, err := s.store.ListByConsent(ctx, cid)
	s.Require().NoError(err)
	s.Require().Len(trail, 2)
	s.Equal("test", trail[1].Details[models.DetailReason])

	byActor, err := s.store.ListByActor(ctx, "g-1")
	s.Require().NoError(err)
	s.Len(byActor, 2)
}

// Invariant: the audit table rejects UPDATE and DELETE at the database level.
// Reason not a feature test: proves tamper resistance holds even for raw SQL.
func (s *PostgresAuditSuite) TestTriggerRejectsMutation() {
	ctx := context.Background()
	cid := id.NewConsentID()
	s.Require().NoError(s.appendEntry(cid, 1, models.ActionRequested))

	_, err := s.postgres.Exec(ctx, `UPDATE consent_audit SET action = 'GRANTED' WHERE consent_id = $1`, string(cid))
	s.Require().Error(err)
	s.True(database.IsRaisedException(err))

	_, err = s.postgres.Exec(ctx, `DELETE FROM consent_audit WHERE consent_id = $1`, string(cid))
	s.Require().Error(err)
	s.True(database.IsRaisedException(err))

	_, err = s.postgres.Exec(ctx, `TRUNCATE TABLE consent_audit`)
	s.Require().Error(err)
	s.True(database.IsRaisedException(err))

	_, err = s.postgres.Exec(ctx, `TRUNCATE TABLE consent_records, consent_audit`)
	s.Require().Error(err, "a multi-table truncate must not slip past the guard")

	trail, err := s.store.ListByConsent(ctx, cid)
	s.Require().NoError(err)
	s.Len(trail, 1)
}
