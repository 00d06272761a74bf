//go:build integration

package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"consentd/internal/consent/identity"
	id "consentd/pkg/domain"
	"consentd/pkg/platform/sentinel"
	"consentd/pkg/testutil/containers"
)

type PostgresIdentitySuite struct {
	suite.Suite
	postgres     *containers.PostgresContainer
	directory    *identity.PostgresDirectory
	attestations *identity.PostgresAttestations
}

func TestPostgresIdentitySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresIdentitySuite))
}

func (s *PostgresIdentitySuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.directory = identity.NewPostgresDirectory(s.postgres.DB)
	s.attestations = identity.NewPostgresAttestations(s.postgres.DB)
}

func (s *PostgresIdentitySuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateConsentTables(context.Background()))
}

func (s *PostgresIdentitySuite) TestGuardianshipLifecycle() {
	ctx := context.Background()
	guardian, student := id.GuardianID("g-1"), id.StudentID("s-1")

	g, err := s.directory.Guardianship(ctx, guardian, student)
	s.Require().NoError(err)
	s.False(g.Authorized)

	s.Require().NoError(s.directory.Link(ctx, guardian, student, identity.Guardianship{
		Jurisdiction: "IN-KA",
		Email:        "parent@example.com",
	}))
	g, err = s.directory.Guardianship(ctx, guardian, student)
	s.Require().NoError(err)
	s.True(g.Authorized)
	s.Equal("IN-KA", g.Jurisdiction)
	s.Equal("parent@example.com", g.Email)

	s.Require().NoError(s.directory.Revoke(ctx, guardian, student))
	g, err = s.directory.Guardianship(ctx, guardian, student)
	s.Require().NoError(err)
	s.False(g.Authorized)
	s.ErrorIs(s.directory.Revoke(ctx, guardian, student), sentinel.ErrNotFound)

	s.Require().NoError(s.directory.Link(ctx, guardian, student, identity.Guardianship{Jurisdiction: "IN-KA"}))
	g, err = s.directory.Guardianship(ctx, guardian, student)
	s.Require().NoError(err)
	s.True(g.Authorized)
}

func (s *PostgresIdentitySuite) TestAttestations() {
	ctx := context.Background()
	att := identity.Attestation{
		Ref:        "att-1",
		ConsentID:  id.NewConsentID(),
		AttestorID: "admin-7",
		AttestedAt: time.Now().UTC().Truncate(time.Microsecond),
		Note:       "verified in person",
	}

	_, err := s.attestations.VerifyAttestation(ctx, "att-1")
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.attestations.Record(ctx, att))
	s.ErrorIs(s.attestations.Record(ctx, att), sentinel.ErrConflict)

	got, err := s.attestations.VerifyAttestation(ctx, "att-1")
	s.Require().NoError(err)
	s.Equal(att.ConsentID, got.ConsentID)
	s.Equal("admin-7", got.AttestorID)
	s.True(att.AttestedAt.Equal(got.AttestedAt))
}
