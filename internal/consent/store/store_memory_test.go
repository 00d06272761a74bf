package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentd/internal/consent/models"
	id "consentd/pkg/domain"
	"consentd/pkg/platform/sentinel"
)

var base = time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

func pending(t *testing.T, student id.StudentID, purpose string, at time.Time) *models.Record {
	t.Helper()
	r, err := models.NewPendingRecord(id.NewConsentID(), student, "g-1", purpose, models.MethodEmailOTP, at,
		models.RequestMeta{ClientIP: "10.0.0.1", UserAgent: "test"})
	require.NoError(t, err)
	return r
}

func TestInMemoryCreateAndFind(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	r := pending(t, "s-1", "DATA_SHARING", base)

	require.NoError(t, s.Create(ctx, r))
	assert.Equal(t, int64(1), r.Version)
	assert.ErrorIs(t, s.Create(ctx, r), sentinel.ErrConflict)

	got, err := s.FindByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.StudentID, got.StudentID)

	// returned copies are detached from stored state
	got.PurposeCode = "CHANGED"
	again, err := s.FindByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "DATA_SHARING", again.PurposeCode)

	_, err = s.FindByID(ctx, id.NewConsentID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

// Invariant: Update rejects a write based on a stale read.
// Reason not a feature test: guards the optimistic version check.
func TestInMemoryUpdateVersioning(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	r := pending(t, "s-1", "DATA_SHARING", base)
	require.NoError(t, s.Create(ctx, r))

	a, err := s.FindByID(ctx, r.ID)
	require.NoError(t, err)
	b, err := s.FindByID(ctx, r.ID)
	require.NoError(t, err)

	require.NoError(t, a.Grant(base.Add(time.Minute), "text", nil, models.RequestMeta{}))
	require.NoError(t, s.Update(ctx, a))
	assert.Equal(t, int64(2), a.Version)

	require.NoError(t, b.Discard(base.Add(time.Minute), models.DiscardCancelled))
	assert.ErrorIs(t, s.Update(ctx, b), sentinel.ErrStaleVersion)

	missing := pending(t, "s-1", "DATA_SHARING", base)
	assert.ErrorIs(t, s.Update(ctx, missing), sentinel.ErrNotFound)
}

func TestInMemorySingleGranted(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	first := pending(t, "s-1", "DATA_SHARING", base)
	second := pending(t, "s-1", "DATA_SHARING", base.Add(time.Minute))
	require.NoError(t, s.Create(ctx, first))
	require.NoError(t, s.Create(ctx, second))

	require.NoError(t, first.Grant(base, "text", nil, models.RequestMeta{}))
	require.NoError(t, s.Update(ctx, first))
	require.NoError(t, second.Grant(base, "text", nil, models.RequestMeta{}))
	assert.ErrorIs(t, s.Update(ctx, second), sentinel.ErrConflict)

	granted, err := s.FindGranted(ctx, "s-1", "DATA_SHARING")
	require.NoError(t, err)
	assert.Equal(t, first.ID, granted.ID)

	_, err = s.FindGranted(ctx, "s-2", "DATA_SHARING")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryListings(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	old := pending(t, "s-1", "DATA_SHARING", base)
	fresh := pending(t, "s-1", "PHOTO_PUBLICATION", base.Add(48*time.Hour))
	other := pending(t, "s-2", "DATA_SHARING", base.Add(time.Hour))
	other.GuardianID = "g-2"
	for _, r := range []*models.Record{old, fresh, other} {
		require.NoError(t, s.Create(ctx, r))
	}

	byGuardian, err := s.List(ctx, models.ListFilter{GuardianID: "g-1"})
	require.NoError(t, err)
	assert.Len(t, byGuardian, 2)

	granted := models.StateGranted
	none, err := s.List(ctx, models.ListFilter{StudentID: "s-1", State: &granted})
	require.NoError(t, err)
	assert.Empty(t, none)

	stale, err := s.ListPendingBefore(ctx, base.Add(24*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, stale, 2)
	assert.Equal(t, old.ID, stale[0].ID)

	live, err := s.FindPending(ctx, "s-1", "DATA_SHARING")
	require.NoError(t, err)
	assert.Len(t, live, 1)

	require.NoError(t, other.Grant(base.Add(2*time.Hour), "text", nil, models.RequestMeta{}))
	require.NoError(t, s.Update(ctx, other))
	due, err := s.ListGrantedBefore(ctx, "DATA_SHARING", base.Add(3*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, other.ID, due[0].ID)

	require.NoError(t, old.Discard(base.Add(time.Hour), models.DiscardStale))
	require.NoError(t, s.Update(ctx, old))
	closed, err := s.ListUnredactedClosedBefore(ctx, base.Add(2*time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, closed, 1)
	assert.Equal(t, old.ID, closed[0].ID)
}
