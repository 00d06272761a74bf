package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentd/internal/consent/models"
	id "consentd/pkg/domain"
	"consentd/pkg/platform/sentinel"
)

func entry(consentID id.ConsentID, seq int64, action models.Action, actor string) *models.AuditEntry {
	return &models.AuditEntry{
		ConsentID: consentID,
		Sequence:  seq,
		Action:    action,
		ActorType: models.ActorGuardian,
		ActorID:   actor,
		Timestamp: time.Date(2026, 2, 1, 10, 0, int(seq), 0, time.UTC),
		Details:   map[string]string{models.DetailChannel: "email"},
	}
}

func TestInMemoryAppendOnly(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	cid := id.NewConsentID()

	seq, err := s.LastSequence(ctx, cid)
	require.NoError(t, err)
	assert.Zero(t, seq)

	require.NoError(t, s.Append(ctx, entry(cid, 1, models.ActionRequested, "g-1")))
	require.NoError(t, s.Append(ctx, entry(cid, 2, models.ActionOTPSent, "g-1")))

	assert.ErrorIs(t, s.Append(ctx, entry(cid, 2, models.ActionGranted, "g-1")), sentinel.ErrConflict)
	assert.ErrorIs(t, s.Append(ctx, entry(cid, 4, models.ActionGranted, "g-1")), sentinel.ErrInvalidInput)

	seq, err = s.LastSequence(ctx, cid)
	require.NoError(t, err)
	assert.Equal(t, int64(2), seq)

	trail, err := s.ListByConsent(ctx, cid)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, models.ActionRequested, trail[0].Action)

	// mutating a returned entry must not rewrite history
	trail[0].Details[models.DetailChannel] = "sms"
	again, err := s.ListByConsent(ctx, cid)
	require.NoError(t, err)
	assert.Equal(t, "email", again[0].Details[models.DetailChannel])
}

func TestInMemoryListByActor(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()
	a, b := id.NewConsentID(), id.NewConsentID()
	require.NoError(t, s.Append(ctx, entry(a, 1, models.ActionRequested, "g-1")))
	require.NoError(t, s.Append(ctx, entry(b, 1, models.ActionRequested, "g-2")))
	require.NoError(t, s.Append(ctx, entry(a, 2, models.ActionOTPSent, "g-1")))

	got, err := s.ListByActor(ctx, "g-1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestEncodeEvent(t *testing.T) {
	e := entry(id.NewConsentID(), 3, models.ActionGranted, "g-1")
	e.SourceIP = "203.0.113.5"

	b, err := EncodeEvent(*e)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "GRANTED", decoded["action"])
	assert.EqualValues(t, 3, decoded["sequence"])
	assert.NotContains(t, string(b), "203.0.113.5")
}
