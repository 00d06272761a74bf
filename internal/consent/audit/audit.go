// Package audit is the append-only history of every consent record.
//
// Entries are written inside the same transaction as the record mutation they
// describe. Stores expose no update or delete; the Postgres table additionally
// rejects both with a trigger.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"consentd/internal/consent/models"
	id "consentd/pkg/domain"
)

// Store persists audit entries. Append returns sentinel.ErrConflict when the
// (consent, sequence) pair already exists.
type Store interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
	// LastSequence returns 0 for a consent with no history.
	LastSequence(ctx context.Context, consentID id.ConsentID) (int64, error)
	ListByConsent(ctx context.Context, consentID id.ConsentID) ([]models.AuditEntry, error)
	ListByActor(ctx context.Context, actorID string) ([]models.AuditEntry, error)
}

// Event is the wire form of an entry on the audit stream.
type Event struct {
	ConsentID string            `json:"consent_id"`
	Sequence  int64             `json:"sequence"`
	Action    string            `json:"action"`
	ActorType string            `json:"actor_type"`
	ActorID   string            `json:"actor_id"`
	Timestamp time.Time         `json:"timestamp"`
	Details   map[string]string `json:"details,omitempty"`
}

// EncodeEvent renders an entry for the outbox. Source IP and user agent stay
// in the database and are not streamed.
func EncodeEvent(e models.AuditEntry) ([]byte, error) {
	b, err := json.Marshal(Event{
		ConsentID: string(e.ConsentID),
		Sequence:  e.Sequence,
		Action:    string(e.Action),
		ActorType: string(e.ActorType),
		ActorID:   e.ActorID,
		Timestamp: e.Timestamp.UTC(),
		Details:   e.Details,
	})
	if err != nil {
		return nil, fmt.Errorf("encode audit event: %w", err)
	}
	return b, nil
}

func cloneEntry(e models.AuditEntry) models.AuditEntry {
	e.Details = maps.Clone(e.Details)
	return e
}
