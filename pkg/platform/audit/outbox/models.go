package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Entry is an event waiting in the outbox. It is written in the same
// transaction as the consent mutation it describes and published later.
type Entry struct {
	ID            uuid.UUID
	AggregateType string // "consent"
	AggregateID   string // consent ID
	EventType     string // audit action, e.g. "GRANTED"
	Payload       []byte // JSON-encoded audit entry
	CreatedAt     time.Time
	ProcessedAt   *time.Time // nil until published
}

// IsPending returns true if this entry has not been published yet.
func (e *Entry) IsPending() bool {
	return e.ProcessedAt == nil
}

// NewEntry creates a new outbox entry with a generated UUID.
func NewEntry(aggregateType, aggregateID, eventType string, payload []byte, now time.Time) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     now,
	}
}
