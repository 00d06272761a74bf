package audit

import (
	"context"
	"fmt"
	"sync"

	"consentd/internal/consent/models"
	id "consentd/pkg/domain"
	"consentd/pkg/platform/sentinel"
)

// InMemoryStore is an append-only slice per consent.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[id.ConsentID][]models.AuditEntry
	all     []models.AuditEntry
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{entries: make(map[id.ConsentID][]models.AuditEntry)}
}

// Append requires the next contiguous sequence number.
func (s *InMemoryStore) Append(_ context.Context, entry *models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	trail := s.entries[entry.ConsentID]
	next := int64(len(trail)) + 1
	if entry.Sequence < next {
		return sentinel.ErrConflict
	}
	if entry.Sequence != next {
		return fmt.Errorf("%w: audit sequence %d out of order (want %d)", sentinel.ErrInvalidInput, entry.Sequence, next)
	}
	c := cloneEntry(*entry)
	s.entries[entry.ConsentID] = append(trail, c)
	s.all = append(s.all, c)
	return nil
}

func (s *InMemoryStore) LastSequence(_ context.Context, consentID id.ConsentID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.entries[consentID])), nil
}

func (s *InMemoryStore) ListByConsent(_ context.Context, consentID id.ConsentID) ([]models.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	trail := s.entries[consentID]
	out := make([]models.AuditEntry, 0, len(trail))
	for _, e := range trail {
		out = append(out, cloneEntry(e))
	}
	return out, nil
}

func (s *InMemoryStore) ListByActor(_ context.Context, actorID string) ([]models.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.AuditEntry
	for _, e := range s.all {
		if e.ActorID == actorID {
			out = append(out, cloneEntry(e))
		}
	}
	return out, nil
}
