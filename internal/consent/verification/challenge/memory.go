// Package challenge stores pending verification challenges keyed by consent ID.
package challenge

import (
	"context"
	"slices"
	"sync"

	"consentd/internal/consent/models"
	id "consentd/pkg/domain"
	"consentd/pkg/platform/sentinel"
)

// InMemoryStore keeps challenges in process memory.
type InMemoryStore struct {
	mu         sync.Mutex
	challenges map[id.ConsentID]*models.Challenge
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{challenges: make(map[id.ConsentID]*models.Challenge)}
}

// Save replaces any challenge already held for the consent.
func (s *InMemoryStore) Save(_ context.Context, ch *models.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[ch.ConsentID] = cloneChallenge(ch)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, consentID id.ConsentID) (*models.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challenges[consentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneChallenge(ch), nil
}

// Delete is idempotent.
func (s *InMemoryStore) Delete(_ context.Context, consentID id.ConsentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, consentID)
	return nil
}

func cloneChallenge(ch *models.Challenge) *models.Challenge {
	c := *ch
	c.CodeHash = slices.Clone(ch.CodeHash)
	c.Salt = slices.Clone(ch.Salt)
	return &c
}
