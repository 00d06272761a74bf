package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"consentd/internal/consent/models"
	id "consentd/pkg/domain"
	"consentd/pkg/platform/sentinel"
)

// InMemoryStore keeps records in memory for tests and single-node development.
// Returned records are copies; callers cannot mutate stored state.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.ConsentID]*models.Record
	// order preserves insertion so listings are stable.
	order []id.ConsentID
}

// NewInMemory constructs an empty in-memory record store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.ConsentID]*models.Record)}
}

func (s *InMemoryStore) Create(_ context.Context, r *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.ID]; ok {
		return sentinel.ErrConflict
	}
	if r.State == models.StateGranted && s.grantedLocked(r.StudentID, r.PurposeCode) != nil {
		return sentinel.ErrConflict
	}
	r.Version = 1
	s.records[r.ID] = r.Clone()
	s.order = append(s.order, r.ID)
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, consentID id.ConsentID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[consentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *InMemoryStore) FindGranted(_ context.Context, studentID id.StudentID, purposeCode string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.grantedLocked(studentID, purposeCode)
	if r == nil {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *InMemoryStore) FindPending(_ context.Context, studentID id.StudentID, purposeCode string) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectLocked(0, func(r *models.Record) bool {
		return r.StudentID == studentID && r.PurposeCode == purposeCode && r.IsAwaitingProof()
	}), nil
}

func (s *InMemoryStore) Update(_ context.Context, r *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.records[r.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != r.Version {
		return sentinel.ErrStaleVersion
	}
	if r.State == models.StateGranted {
		if g := s.grantedLocked(r.StudentID, r.PurposeCode); g != nil && g.ID != r.ID {
			return sentinel.ErrConflict
		}
	}
	r.Version++
	s.records[r.ID] = r.Clone()
	return nil
}

func (s *InMemoryStore) List(_ context.Context, filter models.ListFilter) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectLocked(0, func(r *models.Record) bool {
		if !filter.GuardianID.IsNil() && r.GuardianID != filter.GuardianID {
			return false
		}
		if !filter.StudentID.IsNil() && r.StudentID != filter.StudentID {
			return false
		}
		return filter.State == nil || r.State == *filter.State
	}), nil
}

func (s *InMemoryStore) ListGrantedBefore(_ context.Context, purposeCode string, grantedBefore time.Time, limit int) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectLocked(limit, func(r *models.Record) bool {
		return r.State == models.StateGranted && r.PurposeCode == purposeCode &&
			r.GrantedAt != nil && !r.GrantedAt.After(grantedBefore)
	}), nil
}

func (s *InMemoryStore) ListPendingBefore(_ context.Context, requestedBefore time.Time, limit int) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectLocked(limit, func(r *models.Record) bool {
		return r.IsAwaitingProof() && r.RequestedAt.Before(requestedBefore)
	}), nil
}

func (s *InMemoryStore) ListUnredactedClosedBefore(_ context.Context, closedBefore time.Time, limit int) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collectLocked(limit, func(r *models.Record) bool {
		closed := r.ClosedAt()
		return r.RedactedAt == nil && closed != nil && closed.Before(closedBefore)
	}), nil
}

func (s *InMemoryStore) grantedLocked(studentID id.StudentID, purposeCode string) *models.Record {
	for _, r := range s.records {
		if r.StudentID == studentID && r.PurposeCode == purposeCode && r.State == models.StateGranted {
			return r
		}
	}
	return nil
}

func (s *InMemoryStore) collectLocked(limit int, keep func(*models.Record) bool) []*models.Record {
	var out []*models.Record
	for _, cid := range s.order {
		r := s.records[cid]
		if !keep(r) {
			continue
		}
		out = append(out, r.Clone())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	slices.SortStableFunc(out, func(a, b *models.Record) int {
		return a.RequestedAt.Compare(b.RequestedAt)
	})
	return out
}
