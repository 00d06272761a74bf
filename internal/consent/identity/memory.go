package identity

import (
	"context"
	"sync"

	id "consentd/pkg/domain"
	"consentd/pkg/platform/sentinel"
)

type pairKey struct {
	guardian id.GuardianID
	student  id.StudentID
}

// InMemoryDirectory is a Directory for development and tests.
type InMemoryDirectory struct {
	mu    sync.RWMutex
	links map[pairKey]Guardianship
}

func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{links: make(map[pairKey]Guardianship)}
}

// Link records a guardianship. Authorized is forced to true.
func (d *InMemoryDirectory) Link(guardianID id.GuardianID, studentID id.StudentID, g Guardianship) {
	d.mu.Lock()
	defer d.mu.Unlock()
	g.Authorized = true
	d.links[pairKey{guardianID, studentID}] = g
}

// Unlink revokes a guardianship; later lookups report it unauthorized.
func (d *InMemoryDirectory) Unlink(guardianID id.GuardianID, studentID id.StudentID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.links, pairKey{guardianID, studentID})
}

// Guardianship returns an unauthorized zero value for unknown pairs.
func (d *InMemoryDirectory) Guardianship(_ context.Context, guardianID id.GuardianID, studentID id.StudentID) (Guardianship, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.links[pairKey{guardianID, studentID}], nil
}

// InMemorySessions is a SessionVerifier for development and tests.
type InMemorySessions struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewInMemorySessions() *InMemorySessions {
	return &InMemorySessions{sessions: make(map[string]Session)}
}

func (s *InMemorySessions) Put(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Ref] = sess
}

func (s *InMemorySessions) VerifySession(_ context.Context, ref string) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[ref]
	if !ok {
		return Session{}, sentinel.ErrNotFound
	}
	return sess, nil
}

// InMemoryAttestations is an AttestationVerifier for development and tests.
type InMemoryAttestations struct {
	mu           sync.RWMutex
	attestations map[string]Attestation
}

func NewInMemoryAttestations() *InMemoryAttestations {
	return &InMemoryAttestations{attestations: make(map[string]Attestation)}
}

func (a *InMemoryAttestations) Put(att Attestation) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attestations[att.Ref] = att
}

func (a *InMemoryAttestations) VerifyAttestation(_ context.Context, ref string) (Attestation, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	att, ok := a.attestations[ref]
	if !ok {
		return Attestation{}, sentinel.ErrNotFound
	}
	return att, nil
}
