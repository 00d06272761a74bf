// Package identity is the consent engine's view of the school's identity
// system: who may act for a student, where the student is enrolled, and
// whether a session or attestation presented as proof is genuine.
package identity

import (
	"context"
	"time"

	id "consentd/pkg/domain"
)

// Guardianship describes one guardian-student relationship as known to the
// identity system. Contact fields are plaintext and must be masked before
// they leave the verification layer.
type Guardianship struct {
	Authorized   bool
	Jurisdiction string
	Email        string
	Phone        string
	AadhaarVID   string
}

// Directory resolves guardian-student relationships.
type Directory interface {
	Guardianship(ctx context.Context, guardianID id.GuardianID, studentID id.StudentID) (Guardianship, error)
}

// Session is an authenticated session owned by the upstream auth system.
type Session struct {
	Ref             string
	GuardianID      id.GuardianID
	AuthenticatedAt time.Time
	ExpiresAt       time.Time
	AuthMethod      string
}

// SessionVerifier re-checks a session reference presented as proof.
type SessionVerifier interface {
	VerifySession(ctx context.Context, ref string) (Session, error)
}

// Attestation is an administrator's signed-off verification of a guardian.
type Attestation struct {
	Ref        string
	ConsentID  id.ConsentID
	AttestorID string
	AttestedAt time.Time
	Note       string
}

// AttestationVerifier resolves an administrator-supplied attestation reference.
type AttestationVerifier interface {
	VerifyAttestation(ctx context.Context, ref string) (Attestation, error)
}
