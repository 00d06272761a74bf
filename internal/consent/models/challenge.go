package models

import (
	"time"

	id "consentd/pkg/domain"
)

// Challenge is the ephemeral proof-of-intent state for one pending record.
// Only a salted hash of a one-time code is ever held; non-code methods keep
// the expected reference (guardian or attestation) in Subject instead.
type Challenge struct {
	ConsentID   id.ConsentID
	Method      Method
	GuardianID  id.GuardianID
	CodeHash    []byte
	Salt        []byte
	Subject     string
	Destination string // masked
	IssuedAt    time.Time
	ExpiresAt   time.Time
	MaxAttempts int
}

// IsExpired is evaluated lazily on access.
func (c *Challenge) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Exhausted reports whether failed wrong proofs use up the allowance.
func (c *Challenge) Exhausted(failed int) bool {
	return c.MaxAttempts > 0 && failed >= c.MaxAttempts
}

// RemainingAttempts is never negative.
func (c *Challenge) RemainingAttempts(failed int) int {
	if c.MaxAttempts <= 0 {
		return 0
	}
	return max(c.MaxAttempts-failed, 0)
}

// TTL is the time left before expiry, floored at zero.
func (c *Challenge) TTL(now time.Time) time.Duration {
	return max(c.ExpiresAt.Sub(now), 0)
}
