// Package secrets generates and verifies operator credentials such as the
// admin token. Only bcrypt hashes of those tokens belong in configuration.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/bcrypt"

	dErrors "consentd/pkg/domain-errors"
)

// Generate creates a cryptographically secure random token.
func Generate() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not generate secret")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Hash creates a bcrypt hash of the provided secret.
func Hash(secret string) (string, error) {
	if secret == "" {
		return "", dErrors.New(dErrors.CodeValidation, "secret cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeValidation, "secret is too long")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "could not hash secret")
	}
	return string(hashed), nil
}

// Verify checks if a plaintext secret matches a bcrypt hash.
func Verify(secret, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeUnauthorized, "invalid secret")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "could not verify secret")
	}
	return nil
}

// HashMatcher matches tokens against a bcrypt hash.
type HashMatcher struct {
	hash string
}

// NewHashMatcher rejects hashes bcrypt cannot parse so a typo in
// configuration fails at startup rather than locking operators out.
func NewHashMatcher(hash string) (*HashMatcher, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid bcrypt hash")
	}
	return &HashMatcher{hash: hash}, nil
}

func (m *HashMatcher) Match(token string) bool {
	return Verify(token, m.hash) == nil
}
