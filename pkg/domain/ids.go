// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	dErrors "consentd/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a StudentID where a GuardianID is expected.
//
// StudentID and GuardianID are references into the school's identity system and
// are therefore opaque strings (numeric roll numbers are common). ConsentID is
// generated here and is the only identifier ever shown to guardians.
type (
	StudentID  string
	GuardianID string
	ConsentID  string
)

const (
	consentIDPrefix = "cns_"
	maxExternalID   = 64
)

var externalIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]+$`)

// NewConsentID returns a fresh opaque consent identifier. It carries no
// sequence information about the underlying storage row.
func NewConsentID() ConsentID {
	return ConsentID(consentIDPrefix + strings.ReplaceAll(uuid.New().String(), "-", ""))
}

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseStudentID(s string) (StudentID, error) {
	v, err := parseExternal(s, "student ID")
	return StudentID(v), err
}

func ParseGuardianID(s string) (GuardianID, error) {
	v, err := parseExternal(s, "guardian ID")
	return GuardianID(v), err
}

func ParseConsentID(s string) (ConsentID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "consent ID cannot be empty")
	}
	raw, ok := strings.CutPrefix(s, consentIDPrefix)
	if !ok || len(raw) != 32 {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid consent ID format")
	}
	if _, err := uuid.Parse(raw); err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid consent ID format")
	}
	return ConsentID(s), nil
}

// String methods - for logging and debugging.

func (id StudentID) String() string  { return string(id) }
func (id GuardianID) String() string { return string(id) }
func (id ConsentID) String() string  { return string(id) }

// IsNil checks - used for service-layer validation.

func (id StudentID) IsNil() bool  { return id == "" }
func (id GuardianID) IsNil() bool { return id == "" }
func (id ConsentID) IsNil() bool  { return id == "" }

func parseExternal(s, label string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	if len(s) > maxExternalID || !externalIDPattern.MatchString(s) {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return s, nil
}
