package models

import (
	"slices"
	"strings"
	"time"

	dErrors "consentd/pkg/domain-errors"
)

// JurisdictionNationwide marks a purpose that applies in every state.
const JurisdictionNationwide = "IN"

// Purpose is a catalogued, legally scoped reason for processing a student's
// data. Purposes are immutable once a record references them: changed
// semantics are published under a new code.
type Purpose struct {
	Code          string
	Name          string
	Description   string
	Mandatory     bool
	Category      string
	LegalBasis    string
	RetentionDays int
	Active        bool
	// Jurisdictions lists state codes (e.g. "IN-KA") where the purpose applies.
	// Empty or containing JurisdictionNationwide means everywhere.
	Jurisdictions []string
	// ConsentText is the template rendered and frozen into a record at grant.
	ConsentText string
}

// Retention is the validity window granted consent enjoys from its grant time.
func (p Purpose) Retention() time.Duration {
	return time.Duration(p.RetentionDays) * 24 * time.Hour
}

// AppliesTo reports whether the purpose can be requested for a student in the
// given jurisdiction.
func (p Purpose) AppliesTo(jurisdiction string) bool {
	if len(p.Jurisdictions) == 0 || slices.Contains(p.Jurisdictions, JurisdictionNationwide) {
		return true
	}
	jurisdiction = strings.ToUpper(strings.TrimSpace(jurisdiction))
	return slices.Contains(p.Jurisdictions, jurisdiction)
}

// Validate enforces catalog invariants when a purpose is registered.
func (p Purpose) Validate() error {
	if strings.TrimSpace(p.Code) == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "purpose code required")
	}
	if p.Code != strings.ToUpper(p.Code) {
		return dErrors.New(dErrors.CodeInvariantViolation, "purpose code must be upper case")
	}
	if p.RetentionDays <= 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "retention period must be positive")
	}
	if strings.TrimSpace(p.LegalBasis) == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "legal basis required")
	}
	if strings.TrimSpace(p.ConsentText) == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "consent text required")
	}
	return nil
}
