package models

import (
	"maps"
	"time"

	id "consentd/pkg/domain"
)

// RequestResult is returned by RequestConsent and ResendChallenge. It never
// carries the secret.
type RequestResult struct {
	ConsentID   id.ConsentID
	Method      Method
	Destination string
	ExpiresAt   time.Time
}

// ConsentView is the read projection of a record. IsValid is computed at read
// time from the purpose retention window.
type ConsentView struct {
	ConsentID     id.ConsentID
	StudentID     id.StudentID
	GuardianID    id.GuardianID
	PurposeCode   string
	State         State
	Method        Method
	IsValid       bool
	RequestedAt   time.Time
	GrantedAt     *time.Time
	ValidUntil    *time.Time
	WithdrawnAt   *time.Time
	ExpiredAt     *time.Time
	DiscardedAt   *time.Time
	DiscardReason DiscardReason
	ConsentText   string
	Verification  map[string]string
}

// NewConsentView projects a record for the given instant and retention.
func NewConsentView(r *Record, now time.Time, retention time.Duration) *ConsentView {
	return &ConsentView{
		ConsentID:     r.ID,
		StudentID:     r.StudentID,
		GuardianID:    r.GuardianID,
		PurposeCode:   r.PurposeCode,
		State:         r.State,
		Method:        r.Method,
		IsValid:       r.IsValid(now, retention),
		RequestedAt:   r.RequestedAt,
		GrantedAt:     r.GrantedAt,
		ValidUntil:    r.ValidUntil(retention),
		WithdrawnAt:   r.WithdrawnAt,
		ExpiredAt:     r.ExpiredAt,
		DiscardedAt:   r.DiscardedAt,
		DiscardReason: r.DiscardReason,
		ConsentText:   r.ConsentText,
		Verification:  maps.Clone(r.VerificationMetadata),
	}
}
