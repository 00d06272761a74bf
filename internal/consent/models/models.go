package models

import (
	"maps"
	"time"

	id "consentd/pkg/domain"
	dErrors "consentd/pkg/domain-errors"
	"consentd/pkg/platform/privacy"
)

// Record is a guardian's consent for one purpose on behalf of one student.
//
// # Uniqueness Invariant
//
// For a (StudentID, PurposeCode) pair at most one record is GRANTED at any
// instant. The lifecycle service enforces this under the scope lock returned
// by Scope(); the Postgres store backs it with a partial unique index.
//
// Records are never deleted. Pending records that can no longer be granted
// are marked discarded; terminal records may have request metadata redacted
// by the retention sweeper while the row and its audit trail persist.
type Record struct {
	ID          id.ConsentID
	StudentID   id.StudentID
	GuardianID  id.GuardianID
	PurposeCode string
	State       State
	Method      Method

	RequestedAt      time.Time
	RequestIP        string
	RequestUserAgent string

	// Granted-state fields. ConsentText is frozen at grant and never re-rendered.
	ConsentText          string
	GrantedAt            *time.Time
	VerificationMetadata map[string]string
	GrantIP              string
	GrantUserAgent       string

	WithdrawnAt    *time.Time
	WithdrawReason string
	ExpiredAt      *time.Time

	DiscardedAt   *time.Time
	DiscardReason DiscardReason

	RedactedAt *time.Time

	// Version increments on every persisted mutation for optimistic checks.
	Version int64
}

// RequestMeta captures where an operation came from for non-repudiation.
type RequestMeta struct {
	ActorID   string
	ActorType ActorType
	ClientIP  string
	UserAgent string
}

// NewPendingRecord creates a Record awaiting verification with domain invariant checks.
func NewPendingRecord(consentID id.ConsentID, studentID id.StudentID, guardianID id.GuardianID, purposeCode string, method Method, now time.Time, meta RequestMeta) (*Record, error) {
	if consentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "consent ID required")
	}
	if studentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "student ID required")
	}
	if guardianID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "guardian ID required")
	}
	if purposeCode == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "purpose code required")
	}
	if !method.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid verification method")
	}
	if now.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "request time required")
	}
	return &Record{
		ID:               consentID,
		StudentID:        studentID,
		GuardianID:       guardianID,
		PurposeCode:      purposeCode,
		State:            StatePendingVerification,
		Method:           method,
		RequestedAt:      now,
		RequestIP:        meta.ClientIP,
		RequestUserAgent: meta.UserAgent,
	}, nil
}

// Scope returns the lock key shared by every record of the same
// (student, purpose) pair.
func (r Record) Scope() string {
	return ScopeKey(r.StudentID, r.PurposeCode)
}

// ScopeKey builds the per-pair lock key.
func ScopeKey(studentID id.StudentID, purposeCode string) string {
	return string(studentID) + ":" + purposeCode
}

// IsDiscarded reports whether a pending record can no longer be granted.
func (r Record) IsDiscarded() bool {
	return r.DiscardedAt != nil
}

// IsAwaitingProof reports whether the record can still be granted.
func (r Record) IsAwaitingProof() bool {
	return r.State == StatePendingVerification && !r.IsDiscarded()
}

// ValidUntil is the end of the retention window, or nil when not granted.
func (r Record) ValidUntil(retention time.Duration) *time.Time {
	if r.GrantedAt == nil {
		return nil
	}
	until := r.GrantedAt.Add(retention)
	return &until
}

// IsValid is computed on every read: the record must be GRANTED and still
// inside its purpose's retention window.
func (r Record) IsValid(now time.Time, retention time.Duration) bool {
	if r.State != StateGranted || r.GrantedAt == nil {
		return false
	}
	return now.Before(r.GrantedAt.Add(retention))
}

// RetentionElapsed reports whether a granted record is due for expiry.
func (r Record) RetentionElapsed(now time.Time, retention time.Duration) bool {
	return r.State == StateGranted && r.GrantedAt != nil && !now.Before(r.GrantedAt.Add(retention))
}

// CheckGrantable returns the domain error a grant attempt must fail with, or nil.
func (r Record) CheckGrantable() error {
	if r.State != StatePendingVerification {
		return dErrors.New(dErrors.CodeRecordNotFound, "consent request not awaiting verification")
	}
	if r.IsDiscarded() {
		if r.DiscardReason == DiscardMaxAttempts {
			return dErrors.New(dErrors.CodeMaxAttemptsExceeded, "too many verification attempts; request consent again")
		}
		return dErrors.New(dErrors.CodeRecordNotFound, "consent request no longer active")
	}
	return nil
}

// Grant moves a pending record to GRANTED, freezing the consent text and the
// verification evidence.
func (r *Record) Grant(now time.Time, consentText string, verification map[string]string, meta RequestMeta) error {
	if err := r.CheckGrantable(); err != nil {
		return err
	}
	if consentText == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "consent text snapshot required")
	}
	r.State = StateGranted
	r.GrantedAt = &now
	r.ConsentText = consentText
	r.VerificationMetadata = maps.Clone(verification)
	r.GrantIP = meta.ClientIP
	r.GrantUserAgent = meta.UserAgent
	return nil
}

// Withdraw moves a granted record to WITHDRAWN.
func (r *Record) Withdraw(now time.Time, reason string) error {
	switch r.State {
	case StateGranted:
	case StateWithdrawn:
		return dErrors.New(dErrors.CodeAlreadyWithdrawn, "consent already withdrawn")
	case StateExpired:
		return dErrors.New(dErrors.CodeInvalidState, "consent already expired")
	default:
		return dErrors.New(dErrors.CodeInvalidState, "consent has not been granted")
	}
	r.State = StateWithdrawn
	r.WithdrawnAt = &now
	r.WithdrawReason = reason
	return nil
}

// Expire moves a granted record to EXPIRED.
func (r *Record) Expire(now time.Time) error {
	if r.State != StateGranted {
		return dErrors.New(dErrors.CodeInvalidState, "only granted consent can expire")
	}
	r.State = StateExpired
	r.ExpiredAt = &now
	return nil
}

// Discard marks a pending record as no longer grantable.
func (r *Record) Discard(now time.Time, reason DiscardReason) error {
	if r.State != StatePendingVerification {
		return dErrors.New(dErrors.CodeInvalidState, "only pending requests can be discarded")
	}
	if r.IsDiscarded() {
		return dErrors.New(dErrors.CodeInvalidState, "consent request already discarded")
	}
	r.DiscardedAt = &now
	r.DiscardReason = reason
	return nil
}

// Redact strips request metadata from a record that no longer carries
// effective consent. The consent text snapshot is kept: it is the legal
// evidence of what was agreed.
func (r *Record) Redact(now time.Time) error {
	if !r.State.IsTerminal() && !r.IsDiscarded() {
		return dErrors.New(dErrors.CodeInvalidState, "only closed records can be redacted")
	}
	if r.RedactedAt != nil {
		return nil
	}
	r.RequestIP = privacy.Redacted
	r.RequestUserAgent = privacy.Redacted
	if r.GrantedAt != nil {
		r.GrantIP = privacy.Redacted
		r.GrantUserAgent = privacy.Redacted
	}
	r.VerificationMetadata = nil
	r.RedactedAt = &now
	return nil
}

// ClosedAt returns when the record stopped being live (terminal or discarded).
func (r Record) ClosedAt() *time.Time {
	switch {
	case r.WithdrawnAt != nil:
		return r.WithdrawnAt
	case r.ExpiredAt != nil:
		return r.ExpiredAt
	case r.DiscardedAt != nil:
		return r.DiscardedAt
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.VerificationMetadata = maps.Clone(r.VerificationMetadata)
	return &c
}

// ListFilter narrows ListConsents. Exactly one of GuardianID or StudentID is required.
type ListFilter struct {
	GuardianID id.GuardianID
	StudentID  id.StudentID
	State      *State
}
