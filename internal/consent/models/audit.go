package models

import (
	"fmt"
	"time"

	id "consentd/pkg/domain"
	dErrors "consentd/pkg/domain-errors"
)

// Action names a lifecycle event in the audit trail.
type Action string

const (
	ActionRequested          Action = "REQUESTED"
	ActionOTPSent            Action = "OTP_SENT"
	ActionVerified           Action = "VERIFIED"
	ActionGranted            Action = "GRANTED"
	ActionWithdrawn          Action = "WITHDRAWN"
	ActionExpired            Action = "EXPIRED"
	ActionVerificationFailed Action = "VERIFICATION_FAILED"
)

// IsValid checks if the action is one of the supported enum values.
func (a Action) IsValid() bool {
	switch a {
	case ActionRequested, ActionOTPSent, ActionVerified, ActionGranted,
		ActionWithdrawn, ActionExpired, ActionVerificationFailed:
		return true
	}
	return false
}

// Detail keys shared by the engine, the audit stores and replay.
const (
	DetailReason      = "reason"
	DetailDiscarded   = "discarded"
	DetailChannel     = "channel"
	DetailDestination = "destination"
	DetailAttempt     = "attempt"
	DetailPurpose     = "purpose_code"
	DetailStudent     = "student_id"
	DetailClient      = "client"
	DetailSupersedes  = "supersedes"
)

// Failure reasons recorded on VERIFICATION_FAILED entries.
const (
	ReasonDeclined         = "declined"
	ReasonChallengeExpired = "challenge_expired"
	ReasonInvalidProof     = "invalid_proof"
	ReasonDeliveryFailed   = "delivery_failed"
	ReasonSuperseded       = "superseded"
)

// AuditEntry is one immutable line of a record's history.
type AuditEntry struct {
	ConsentID id.ConsentID
	Sequence  int64
	Action    Action
	ActorType ActorType
	ActorID   string
	Timestamp time.Time
	Details   map[string]string
	SourceIP  string
	UserAgent string
}

// ReplayState is what a record's audit trail says about it.
type ReplayState struct {
	State         State
	Discarded     bool
	DiscardReason DiscardReason
	LastSequence  int64
	GrantedAt     *time.Time
	ClosedAt      *time.Time
}

// Replay folds ordered entries into the record state they imply. It rejects
// gaps in the sequence and transitions the state machine does not allow, so a
// tampered or truncated trail is detected rather than silently accepted.
func Replay(entries []*AuditEntry) (ReplayState, error) {
	var rs ReplayState
	for i, e := range entries {
		want := int64(i + 1)
		if e.Sequence != want {
			return rs, dErrors.New(dErrors.CodeInvariantViolation,
				fmt.Sprintf("audit sequence gap: expected %d, got %d", want, e.Sequence))
		}
		if i == 0 && e.Action != ActionRequested {
			return rs, dErrors.New(dErrors.CodeInvariantViolation, "audit trail must start with REQUESTED")
		}
		if err := rs.apply(e); err != nil {
			return rs, err
		}
		rs.LastSequence = e.Sequence
	}
	return rs, nil
}

func (rs *ReplayState) apply(e *AuditEntry) error {
	ts := e.Timestamp
	switch e.Action {
	case ActionRequested:
		if rs.State != "" {
			return illegal(e, rs.State)
		}
		rs.State = StatePendingVerification
	case ActionOTPSent, ActionVerified:
		if rs.State != StatePendingVerification || rs.Discarded {
			return illegal(e, rs.State)
		}
	case ActionVerificationFailed:
		if rs.State != StatePendingVerification {
			return illegal(e, rs.State)
		}
		if e.Details[DetailDiscarded] == "true" {
			rs.Discarded = true
			rs.DiscardReason = DiscardReason(e.Details[DetailReason])
			rs.ClosedAt = &ts
		}
	case ActionGranted:
		if rs.State != StatePendingVerification || rs.Discarded {
			return illegal(e, rs.State)
		}
		rs.State = StateGranted
		rs.GrantedAt = &ts
	case ActionWithdrawn:
		if rs.State != StateGranted {
			return illegal(e, rs.State)
		}
		rs.State = StateWithdrawn
		rs.ClosedAt = &ts
	case ActionExpired:
		if rs.State != StateGranted {
			return illegal(e, rs.State)
		}
		rs.State = StateExpired
		rs.ClosedAt = &ts
	default:
		return dErrors.New(dErrors.CodeInvariantViolation, fmt.Sprintf("unknown audit action %q", e.Action))
	}
	return nil
}

// FailedAttempts counts the wrong proofs recorded since the latest challenge
// was issued. Each OTP_SENT starts a fresh challenge.
func FailedAttempts(entries []AuditEntry) int {
	n := 0
	for _, e := range entries {
		switch {
		case e.Action == ActionOTPSent:
			n = 0
		case e.Action == ActionVerificationFailed && e.Details[DetailReason] == ReasonInvalidProof:
			n++
		}
	}
	return n
}

func illegal(e *AuditEntry, from State) error {
	return dErrors.New(dErrors.CodeInvariantViolation,
		fmt.Sprintf("audit entry %d: %s not allowed from %q", e.Sequence, e.Action, from))
}
