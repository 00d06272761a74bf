package models

// State is the lifecycle state of a consent record.
type State string

const (
	StatePendingVerification State = "PENDING_VERIFICATION"
	StateGranted             State = "GRANTED"
	StateWithdrawn           State = "WITHDRAWN"
	StateExpired             State = "EXPIRED"
)

// IsValid checks if the state is one of the supported enum values.
func (s State) IsValid() bool {
	switch s {
	case StatePendingVerification, StateGranted, StateWithdrawn, StateExpired:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is permitted.
func (s State) IsTerminal() bool {
	return s == StateWithdrawn || s == StateExpired
}

// Method identifies how the guardian proves intent before a consent becomes
// effective.
type Method string

const (
	MethodEmailOTP           Method = "EMAIL_OTP"
	MethodSMSOTP             Method = "SMS_OTP"
	MethodAadhaarVirtualID   Method = "AADHAAR_VIRTUAL_TOKEN"
	MethodExistingIdentity   Method = "EXISTING_IDENTITY"
	MethodManualVerification Method = "MANUAL_VERIFICATION"
)

// AllMethods lists every verification method in declaration order.
var AllMethods = []Method{
	MethodEmailOTP,
	MethodSMSOTP,
	MethodAadhaarVirtualID,
	MethodExistingIdentity,
	MethodManualVerification,
}

// IsValid checks if the method is one of the supported enum values.
func (m Method) IsValid() bool {
	for _, known := range AllMethods {
		if m == known {
			return true
		}
	}
	return false
}

// UsesOneTimeCode reports whether the method sends a code to the guardian.
func (m Method) UsesOneTimeCode() bool {
	return m == MethodEmailOTP || m == MethodSMSOTP || m == MethodAadhaarVirtualID
}

// DiscardReason explains why a pending record can no longer be granted.
type DiscardReason string

const (
	DiscardCancelled   DiscardReason = "cancelled"
	DiscardDeclined    DiscardReason = "declined"
	DiscardMaxAttempts DiscardReason = "max_attempts"
	DiscardSuperseded  DiscardReason = "superseded"
	DiscardStale       DiscardReason = "stale"
)

// ActorType classifies who caused an audit entry.
type ActorType string

const (
	ActorGuardian      ActorType = "guardian"
	ActorSystem        ActorType = "system"
	ActorAdministrator ActorType = "administrator"
)

// SystemActorID is recorded for transitions driven by background workers.
const SystemActorID = "system:retention-sweeper"
