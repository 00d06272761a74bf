package models

import (
	id "consentd/pkg/domain"
)

// RequestCommand starts a consent lifecycle for one (student, purpose) pair.
type RequestCommand struct {
	GuardianID  id.GuardianID
	StudentID   id.StudentID
	PurposeCode string
	Method      Method
	Meta        RequestMeta
}

// GrantCommand carries the guardian's proof and explicit agreement.
type GrantCommand struct {
	ConsentID id.ConsentID
	Proof     string
	Agreed    bool
	Meta      RequestMeta
}

// WithdrawCommand revokes a granted consent. Reason is optional free text.
type WithdrawCommand struct {
	ConsentID id.ConsentID
	Reason    string
	Meta      RequestMeta
}
