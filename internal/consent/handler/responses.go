package handler

import (
	"time"

	"consentd/internal/consent/models"
)

// RequestConsentResponse never carries the code; Destination is masked.
type RequestConsentResponse struct {
	ConsentID   string     `json:"consent_id"`
	State       string     `json:"state"`
	Method      string     `json:"method"`
	Destination string     `json:"destination,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

type ConsentResponse struct {
	ConsentID     string            `json:"consent_id"`
	StudentID     string            `json:"student_id"`
	GuardianID    string            `json:"guardian_id"`
	PurposeCode   string            `json:"purpose_code"`
	State         string            `json:"state"`
	Method        string            `json:"method"`
	IsValid       bool              `json:"is_valid"`
	RequestedAt   time.Time         `json:"requested_at"`
	GrantedAt     *time.Time        `json:"granted_at,omitempty"`
	ValidUntil    *time.Time        `json:"valid_until,omitempty"`
	WithdrawnAt   *time.Time        `json:"withdrawn_at,omitempty"`
	ExpiredAt     *time.Time        `json:"expired_at,omitempty"`
	DiscardedAt   *time.Time        `json:"discarded_at,omitempty"`
	DiscardReason string            `json:"discard_reason,omitempty"`
	ConsentText   string            `json:"consent_text,omitempty"`
	Verification  map[string]string `json:"verification,omitempty"`
}

type ListResponse struct {
	Consents []*ConsentResponse `json:"consents"`
}

type AuditEntryResponse struct {
	Sequence  int64             `json:"sequence"`
	Action    string            `json:"action"`
	ActorType string            `json:"actor_type"`
	ActorID   string            `json:"actor_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Details   map[string]string `json:"details,omitempty"`
	SourceIP  string            `json:"source_ip,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
}

type AuditLogResponse struct {
	ConsentID string                `json:"consent_id"`
	Entries   []*AuditEntryResponse `json:"entries"`
}

type ReplayResponse struct {
	ConsentID      string     `json:"consent_id"`
	State          string     `json:"state"`
	Discarded      bool       `json:"discarded"`
	DiscardReason  string     `json:"discard_reason,omitempty"`
	LastSequence   int64      `json:"last_sequence"`
	GrantedAt      *time.Time `json:"granted_at,omitempty"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	MatchesCurrent bool       `json:"matches_current"`
}

func toRequestResponse(res *models.RequestResult) *RequestConsentResponse {
	out := &RequestConsentResponse{
		ConsentID:   string(res.ConsentID),
		State:       string(models.StatePendingVerification),
		Method:      string(res.Method),
		Destination: res.Destination,
	}
	if !res.ExpiresAt.IsZero() {
		exp := res.ExpiresAt
		out.ExpiresAt = &exp
	}
	return out
}

func toConsentResponse(v *models.ConsentView) *ConsentResponse {
	return &ConsentResponse{
		ConsentID:     string(v.ConsentID),
		StudentID:     string(v.StudentID),
		GuardianID:    string(v.GuardianID),
		PurposeCode:   v.PurposeCode,
		State:         string(v.State),
		Method:        string(v.Method),
		IsValid:       v.IsValid,
		RequestedAt:   v.RequestedAt,
		GrantedAt:     v.GrantedAt,
		ValidUntil:    v.ValidUntil,
		WithdrawnAt:   v.WithdrawnAt,
		ExpiredAt:     v.ExpiredAt,
		DiscardedAt:   v.DiscardedAt,
		DiscardReason: string(v.DiscardReason),
		ConsentText:   v.ConsentText,
		Verification:  v.Verification,
	}
}

// toAuditEntryResponse drops network metadata unless withNetwork is set
// (administrator views).
func toAuditEntryResponse(e models.AuditEntry, withNetwork bool) *AuditEntryResponse {
	out := &AuditEntryResponse{
		Sequence:  e.Sequence,
		Action:    string(e.Action),
		ActorType: string(e.ActorType),
		ActorID:   e.ActorID,
		Timestamp: e.Timestamp,
		Details:   e.Details,
	}
	if withNetwork {
		out.SourceIP = e.SourceIP
		out.UserAgent = e.UserAgent
	}
	return out
}
