package handler

import (
	"strings"

	"consentd/internal/consent/models"
	id "consentd/pkg/domain"
	dErrors "consentd/pkg/domain-errors"
	"consentd/pkg/validation"
)

// RequestConsentRequest opens a consent request for the authenticated guardian.
type RequestConsentRequest struct {
	StudentID   string `json:"student_id" validate:"required,max=64,external_id"`
	PurposeCode string `json:"purpose_code" validate:"required,max=64,purpose_code"`
	Method      string `json:"method" validate:"required,oneof=EMAIL_OTP SMS_OTP AADHAAR_VIRTUAL_TOKEN EXISTING_IDENTITY MANUAL_VERIFICATION"`
}

func (r *RequestConsentRequest) Normalize() {
	r.StudentID = strings.TrimSpace(r.StudentID)
	r.PurposeCode = strings.ToUpper(strings.TrimSpace(r.PurposeCode))
	r.Method = strings.ToUpper(strings.TrimSpace(r.Method))
}

func (r *RequestConsentRequest) Validate() error {
	return validation.Validate(r)
}

func (r *RequestConsentRequest) Command(guardianID id.GuardianID) models.RequestCommand {
	return models.RequestCommand{
		GuardianID:  guardianID,
		StudentID:   id.StudentID(r.StudentID),
		PurposeCode: r.PurposeCode,
		Method:      models.Method(r.Method),
	}
}

// GrantConsentRequest carries the proof and the guardian's explicit answer.
// Agreed must be present: an omitted answer is not a refusal.
type GrantConsentRequest struct {
	Proof  string `json:"proof" validate:"max=512"`
	Agreed *bool  `json:"agreed" validate:"required"`
}

func (r *GrantConsentRequest) Normalize() {
	r.Proof = strings.TrimSpace(r.Proof)
}

func (r *GrantConsentRequest) Validate() error {
	if err := validation.Validate(r); err != nil {
		return err
	}
	// A refusal needs no proof.
	if *r.Agreed && r.Proof == "" {
		return dErrors.New(dErrors.CodeValidation, "proof is required")
	}
	return nil
}

// WithdrawConsentRequest optionally explains a withdrawal.
type WithdrawConsentRequest struct {
	Reason string `json:"reason"`
}

func (r *WithdrawConsentRequest) Normalize() {
	r.Reason = strings.TrimSpace(r.Reason)
}

func (r *WithdrawConsentRequest) Validate() error {
	return validation.CheckStringLength("reason", r.Reason, validation.MaxWithdrawReasonLength)
}

// parseListFilter reads the state query parameter.
func parseListFilter(state string) (models.ListFilter, error) {
	var filter models.ListFilter
	state = strings.ToUpper(strings.TrimSpace(state))
	if state == "" {
		return filter, nil
	}
	st := models.State(state)
	if !st.IsValid() {
		return filter, dErrors.New(dErrors.CodeValidation, "invalid state filter")
	}
	filter.State = &st
	return filter, nil
}
