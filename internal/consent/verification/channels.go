package verification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"consentd/internal/consent/identity"
	"consentd/internal/consent/models"
	"consentd/internal/consent/verification/delivery"
	dErrors "consentd/pkg/domain-errors"
	"consentd/pkg/platform/privacy"
	"consentd/pkg/requestcontext"
)

const codeDigits = 6

// OTPChannel sends a six digit code by email, SMS, or to the mobile number
// linked to an Aadhaar virtual ID.
type OTPChannel struct {
	hasher *Hasher
}

func NewOTPChannel(hasher *Hasher) *OTPChannel {
	return &OTPChannel{hasher: hasher}
}

func (c *OTPChannel) Methods() []models.Method {
	return []models.Method{models.MethodEmailOTP, models.MethodSMSOTP, models.MethodAadhaarVirtualID}
}

func (c *OTPChannel) Prepare(_ context.Context, req IssueRequest, ch *models.Challenge) (*delivery.Message, error) {
	dest, route, masked, err := otpDestination(req)
	if err != nil {
		return nil, err
	}
	code, err := GenerateCode(codeDigits)
	if err != nil {
		return nil, err
	}
	hash, salt, err := c.hasher.Hash(code)
	if err != nil {
		return nil, fmt.Errorf("hash code: %w", err)
	}
	ch.CodeHash = hash
	ch.Salt = salt
	ch.Destination = masked
	minutes := int(ch.ExpiresAt.Sub(ch.IssuedAt).Round(time.Minute) / time.Minute)
	return &delivery.Message{
		ConsentID:   req.ConsentID,
		Channel:     route,
		Destination: dest,
		Body:        fmt.Sprintf("Your consent verification code is %s. It expires in %d minutes. Do not share it.", code, minutes),
	}, nil
}

func (c *OTPChannel) Check(_ context.Context, ch *models.Challenge, proof string) (bool, map[string]string) {
	if !c.hasher.Verify(strings.TrimSpace(proof), ch.CodeHash, ch.Salt) {
		return false, nil
	}
	return true, map[string]string{
		"channel":     channelName(ch.Method),
		"destination": ch.Destination,
	}
}

func otpDestination(req IssueRequest) (dest string, route delivery.Channel, masked string, err error) {
	switch req.Method {
	case models.MethodEmailOTP:
		dest, route, masked = req.Contact.Email, delivery.ChannelEmail, privacy.MaskEmail(req.Contact.Email)
	case models.MethodSMSOTP:
		dest, route, masked = req.Contact.Phone, delivery.ChannelSMS, privacy.MaskPhone(req.Contact.Phone)
	case models.MethodAadhaarVirtualID:
		dest, route, masked = req.Contact.AadhaarVID, delivery.ChannelAadhaar, privacy.MaskTail(req.Contact.AadhaarVID, 4)
	}
	if strings.TrimSpace(dest) == "" {
		return "", "", "", dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("guardian has no destination on file for %s", req.Method))
	}
	return dest, route, masked, nil
}

// IdentityChannel accepts a live session of the requesting guardian as proof.
type IdentityChannel struct {
	sessions identity.SessionVerifier
	hasher   *Hasher
	// maxSessionAge bounds how long ago the guardian must have authenticated.
	maxSessionAge time.Duration
}

func NewIdentityChannel(sessions identity.SessionVerifier, hasher *Hasher, maxSessionAge time.Duration) *IdentityChannel {
	if maxSessionAge <= 0 {
		maxSessionAge = 15 * time.Minute
	}
	return &IdentityChannel{sessions: sessions, hasher: hasher, maxSessionAge: maxSessionAge}
}

func (c *IdentityChannel) Methods() []models.Method {
	return []models.Method{models.MethodExistingIdentity}
}

func (c *IdentityChannel) Prepare(_ context.Context, req IssueRequest, ch *models.Challenge) (*delivery.Message, error) {
	ch.Subject = string(req.GuardianID)
	ch.Destination = "existing session"
	return nil, nil
}

func (c *IdentityChannel) Check(ctx context.Context, ch *models.Challenge, proof string) (bool, map[string]string) {
	ref := strings.TrimSpace(proof)
	if ref == "" {
		c.hasher.Burn(proof)
		return false, nil
	}
	sess, err := c.sessions.VerifySession(ctx, ref)
	if err != nil {
		return false, nil
	}
	now := requestcontext.Now(ctx)
	if string(sess.GuardianID) != ch.Subject || !now.Before(sess.ExpiresAt) {
		return false, nil
	}
	if now.Sub(sess.AuthenticatedAt) > c.maxSessionAge {
		return false, nil
	}
	return true, map[string]string{
		"channel":          "session",
		"session_ref":      privacy.MaskTail(ref, 4),
		"auth_method":      sess.AuthMethod,
		"authenticated_at": sess.AuthenticatedAt.UTC().Format(time.RFC3339),
	}
}

// ManualChannel accepts an administrator attestation bound to the record.
type ManualChannel struct {
	attestations identity.AttestationVerifier
	hasher       *Hasher
}

func NewManualChannel(attestations identity.AttestationVerifier, hasher *Hasher) *ManualChannel {
	return &ManualChannel{attestations: attestations, hasher: hasher}
}

func (c *ManualChannel) Methods() []models.Method {
	return []models.Method{models.MethodManualVerification}
}

func (c *ManualChannel) Prepare(_ context.Context, req IssueRequest, ch *models.Challenge) (*delivery.Message, error) {
	ch.Subject = string(req.ConsentID)
	ch.Destination = "school administrator"
	return nil, nil
}

func (c *ManualChannel) Check(ctx context.Context, ch *models.Challenge, proof string) (bool, map[string]string) {
	ref := strings.TrimSpace(proof)
	if ref == "" {
		c.hasher.Burn(proof)
		return false, nil
	}
	att, err := c.attestations.VerifyAttestation(ctx, ref)
	if err != nil || string(att.ConsentID) != ch.Subject || att.AttestorID == "" {
		return false, nil
	}
	return true, map[string]string{
		"channel":         "attestation",
		"attestation_ref": ref,
		"attestor_id":     att.AttestorID,
		"attested_at":     att.AttestedAt.UTC().Format(time.RFC3339),
	}
}
