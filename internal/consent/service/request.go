package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"consentd/internal/consent/identity"
	"consentd/internal/consent/models"
	"consentd/internal/consent/verification"
	id "consentd/pkg/domain"
	dErrors "consentd/pkg/domain-errors"
	"consentd/pkg/platform/privacy"
	"consentd/pkg/platform/sentinel"
	"consentd/pkg/requestcontext"
)

// RequestConsent opens a pending record for (student, purpose) and issues
// the verification challenge to the guardian.
//
// A pair that already has a GRANTED record is rejected with CodeConflict
// unless the supersede policy is enabled, in which case the granted record is
// withdrawn in the same transaction that creates the new one. Older pending
// records for the pair are discarded as superseded.
//
// When delivery fails the pending record is kept: the returned result still
// carries its ID (alongside a CodeDeliveryFailed error) so the guardian can
// resend.
func (s *Service) RequestConsent(ctx context.Context, cmd models.RequestCommand) (_ *models.RequestResult, err error) {
	ctx, span := s.startSpan(ctx, "consent.request",
		attribute.String("purpose_code", cmd.PurposeCode),
		attribute.String("method", string(cmd.Method)),
	)
	defer func() { endSpan(span, err) }()

	if err := s.validateRequest(cmd); err != nil {
		return nil, err
	}
	p, err := s.purpose(ctx, cmd.PurposeCode)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, dErrors.New(dErrors.CodeValidation, "purpose is not active")
	}
	contact, err := s.guardianship(ctx, cmd.GuardianID, cmd.StudentID)
	if err != nil {
		return nil, err
	}
	if !p.AppliesTo(contact.Jurisdiction) {
		return nil, dErrors.New(dErrors.CodeValidation, "purpose does not apply in the student's jurisdiction")
	}
	if !hasDestination(cmd.Method, contact) {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("no contact on file for %s", cmd.Method))
	}

	meta := actorFor(ctx, cmd.Meta, nil)
	if meta.ActorType == models.ActorGuardian && meta.ActorID == "" {
		meta.ActorID = string(cmd.GuardianID)
	}
	consentID := s.newID()
	var (
		superseded    []id.ConsentID
		withdrewGrant bool
	)

	err = s.tx.RunInTx(ctx, models.ScopeKey(cmd.StudentID, p.Code), func(ctx context.Context, tx Stores) error {
		now := requestcontext.Now(ctx)
		superseded, withdrewGrant = superseded[:0], false

		granted, err := tx.Records.FindGranted(ctx, cmd.StudentID, p.Code)
		switch {
		case err == nil:
			if !s.features.Supersede() {
				return dErrors.New(dErrors.CodeConflict, "consent already granted for this student and purpose")
			}
			if err := granted.Withdraw(now, models.ReasonSuperseded); err != nil {
				return err
			}
			if err := s.update(ctx, tx, granted); err != nil {
				return err
			}
			if err := s.appendAudit(ctx, tx, granted, models.ActionWithdrawn, meta, map[string]string{
				models.DetailReason:     models.ReasonSuperseded,
				models.DetailSupersedes: string(consentID),
			}); err != nil {
				return err
			}
			withdrewGrant = true
		case !errors.Is(err, sentinel.ErrNotFound):
			return wrapStoreErr(err, "failed to check granted consent")
		}

		pending, err := tx.Records.FindPending(ctx, cmd.StudentID, p.Code)
		if err != nil {
			return wrapStoreErr(err, "failed to load pending requests")
		}
		for _, old := range pending {
			if old.IsDiscarded() {
				continue
			}
			if err := s.discard(ctx, tx, old, models.DiscardSuperseded, meta, map[string]string{
				models.DetailSupersedes: string(consentID),
			}); err != nil {
				return err
			}
			superseded = append(superseded, old.ID)
		}

		rec, err := models.NewPendingRecord(consentID, cmd.StudentID, cmd.GuardianID, p.Code, cmd.Method, now, meta)
		if err != nil {
			return err
		}
		if err := tx.Records.Create(ctx, rec); err != nil {
			return wrapStoreErr(err, "failed to create consent")
		}
		return s.appendAudit(ctx, tx, rec, models.ActionRequested, meta, map[string]string{
			models.DetailPurpose: p.Code,
			models.DetailStudent: string(cmd.StudentID),
			"method":             string(cmd.Method),
		})
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, superseded...)
	if withdrewGrant {
		s.metrics.IncrementWithdrawn(p.Code)
	}
	s.metrics.IncrementRequested(p.Code, string(cmd.Method))

	s.logger.InfoContext(ctx, "consent requested",
		"consent_id", consentID,
		"purpose_code", p.Code,
		"method", cmd.Method,
		"superseded", len(superseded),
	)

	return s.issue(ctx, consentID, cmd.GuardianID, cmd.Method, contact, meta, false)
}

// ResendChallenge replaces the challenge of a pending record, resetting its
// attempt counter. Expired challenges are resent this way.
func (s *Service) ResendChallenge(ctx context.Context, consentID id.ConsentID, meta models.RequestMeta) (_ *models.RequestResult, err error) {
	ctx, span := s.startSpan(ctx, "consent.resend", attribute.String("consent_id", string(consentID)))
	defer func() { endSpan(span, err) }()

	rec, err := s.loadRecord(ctx, s.reads, consentID)
	if err != nil {
		return nil, err
	}
	meta = actorFor(ctx, meta, rec)
	if err := checkOwner(rec, meta); err != nil {
		return nil, err
	}
	if err := rec.CheckGrantable(); err != nil {
		return nil, err
	}
	contact, err := s.guardianship(ctx, rec.GuardianID, rec.StudentID)
	if err != nil {
		return nil, err
	}
	return s.issue(ctx, rec.ID, rec.GuardianID, rec.Method, contact, meta, true)
}

// issue runs after the record is committed. Delivery never happens inside
// the record transaction.
func (s *Service) issue(ctx context.Context, consentID id.ConsentID, guardianID id.GuardianID, method models.Method, contact identity.Guardianship, meta models.RequestMeta, resend bool) (*models.RequestResult, error) {
	result := &models.RequestResult{ConsentID: consentID, Method: method}

	issued, issueErr := s.verifier.Issue(ctx, verification.IssueRequest{
		ConsentID:  consentID,
		GuardianID: guardianID,
		Method:     method,
		Contact:    contact,
	})
	if issueErr != nil {
		if dErrors.HasCode(issueErr, dErrors.CodeDeliveryFailed) {
			s.metrics.IncrementVerificationFailure(string(method), models.ReasonDeliveryFailed)
			if err := s.recordIssue(ctx, consentID, meta, models.ActionVerificationFailed, map[string]string{
				models.DetailReason: models.ReasonDeliveryFailed,
			}); err != nil {
				s.logger.WarnContext(ctx, "failed to audit delivery failure",
					"consent_id", consentID,
					"error", err,
				)
			}
		}
		s.logger.WarnContext(ctx, "verification challenge not issued",
			"consent_id", consentID,
			"method", method,
			"error", issueErr,
		)
		return result, dErrors.Wrap(issueErr, dErrors.CodeInternal, "failed to issue verification challenge")
	}

	result.Destination = issued.Destination
	result.ExpiresAt = issued.ExpiresAt
	details := map[string]string{
		models.DetailChannel:     issued.Channel,
		models.DetailDestination: issued.Destination,
	}
	if resend {
		details["resend"] = "true"
	}
	if err := s.recordIssue(ctx, consentID, meta, models.ActionOTPSent, details); err != nil {
		return result, err
	}
	return result, nil
}

// recordIssue audits issuance against a record that may have moved on since
// the challenge went out. A record that is no longer awaiting proof gets no
// entry and its fresh challenge is dropped.
func (s *Service) recordIssue(ctx context.Context, consentID id.ConsentID, meta models.RequestMeta, action models.Action, details map[string]string) error {
	rec, err := s.loadRecord(ctx, s.reads, consentID)
	if err != nil {
		return err
	}
	stale := false
	err = s.tx.RunInTx(ctx, rec.Scope(), func(ctx context.Context, tx Stores) error {
		current, err := s.loadRecord(ctx, tx, consentID)
		if err != nil {
			return err
		}
		if !current.IsAwaitingProof() {
			stale = true
			return nil
		}
		return s.appendAudit(ctx, tx, current, action, meta, details)
	})
	if err != nil {
		return err
	}
	if stale && action == models.ActionOTPSent {
		s.invalidate(ctx, consentID)
		return dErrors.New(dErrors.CodeRecordNotFound, "consent request no longer active")
	}
	return nil
}

func (s *Service) validateRequest(cmd models.RequestCommand) error {
	if cmd.GuardianID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "guardian ID required")
	}
	if cmd.StudentID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "student ID required")
	}
	if cmd.PurposeCode == "" {
		return dErrors.New(dErrors.CodeValidation, "purpose code required")
	}
	if !cmd.Method.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "unknown verification method")
	}
	if !s.features.MethodEnabled(string(cmd.Method)) || !s.verifier.Supports(cmd.Method) {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("verification method %s is not enabled", cmd.Method))
	}
	return nil
}

func (s *Service) guardianship(ctx context.Context, guardianID id.GuardianID, studentID id.StudentID) (identity.Guardianship, error) {
	g, err := s.guardians.Guardianship(ctx, guardianID, studentID)
	if err != nil {
		return identity.Guardianship{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve guardianship")
	}
	if !g.Authorized {
		s.logger.InfoContext(ctx, "guardian not authorized for student",
			"guardian_id", privacy.MaskTail(string(guardianID), 4),
		)
		return identity.Guardianship{}, dErrors.New(dErrors.CodeValidation, "guardian is not authorized for this student")
	}
	return g, nil
}

// hasDestination rejects code methods with nowhere to send the code before
// any record is created.
func hasDestination(m models.Method, g identity.Guardianship) bool {
	switch m {
	case models.MethodEmailOTP:
		return g.Email != ""
	case models.MethodSMSOTP:
		return g.Phone != ""
	case models.MethodAadhaarVirtualID:
		return g.AadhaarVID != ""
	}
	return true
}
