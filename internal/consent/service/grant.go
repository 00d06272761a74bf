package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"consentd/internal/consent/models"
	"consentd/internal/consent/purpose"
	"consentd/internal/consent/verification"
	dErrors "consentd/pkg/domain-errors"
	"consentd/pkg/platform/sentinel"
	"consentd/pkg/requestcontext"
)

// GrantConsent checks the guardian's proof and explicit agreement and, on
// success, moves the record to GRANTED with the consent text frozen.
//
// Failed attempts are committed (audit entry, discard) before the error is
// returned, so every denial is explained by the audit trail. The attempt count
// is read back from that trail inside the transaction, and the challenge is
// only destroyed once the transaction has committed.
func (s *Service) GrantConsent(ctx context.Context, cmd models.GrantCommand) (_ *models.ConsentView, err error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, "consent.grant", attribute.String("consent_id", string(cmd.ConsentID)))
	defer func() { endSpan(span, err) }()

	rec, err := s.loadRecord(ctx, s.reads, cmd.ConsentID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeRecordNotFound) {
			// Same hashing work as a wrong code.
			_, _ = s.verifier.Verify(ctx, cmd.ConsentID, cmd.Proof, 0)
		}
		return nil, err
	}
	meta := actorFor(ctx, cmd.Meta, rec)
	if err := checkOwner(rec, meta); err != nil {
		return nil, err
	}
	p, err := s.purpose(ctx, rec.PurposeCode)
	if err != nil {
		return nil, err
	}

	var (
		outcome  error
		granted  *models.Record
		consume  bool
		dropped  bool
		failCode string
	)
	err = s.tx.RunInTx(ctx, rec.Scope(), func(ctx context.Context, tx Stores) error {
		outcome, granted, consume, dropped, failCode = nil, nil, false, false, ""

		current, err := s.loadRecord(ctx, tx, cmd.ConsentID)
		if err != nil {
			return err
		}
		if err := current.CheckGrantable(); err != nil {
			outcome = err
			return nil
		}

		if !cmd.Agreed {
			if err := s.discard(ctx, tx, current, models.DiscardDeclined, meta, nil); err != nil {
				return err
			}
			outcome = dErrors.New(dErrors.CodeConsentDeclined, "guardian declined consent")
			dropped, failCode = true, models.ReasonDeclined
			return nil
		}

		trail, err := tx.Audit.ListByConsent(ctx, current.ID)
		if err != nil {
			return wrapStoreErr(err, "failed to load audit trail")
		}
		res, err := s.verifier.Verify(ctx, current.ID, cmd.Proof, models.FailedAttempts(trail))
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify proof")
		}

		switch res.Outcome {
		case verification.OutcomeExpired:
			failCode = models.ReasonChallengeExpired
			outcome = dErrors.New(dErrors.CodeChallengeExpired, "verification code expired; request a new one")
			return s.appendAudit(ctx, tx, current, models.ActionVerificationFailed, meta, map[string]string{
				models.DetailReason: models.ReasonChallengeExpired,
			})
		case verification.OutcomeExhausted:
			failCode = string(models.DiscardMaxAttempts)
			outcome = dErrors.New(dErrors.CodeMaxAttemptsExceeded, "too many verification attempts; request consent again")
			dropped = true
			return s.discard(ctx, tx, current, models.DiscardMaxAttempts, meta, map[string]string{
				models.DetailAttempt: strconv.Itoa(res.Attempts),
			})
		case verification.OutcomeVerified:
		default:
			failCode = models.ReasonInvalidProof
			outcome = dErrors.New(dErrors.CodeVerificationFailed, "verification failed")
			if res.Remaining > 0 {
				outcome = dErrors.New(dErrors.CodeVerificationFailed,
					fmt.Sprintf("verification failed; %d attempts remaining", res.Remaining))
			}
			return s.appendAudit(ctx, tx, current, models.ActionVerificationFailed, meta, map[string]string{
				models.DetailReason:  models.ReasonInvalidProof,
				models.DetailAttempt: strconv.Itoa(res.Attempts),
			})
		}

		// Only one GRANTED record may exist for the pair.
		other, err := tx.Records.FindGranted(ctx, current.StudentID, current.PurposeCode)
		switch {
		case err == nil && other.ID != current.ID:
			return dErrors.New(dErrors.CodeConflict, "consent already granted for this student and purpose")
		case err != nil && !errors.Is(err, sentinel.ErrNotFound):
			return wrapStoreErr(err, "failed to check granted consent")
		}

		now := requestcontext.Now(ctx)
		text, err := purpose.Render(p, current.StudentID, current.GuardianID, now)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to render consent text")
		}
		if err := current.Grant(now, text, res.Metadata, meta); err != nil {
			return err
		}
		if err := s.update(ctx, tx, current); err != nil {
			return err
		}
		verified := maps.Clone(res.Metadata)
		if verified == nil {
			verified = map[string]string{}
		}
		verified["method"] = string(current.Method)
		if err := s.appendAudit(ctx, tx, current, models.ActionVerified, meta, verified); err != nil {
			return err
		}
		if err := s.appendAudit(ctx, tx, current, models.ActionGranted, meta, map[string]string{
			models.DetailPurpose: current.PurposeCode,
		}); err != nil {
			return err
		}
		granted, consume = current, true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if consume {
		if err := s.verifier.Consume(ctx, cmd.ConsentID); err != nil {
			s.logger.WarnContext(ctx, "failed to consume challenge",
				"consent_id", cmd.ConsentID,
				"error", err,
			)
		}
	}
	if dropped {
		s.invalidate(ctx, cmd.ConsentID)
	}
	if failCode != "" {
		s.metrics.IncrementVerificationFailure(string(rec.Method), failCode)
	}
	if outcome != nil {
		s.logger.InfoContext(ctx, "consent grant refused",
			"consent_id", cmd.ConsentID,
			"error_code", dErrors.CodeOf(outcome),
		)
		return nil, outcome
	}

	s.metrics.IncrementGranted(granted.PurposeCode)
	s.metrics.ObserveGrantLatency(time.Since(start))
	s.logger.InfoContext(ctx, "consent granted",
		"consent_id", granted.ID,
		"purpose_code", granted.PurposeCode,
		"method", granted.Method,
	)
	return models.NewConsentView(granted, requestcontext.Now(ctx), p.Retention()), nil
}
