package service

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"consentd/internal/consent/models"
	id "consentd/pkg/domain"
	dErrors "consentd/pkg/domain-errors"
	"consentd/pkg/requestcontext"
)

// WithdrawConsent revokes a granted consent. A second call on the same
// record fails with CodeAlreadyWithdrawn and writes nothing.
func (s *Service) WithdrawConsent(ctx context.Context, cmd models.WithdrawCommand) (_ *models.ConsentView, err error) {
	ctx, span := s.startSpan(ctx, "consent.withdraw", attribute.String("consent_id", string(cmd.ConsentID)))
	defer func() { endSpan(span, err) }()

	rec, err := s.loadRecord(ctx, s.reads, cmd.ConsentID)
	if err != nil {
		return nil, err
	}
	meta := actorFor(ctx, cmd.Meta, rec)
	if err := checkOwner(rec, meta); err != nil {
		return nil, err
	}

	var withdrawn *models.Record
	err = s.tx.RunInTx(ctx, rec.Scope(), func(ctx context.Context, tx Stores) error {
		current, err := s.loadRecord(ctx, tx, cmd.ConsentID)
		if err != nil {
			return err
		}
		if err := current.Withdraw(requestcontext.Now(ctx), cmd.Reason); err != nil {
			return err
		}
		if err := s.update(ctx, tx, current); err != nil {
			return err
		}
		details := map[string]string{}
		if cmd.Reason != "" {
			details[models.DetailReason] = cmd.Reason
		}
		if err := s.appendAudit(ctx, tx, current, models.ActionWithdrawn, meta, details); err != nil {
			return err
		}
		withdrawn = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrementWithdrawn(withdrawn.PurposeCode)
	s.logger.InfoContext(ctx, "consent withdrawn",
		"consent_id", withdrawn.ID,
		"purpose_code", withdrawn.PurposeCode,
	)
	return s.view(ctx, withdrawn)
}

// CancelRequest abandons a pending request. The record is kept, marked
// discarded, and its challenge destroyed.
func (s *Service) CancelRequest(ctx context.Context, consentID id.ConsentID, meta models.RequestMeta) (_ *models.ConsentView, err error) {
	ctx, span := s.startSpan(ctx, "consent.cancel", attribute.String("consent_id", string(consentID)))
	defer func() { endSpan(span, err) }()

	rec, err := s.loadRecord(ctx, s.reads, consentID)
	if err != nil {
		return nil, err
	}
	meta = actorFor(ctx, meta, rec)
	if err := checkOwner(rec, meta); err != nil {
		return nil, err
	}

	var cancelled *models.Record
	err = s.tx.RunInTx(ctx, rec.Scope(), func(ctx context.Context, tx Stores) error {
		current, err := s.loadRecord(ctx, tx, consentID)
		if err != nil {
			return err
		}
		if !current.IsAwaitingProof() {
			return dErrors.New(dErrors.CodeRecordNotFound, "consent request not awaiting verification")
		}
		if err := s.discard(ctx, tx, current, models.DiscardCancelled, meta, nil); err != nil {
			return err
		}
		cancelled = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, consentID)
	return s.view(ctx, cancelled)
}

// ExpireConsent moves a granted record whose retention window has elapsed to
// EXPIRED. It re-checks under the scope lock and reports false, without
// writing anything, when the record is no longer due.
func (s *Service) ExpireConsent(ctx context.Context, consentID id.ConsentID) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "consent.expire", attribute.String("consent_id", string(consentID)))
	defer func() { endSpan(span, err) }()

	rec, err := s.loadRecord(ctx, s.reads, consentID)
	if err != nil {
		return false, err
	}
	p, err := s.purpose(ctx, rec.PurposeCode)
	if err != nil {
		return false, err
	}

	expired := false
	err = s.tx.RunInTx(ctx, rec.Scope(), func(ctx context.Context, tx Stores) error {
		expired = false
		current, err := s.loadRecord(ctx, tx, consentID)
		if err != nil {
			return err
		}
		now := requestcontext.Now(ctx)
		if !current.RetentionElapsed(now, p.Retention()) {
			return nil
		}
		if err := current.Expire(now); err != nil {
			return err
		}
		if err := s.update(ctx, tx, current); err != nil {
			return err
		}
		if err := s.appendAudit(ctx, tx, current, models.ActionExpired, systemMeta(), map[string]string{
			"retention_days": strconv.Itoa(p.RetentionDays),
		}); err != nil {
			return err
		}
		expired = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if expired {
		s.metrics.IncrementExpired(rec.PurposeCode)
	}
	return expired, nil
}

// DiscardStalePending discards a pending request that was opened before
// requestedBefore and never verified.
func (s *Service) DiscardStalePending(ctx context.Context, consentID id.ConsentID, requestedBefore time.Time) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "consent.discard_stale", attribute.String("consent_id", string(consentID)))
	defer func() { endSpan(span, err) }()

	rec, err := s.loadRecord(ctx, s.reads, consentID)
	if err != nil {
		return false, err
	}

	discarded := false
	err = s.tx.RunInTx(ctx, rec.Scope(), func(ctx context.Context, tx Stores) error {
		discarded = false
		current, err := s.loadRecord(ctx, tx, consentID)
		if err != nil {
			return err
		}
		if !current.IsAwaitingProof() || !current.RequestedAt.Before(requestedBefore) {
			return nil
		}
		if err := s.discard(ctx, tx, current, models.DiscardStale, systemMeta(), nil); err != nil {
			return err
		}
		discarded = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if discarded {
		s.invalidate(ctx, consentID)
	}
	return discarded, nil
}

// Redact strips request metadata from a record closed before closedBefore.
// Redaction is not a lifecycle transition and writes no audit entry.
func (s *Service) Redact(ctx context.Context, consentID id.ConsentID, closedBefore time.Time) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "consent.redact", attribute.String("consent_id", string(consentID)))
	defer func() { endSpan(span, err) }()

	rec, err := s.loadRecord(ctx, s.reads, consentID)
	if err != nil {
		return false, err
	}

	redacted := false
	err = s.tx.RunInTx(ctx, rec.Scope(), func(ctx context.Context, tx Stores) error {
		redacted = false
		current, err := s.loadRecord(ctx, tx, consentID)
		if err != nil {
			return err
		}
		closed := current.ClosedAt()
		if current.RedactedAt != nil || closed == nil || !closed.Before(closedBefore) {
			return nil
		}
		if err := current.Redact(requestcontext.Now(ctx)); err != nil {
			return err
		}
		if err := s.update(ctx, tx, current); err != nil {
			return err
		}
		redacted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if redacted {
		s.logger.InfoContext(ctx, "consent metadata redacted",
			"log_type", "audit",
			"consent_id", consentID,
		)
	}
	return redacted, nil
}
