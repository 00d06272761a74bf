// Package verification issues and checks the proof a guardian supplies before
// a consent becomes effective. Each method is a Channel behind one Dispatcher.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"consentd/internal/consent/identity"
	"consentd/internal/consent/models"
	"consentd/internal/consent/verification/delivery"
	id "consentd/pkg/domain"
	dErrors "consentd/pkg/domain-errors"
	"consentd/pkg/platform/sentinel"
	"consentd/pkg/requestcontext"
)

// ChallengeStore persists challenges between Issue and Verify.
type ChallengeStore interface {
	Save(ctx context.Context, ch *models.Challenge) error
	Get(ctx context.Context, consentID id.ConsentID) (*models.Challenge, error)
	Delete(ctx context.Context, consentID id.ConsentID) error
}

// IssueRequest names who must prove intent for which pending record.
type IssueRequest struct {
	ConsentID  id.ConsentID
	GuardianID id.GuardianID
	Method     models.Method
	Contact    identity.Guardianship
}

// Channel implements one family of verification methods.
type Channel interface {
	Methods() []models.Method
	// Prepare fills in the challenge and returns the message carrying the
	// secret, if any. Only hashes may be left on the challenge.
	Prepare(ctx context.Context, req IssueRequest, ch *models.Challenge) (*delivery.Message, error)
	// Check validates proof against a live challenge and returns the metadata
	// to freeze into the granted record.
	Check(ctx context.Context, ch *models.Challenge, proof string) (bool, map[string]string)
}

// Issued is what the guardian may be told about a challenge.
type Issued struct {
	Destination string
	ExpiresAt   time.Time
	Channel     string
}

// Outcome classifies a verification attempt.
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeVerified
	OutcomeExpired
	OutcomeExhausted
)

// Result reports a verification attempt. An unknown challenge and a wrong
// proof both come back as OutcomeFailed after the same hashing work.
type Result struct {
	Outcome   Outcome
	Metadata  map[string]string
	Attempts  int
	Remaining int
}

const (
	defaultChallengeTTL = 10 * time.Minute
	defaultMaxAttempts  = 5
)

// Dispatcher routes Issue and Verify to the channel registered for a method.
type Dispatcher struct {
	channels    map[models.Method]Channel
	store       ChallengeStore
	sender      delivery.Sender
	hasher      *Hasher
	ttl         time.Duration
	maxAttempts int
	logger      *slog.Logger
}

type Option func(*Dispatcher)

// WithChallengeTTL overrides the default 10 minute challenge lifetime.
func WithChallengeTTL(ttl time.Duration) Option {
	return func(d *Dispatcher) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// WithMaxAttempts overrides the default of five failed attempts.
func WithMaxAttempts(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher registers channels by the methods they declare. The hasher is
// used to equalize timing when a challenge is unknown.
func NewDispatcher(store ChallengeStore, sender delivery.Sender, hasher *Hasher, channels []Channel, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		channels:    make(map[models.Method]Channel),
		store:       store,
		sender:      sender,
		hasher:      hasher,
		ttl:         defaultChallengeTTL,
		maxAttempts: defaultMaxAttempts,
		logger:      slog.Default(),
	}
	for _, ch := range channels {
		for _, m := range ch.Methods() {
			d.channels[m] = ch
		}
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Supports reports whether a channel is registered for the method.
func (d *Dispatcher) Supports(m models.Method) bool {
	_, ok := d.channels[m]
	return ok
}

// MaxAttempts is the configured attempt ceiling.
func (d *Dispatcher) MaxAttempts() int {
	return d.maxAttempts
}

// Issue creates (or replaces) the challenge for a pending record and hands
// any secret to the delivery gateway. Delivery failures return
// CodeDeliveryFailed and leave no challenge behind.
func (d *Dispatcher) Issue(ctx context.Context, req IssueRequest) (*Issued, error) {
	channel, ok := d.channels[req.Method]
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("verification method %s not supported", req.Method))
	}
	now := requestcontext.Now(ctx)
	ch := &models.Challenge{
		ConsentID:   req.ConsentID,
		Method:      req.Method,
		GuardianID:  req.GuardianID,
		IssuedAt:    now,
		ExpiresAt:   now.Add(d.ttl),
		MaxAttempts: d.maxAttempts,
	}
	msg, err := channel.Prepare(ctx, req, ch)
	if err != nil {
		return nil, err
	}
	// Stored before sending: a code that reaches the guardian always has a challenge.
	if err := d.store.Save(ctx, ch); err != nil {
		return nil, fmt.Errorf("save challenge: %w", err)
	}
	if msg != nil {
		if err := d.sender.Send(ctx, *msg); err != nil {
			if delErr := d.store.Delete(ctx, ch.ConsentID); delErr != nil {
				d.logger.WarnContext(ctx, "failed to drop undelivered challenge",
					"consent_id", req.ConsentID,
					"error", delErr,
				)
			}
			return nil, dErrors.Wrap(err, dErrors.CodeDeliveryFailed, "verification message could not be delivered")
		}
	}
	return &Issued{
		Destination: ch.Destination,
		ExpiresAt:   ch.ExpiresAt,
		Channel:     channelName(req.Method),
	}, nil
}

// Verify checks proof for a consent's live challenge. failed is the number of
// wrong proofs already recorded against this challenge; the caller keeps that
// count in the same transaction as the rest of the attempt. Verify writes
// nothing: the caller Consumes the challenge after committing a grant and
// Invalidates it after committing a discard, so an aborted transaction costs
// the guardian no attempt.
func (d *Dispatcher) Verify(ctx context.Context, consentID id.ConsentID, proof string, failed int) (Result, error) {
	ch, err := d.store.Get(ctx, consentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			d.hasher.Burn(proof)
			return Result{Outcome: OutcomeFailed}, nil
		}
		return Result{}, fmt.Errorf("load challenge: %w", err)
	}
	channel, ok := d.channels[ch.Method]
	if !ok {
		d.hasher.Burn(proof)
		return Result{Outcome: OutcomeFailed}, nil
	}
	if ch.MaxAttempts <= 0 {
		ch.MaxAttempts = d.maxAttempts
	}
	if ch.IsExpired(requestcontext.Now(ctx)) {
		return Result{Outcome: OutcomeExpired, Attempts: failed}, nil
	}
	if ch.Exhausted(failed) {
		return Result{Outcome: OutcomeExhausted, Attempts: failed}, nil
	}

	if ok, meta := channel.Check(ctx, ch, proof); ok {
		return Result{Outcome: OutcomeVerified, Metadata: meta, Attempts: failed}, nil
	}

	attempts := failed + 1
	if ch.Exhausted(attempts) {
		return Result{Outcome: OutcomeExhausted, Attempts: attempts}, nil
	}
	return Result{
		Outcome:   OutcomeFailed,
		Attempts:  attempts,
		Remaining: ch.RemainingAttempts(attempts),
	}, nil
}

// Consume destroys a challenge after a successful grant.
func (d *Dispatcher) Consume(ctx context.Context, consentID id.ConsentID) error {
	return d.store.Delete(ctx, consentID)
}

// Invalidate destroys a challenge whose record was cancelled or superseded.
func (d *Dispatcher) Invalidate(ctx context.Context, consentID id.ConsentID) error {
	return d.store.Delete(ctx, consentID)
}

func channelName(m models.Method) string {
	switch m {
	case models.MethodEmailOTP:
		return "email"
	case models.MethodSMSOTP:
		return "sms"
	case models.MethodAadhaarVirtualID:
		return "aadhaar"
	case models.MethodExistingIdentity:
		return "session"
	case models.MethodManualVerification:
		return "attestation"
	}
	return "unknown"
}
