// Package service is the consent lifecycle engine. It owns every state
// transition of a consent record and the audit entries that accompany them.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"log/slog"
	"maps"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"consentd/internal/consent/audit"
	"consentd/internal/consent/identity"
	"consentd/internal/consent/metrics"
	"consentd/internal/consent/models"
	"consentd/internal/consent/verification"
	"consentd/internal/platform/config"
	id "consentd/pkg/domain"
	dErrors "consentd/pkg/domain-errors"
	"consentd/pkg/platform/audit/outbox"
	"consentd/pkg/platform/device"
	"consentd/pkg/platform/sentinel"
	"consentd/pkg/requestcontext"
)

// PurposeRegistry resolves catalogued purposes.
type PurposeRegistry interface {
	Get(ctx context.Context, code string) (models.Purpose, error)
}

// GuardianDirectory resolves guardian-student relationships.
type GuardianDirectory interface {
	Guardianship(ctx context.Context, guardianID id.GuardianID, studentID id.StudentID) (identity.Guardianship, error)
}

// Verifier issues and checks challenges. *verification.Dispatcher implements it.
type Verifier interface {
	Supports(method models.Method) bool
	Issue(ctx context.Context, req verification.IssueRequest) (*verification.Issued, error)
	// Verify must not write; failed is the count of wrong proofs already
	// audited against the current challenge.
	Verify(ctx context.Context, consentID id.ConsentID, proof string, failed int) (verification.Result, error)
	Consume(ctx context.Context, consentID id.ConsentID) error
	Invalidate(ctx context.Context, consentID id.ConsentID) error
}

const tracerName = "consentd/consent"

// Service drives the consent state machine.
type Service struct {
	reads     Stores
	tx        ConsentTx
	purposes  PurposeRegistry
	guardians GuardianDirectory
	verifier  Verifier
	features  config.Features
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	logger    *slog.Logger
	newID     func() id.ConsentID
}

// Option configures optional service dependencies.
type Option func(*Service)

func WithFeatures(f config.Features) Option {
	return func(s *Service) {
		s.features = f
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTracer overrides the tracer taken from the global otel provider.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithIDGenerator replaces consent ID generation.
func WithIDGenerator(fn func() id.ConsentID) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// New builds the engine. reads serves non-transactional lookups; every
// mutation goes through tx.
func New(reads Stores, tx ConsentTx, purposes PurposeRegistry, guardians GuardianDirectory, verifier Verifier, opts ...Option) *Service {
	s := &Service{
		reads:     reads,
		tx:        tx,
		purposes:  purposes,
		guardians: guardians,
		verifier:  verifier,
		features:  config.Features{ConflictPolicy: config.ConflictReject},
		tracer:    otel.Tracer(tracerName),
		logger:    slog.Default(),
		newID:     id.NewConsentID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetConsent returns the read projection of one record with is_valid
// computed at the request time.
func (s *Service) GetConsent(ctx context.Context, consentID id.ConsentID) (_ *models.ConsentView, err error) {
	ctx, span := s.startSpan(ctx, "consent.get", attribute.String("consent_id", string(consentID)))
	defer func() { endSpan(span, err) }()

	rec, err := s.loadRecord(ctx, s.reads, consentID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, rec)
}

// ListConsents returns projections for one guardian or one student.
func (s *Service) ListConsents(ctx context.Context, filter models.ListFilter) (_ []*models.ConsentView, err error) {
	ctx, span := s.startSpan(ctx, "consent.list")
	defer func() { endSpan(span, err) }()

	if filter.GuardianID.IsNil() == filter.StudentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "exactly one of guardian_id or student_id is required")
	}
	if filter.State != nil && !filter.State.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid state filter")
	}
	records, err := s.reads.Records.List(ctx, filter)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to list consents")
	}

	now := requestcontext.Now(ctx)
	retention := make(map[string]models.Purpose)
	views := make([]*models.ConsentView, 0, len(records))
	for _, rec := range records {
		p, ok := retention[rec.PurposeCode]
		if !ok {
			if p, err = s.purpose(ctx, rec.PurposeCode); err != nil {
				return nil, err
			}
			retention[rec.PurposeCode] = p
		}
		views = append(views, models.NewConsentView(rec, now, p.Retention()))
	}
	return views, nil
}

// ListAuditLog returns a record's history in sequence order.
func (s *Service) ListAuditLog(ctx context.Context, consentID id.ConsentID) (_ []models.AuditEntry, err error) {
	ctx, span := s.startSpan(ctx, "consent.audit_log", attribute.String("consent_id", string(consentID)))
	defer func() { endSpan(span, err) }()

	if _, err = s.loadRecord(ctx, s.reads, consentID); err != nil {
		return nil, err
	}
	entries, err := s.reads.Audit.ListByConsent(ctx, consentID)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load audit log")
	}
	return entries, nil
}

// ReplayState folds a record's audit trail into the state it implies.
func (s *Service) ReplayState(ctx context.Context, consentID id.ConsentID) (models.ReplayState, error) {
	entries, err := s.ListAuditLog(ctx, consentID)
	if err != nil {
		return models.ReplayState{}, err
	}
	ptrs := make([]*models.AuditEntry, len(entries))
	for i := range entries {
		ptrs[i] = &entries[i]
	}
	return models.Replay(ptrs)
}

func (s *Service) view(ctx context.Context, rec *models.Record) (*models.ConsentView, error) {
	p, err := s.purpose(ctx, rec.PurposeCode)
	if err != nil {
		return nil, err
	}
	return models.NewConsentView(rec, requestcontext.Now(ctx), p.Retention()), nil
}

func (s *Service) purpose(ctx context.Context, code string) (models.Purpose, error) {
	p, err := s.purposes.Get(ctx, code)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Purpose{}, dErrors.Wrap(err, dErrors.CodeValidation, "unknown purpose code")
		}
		return models.Purpose{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load purpose")
	}
	return p, nil
}

func (s *Service) loadRecord(ctx context.Context, stores Stores, consentID id.ConsentID) (*models.Record, error) {
	if consentID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "consent ID required")
	}
	rec, err := stores.Records.FindByID(ctx, consentID)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load consent")
	}
	return rec, nil
}

// actorFor fills in who is acting when the caller left it to the context.
func actorFor(ctx context.Context, meta models.RequestMeta, rec *models.Record) models.RequestMeta {
	if meta.ActorType == "" {
		meta.ActorType = models.ActorGuardian
		if admin := requestcontext.Administrator(ctx); admin != "" {
			meta.ActorType, meta.ActorID = models.ActorAdministrator, admin
		}
	}
	if meta.ActorID == "" && meta.ActorType == models.ActorGuardian {
		if g := requestcontext.GuardianID(ctx); !g.IsNil() {
			meta.ActorID = string(g)
		} else if rec != nil {
			meta.ActorID = string(rec.GuardianID)
		}
	}
	if meta.ClientIP == "" {
		meta.ClientIP = requestcontext.ClientIP(ctx)
	}
	if meta.UserAgent == "" {
		meta.UserAgent = requestcontext.UserAgent(ctx)
	}
	return meta
}

// checkOwner hides records from guardians other than the one on the record.
func checkOwner(rec *models.Record, meta models.RequestMeta) error {
	if meta.ActorType == models.ActorGuardian && meta.ActorID != "" && meta.ActorID != string(rec.GuardianID) {
		return dErrors.New(dErrors.CodeRecordNotFound, "consent not found")
	}
	return nil
}

func systemMeta() models.RequestMeta {
	return models.RequestMeta{ActorType: models.ActorSystem, ActorID: models.SystemActorID}
}

// appendAudit writes the next entry for rec and its outbox event inside tx.
func (s *Service) appendAudit(ctx context.Context, tx Stores, rec *models.Record, action models.Action, meta models.RequestMeta, details map[string]string) error {
	last, err := tx.Audit.LastSequence(ctx, rec.ID)
	if err != nil {
		return wrapStoreErr(err, "failed to read audit sequence")
	}
	details = maps.Clone(details)
	if details == nil {
		details = map[string]string{}
	}
	if meta.UserAgent != "" {
		details[models.DetailClient] = device.Describe(meta.UserAgent)
	}
	entry := &models.AuditEntry{
		ConsentID: rec.ID,
		Sequence:  last + 1,
		Action:    action,
		ActorType: meta.ActorType,
		ActorID:   meta.ActorID,
		Timestamp: requestcontext.Now(ctx),
		Details:   details,
		SourceIP:  meta.ClientIP,
		UserAgent: meta.UserAgent,
	}
	if err := tx.Audit.Append(ctx, entry); err != nil {
		return wrapStoreErr(err, "failed to append audit entry")
	}
	payload, err := audit.EncodeEvent(*entry)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode audit event")
	}
	if err := tx.Outbox.Append(ctx, outbox.NewEntry("consent", string(rec.ID), string(action), payload, entry.Timestamp)); err != nil {
		return wrapStoreErr(err, "failed to enqueue audit event")
	}

	s.logger.InfoContext(ctx, "consent audit",
		"log_type", "audit",
		"consent_id", rec.ID,
		"action", action,
		"sequence", entry.Sequence,
		"actor_type", meta.ActorType,
		"request_id", requestcontext.RequestID(ctx),
	)
	return nil
}

// discard marks a pending record unusable and writes the entry replay uses
// to recover the discard.
func (s *Service) discard(ctx context.Context, tx Stores, rec *models.Record, reason models.DiscardReason, meta models.RequestMeta, extra map[string]string) error {
	if err := rec.Discard(requestcontext.Now(ctx), reason); err != nil {
		return err
	}
	if err := s.update(ctx, tx, rec); err != nil {
		return err
	}
	details := maps.Clone(extra)
	if details == nil {
		details = map[string]string{}
	}
	details[models.DetailReason] = string(reason)
	details[models.DetailDiscarded] = "true"
	if err := s.appendAudit(ctx, tx, rec, models.ActionVerificationFailed, meta, details); err != nil {
		return err
	}
	s.metrics.IncrementDiscarded(string(reason))
	return nil
}

func (s *Service) update(ctx context.Context, tx Stores, rec *models.Record) error {
	if err := tx.Records.Update(ctx, rec); err != nil {
		return wrapStoreErr(err, "failed to update consent")
	}
	return nil
}

// invalidate drops challenges after the owning transaction committed. A
// failure leaves a challenge whose record can no longer be granted.
func (s *Service) invalidate(ctx context.Context, ids ...id.ConsentID) {
	for _, cid := range ids {
		if err := s.verifier.Invalidate(ctx, cid); err != nil {
			s.logger.WarnContext(ctx, "failed to invalidate challenge",
				"consent_id", cid,
				"error", err,
			)
		}
	}
}

// wrapStoreErr translates store sentinels into domain errors exactly once.
func wrapStoreErr(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeRecordNotFound, "consent not found")
	case errors.Is(err, sentinel.ErrConflict), errors.Is(err, sentinel.ErrStaleVersion):
		return dErrors.Wrap(err, dErrors.CodeConflict, "consent was modified concurrently")
	case errors.Is(err, sentinel.ErrInvalidInput):
		return dErrors.Wrap(err, dErrors.CodeValidation, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("error_code", string(dErrors.CodeOf(err))))
	}
	span.End()
}
