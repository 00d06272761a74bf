// Package handler exposes the consent lifecycle over HTTP. It decodes and
// validates input, resolves the acting guardian from the request context and
// maps domain errors to responses; every rule lives in the service.
package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"consentd/internal/consent/models"
	id "consentd/pkg/domain"
	dErrors "consentd/pkg/domain-errors"
	"consentd/pkg/platform/httputil"
	"consentd/pkg/requestcontext"
)

// Service is the lifecycle engine as seen by the transport.
type Service interface {
	RequestConsent(ctx context.Context, cmd models.RequestCommand) (*models.RequestResult, error)
	ResendChallenge(ctx context.Context, consentID id.ConsentID, meta models.RequestMeta) (*models.RequestResult, error)
	GrantConsent(ctx context.Context, cmd models.GrantCommand) (*models.ConsentView, error)
	CancelRequest(ctx context.Context, consentID id.ConsentID, meta models.RequestMeta) (*models.ConsentView, error)
	WithdrawConsent(ctx context.Context, cmd models.WithdrawCommand) (*models.ConsentView, error)
	GetConsent(ctx context.Context, consentID id.ConsentID) (*models.ConsentView, error)
	ListConsents(ctx context.Context, filter models.ListFilter) ([]*models.ConsentView, error)
	ListAuditLog(ctx context.Context, consentID id.ConsentID) ([]models.AuditEntry, error)
	ReplayState(ctx context.Context, consentID id.ConsentID) (models.ReplayState, error)
}

// Handler handles consent endpoints.
type Handler struct {
	logger  *slog.Logger
	consent Service
}

func New(consent Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, consent: consent}
}

// Register mounts the guardian routes. The router must run the guardian
// session middleware.
func (h *Handler) Register(r chi.Router) {
	r.Post("/consents", h.HandleRequestConsent)
	r.Get("/consents", h.HandleListConsents)
	r.Get("/consents/{id}", h.HandleGetConsent)
	r.Post("/consents/{id}/grant", h.HandleGrantConsent)
	r.Post("/consents/{id}/resend", h.HandleResendChallenge)
	r.Post("/consents/{id}/cancel", h.HandleCancelRequest)
	r.Post("/consents/{id}/withdraw", h.HandleWithdrawConsent)
	r.Get("/consents/{id}/audit", h.HandleAuditLog)
}

// RegisterAdmin mounts the administrator routes. The router must run the
// admin token middleware. Administrators see every record and the network
// metadata in audit entries.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/consents", h.HandleAdminListConsents)
	r.Get("/admin/consents/{id}", h.HandleGetConsent)
	r.Post("/admin/consents/{id}/grant", h.HandleGrantConsent)
	r.Post("/admin/consents/{id}/withdraw", h.HandleWithdrawConsent)
	r.Get("/admin/consents/{id}/audit", h.HandleAuditLog)
	r.Get("/admin/consents/{id}/replay", h.HandleReplay)
}

func (h *Handler) HandleRequestConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	guardianID, err := httputil.RequireGuardianID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[RequestConsentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	res, err := h.consent.RequestConsent(ctx, req.Command(guardianID))
	if err != nil {
		h.writeIssueError(ctx, w, res, err, "failed to request consent")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRequestResponse(res))
}

func (h *Handler) HandleResendChallenge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	consentID, ok := h.consentID(w, r)
	if !ok {
		return
	}

	res, err := h.consent.ResendChallenge(ctx, consentID, models.RequestMeta{})
	if err != nil {
		h.writeIssueError(ctx, w, res, err, "failed to resend challenge")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRequestResponse(res))
}

func (h *Handler) HandleGrantConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	consentID, ok := h.consentID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[GrantConsentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	view, err := h.consent.GrantConsent(ctx, models.GrantCommand{
		ConsentID: consentID,
		Proof:     req.Proof,
		Agreed:    *req.Agreed,
	})
	if err != nil {
		h.writeError(ctx, w, err, "consent grant refused")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toConsentResponse(view))
}

func (h *Handler) HandleCancelRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	consentID, ok := h.consentID(w, r)
	if !ok {
		return
	}

	view, err := h.consent.CancelRequest(ctx, consentID, models.RequestMeta{})
	if err != nil {
		h.writeError(ctx, w, err, "failed to cancel consent request")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toConsentResponse(view))
}

func (h *Handler) HandleWithdrawConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	consentID, ok := h.consentID(w, r)
	if !ok {
		return
	}

	// The body is optional.
	req := &WithdrawConsentRequest{}
	if r.ContentLength != 0 {
		if req, ok = httputil.DecodeAndPrepare[WithdrawConsentRequest](w, r, h.logger, ctx, requestID); !ok {
			return
		}
	}

	view, err := h.consent.WithdrawConsent(ctx, models.WithdrawCommand{
		ConsentID: consentID,
		Reason:    req.Reason,
	})
	if err != nil {
		h.writeError(ctx, w, err, "failed to withdraw consent")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toConsentResponse(view))
}

func (h *Handler) HandleGetConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	consentID, ok := h.consentID(w, r)
	if !ok {
		return
	}
	view, err := h.ownedConsent(ctx, consentID)
	if err != nil {
		h.writeError(ctx, w, err, "failed to get consent")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toConsentResponse(view))
}

// HandleListConsents lists the guardian's own records, optionally narrowed
// to one student and one state.
func (h *Handler) HandleListConsents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	guardianID, err := httputil.RequireGuardianID(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	filter, err := parseListFilter(r.URL.Query().Get("state"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	filter.GuardianID = guardianID

	views, err := h.consent.ListConsents(ctx, filter)
	if err != nil {
		h.writeError(ctx, w, err, "failed to list consents")
		return
	}
	if student := r.URL.Query().Get("student_id"); student != "" {
		views = slices.DeleteFunc(views, func(v *models.ConsentView) bool {
			return string(v.StudentID) != student
		})
	}
	h.writeList(w, views)
}

// HandleAdminListConsents lists by exactly one of student_id or guardian_id.
func (h *Handler) HandleAdminListConsents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter, err := parseListFilter(q.Get("state"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if v := q.Get("student_id"); v != "" {
		if filter.StudentID, err = id.ParseStudentID(v); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	if v := q.Get("guardian_id"); v != "" {
		if filter.GuardianID, err = id.ParseGuardianID(v); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	views, err := h.consent.ListConsents(ctx, filter)
	if err != nil {
		h.writeError(ctx, w, err, "failed to list consents")
		return
	}
	h.writeList(w, views)
}

func (h *Handler) HandleAuditLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	consentID, ok := h.consentID(w, r)
	if !ok {
		return
	}
	if _, err := h.ownedConsent(ctx, consentID); err != nil {
		h.writeError(ctx, w, err, "failed to load audit log")
		return
	}
	entries, err := h.consent.ListAuditLog(ctx, consentID)
	if err != nil {
		h.writeError(ctx, w, err, "failed to load audit log")
		return
	}

	admin := requestcontext.Administrator(ctx) != ""
	res := &AuditLogResponse{
		ConsentID: string(consentID),
		Entries:   make([]*AuditEntryResponse, 0, len(entries)),
	}
	for _, e := range entries {
		res.Entries = append(res.Entries, toAuditEntryResponse(e, admin))
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleReplay rebuilds the record state from its audit trail and compares it
// with the stored record.
func (h *Handler) HandleReplay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	consentID, ok := h.consentID(w, r)
	if !ok {
		return
	}
	view, err := h.consent.GetConsent(ctx, consentID)
	if err != nil {
		h.writeError(ctx, w, err, "failed to get consent")
		return
	}
	state, err := h.consent.ReplayState(ctx, consentID)
	if err != nil {
		h.writeError(ctx, w, err, "failed to replay audit log")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &ReplayResponse{
		ConsentID:      string(consentID),
		State:          string(state.State),
		Discarded:      state.Discarded,
		DiscardReason:  string(state.DiscardReason),
		LastSequence:   state.LastSequence,
		GrantedAt:      state.GrantedAt,
		ClosedAt:       state.ClosedAt,
		MatchesCurrent: state.State == view.State && state.Discarded == (view.DiscardedAt != nil),
	})
}

func (h *Handler) writeList(w http.ResponseWriter, views []*models.ConsentView) {
	res := &ListResponse{Consents: make([]*ConsentResponse, 0, len(views))}
	for _, v := range views {
		res.Consents = append(res.Consents, toConsentResponse(v))
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// ownedConsent loads a record and hides it from guardians other than its own.
func (h *Handler) ownedConsent(ctx context.Context, consentID id.ConsentID) (*models.ConsentView, error) {
	view, err := h.consent.GetConsent(ctx, consentID)
	if err != nil {
		return nil, err
	}
	if requestcontext.Administrator(ctx) != "" {
		return view, nil
	}
	if guardian := requestcontext.GuardianID(ctx); guardian.IsNil() || guardian != view.GuardianID {
		return nil, dErrors.New(dErrors.CodeRecordNotFound, "consent not found")
	}
	return view, nil
}

func (h *Handler) consentID(w http.ResponseWriter, r *http.Request) (id.ConsentID, bool) {
	consentID, err := id.ParseConsentID(chi.URLParam(r, "id"))
	if err != nil {
		// Malformed and unknown IDs look the same to the caller.
		httputil.WriteError(w, dErrors.New(dErrors.CodeRecordNotFound, "consent not found"))
		return "", false
	}
	return consentID, true
}

// writeIssueError keeps the consent ID in the body when the request survived
// a delivery failure, so the client can resend.
func (h *Handler) writeIssueError(ctx context.Context, w http.ResponseWriter, res *models.RequestResult, err error, msg string) {
	if res == nil || !dErrors.HasCode(err, dErrors.CodeDeliveryFailed) {
		h.writeError(ctx, w, err, msg)
		return
	}
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"consent_id", res.ConsentID,
		"error", err,
	)
	status, body := httputil.ErrorBody(err)
	body["consent_id"] = string(res.ConsentID)
	httputil.WriteJSON(w, status, body)
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	level := slog.LevelInfo
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error_code", dErrors.CodeOf(err),
		"error", err,
	)
	httputil.WriteError(w, err)
}
