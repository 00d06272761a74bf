// Package auth resolves the guardian behind a request from the session issued
// by the upstream authentication service.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	id "consentd/pkg/domain"
	"consentd/pkg/platform/sentinel"
	"consentd/pkg/requestcontext"
)

// SessionHeader carries the session reference when no bearer token is sent.
const SessionHeader = "X-Session-Ref"

// Session is the subset of an upstream session the middleware needs.
type Session struct {
	GuardianID id.GuardianID
	ExpiresAt  time.Time
}

// SessionResolver looks up a session reference. It returns sentinel.ErrNotFound
// for unknown references and sentinel.ErrExpired for revoked ones.
type SessionResolver interface {
	ResolveSession(ctx context.Context, ref string) (Session, error)
}

// SessionResolverFunc adapts a function to SessionResolver.
type SessionResolverFunc func(ctx context.Context, ref string) (Session, error)

func (f SessionResolverFunc) ResolveSession(ctx context.Context, ref string) (Session, error) {
	return f(ctx, ref)
}

func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

func sessionRef(r *http.Request) string {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(r.Header.Get(SessionHeader))
}

// RequireGuardian returns middleware that resolves the session reference and
// stores the guardian and session reference in the context.
func RequireGuardian(resolver SessionResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			ref := sessionRef(r)
			if ref == "" {
				logger.WarnContext(ctx, "unauthorized access - missing session",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing session")
				return
			}

			sess, err := resolver.ResolveSession(ctx, ref)
			switch {
			case errors.Is(err, sentinel.ErrNotFound), errors.Is(err, sentinel.ErrExpired):
				logger.WarnContext(ctx, "unauthorized access - invalid session",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired session")
				return
			case err != nil:
				logger.ErrorContext(ctx, "failed to resolve session",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to validate session")
				return
			}
			if sess.GuardianID.IsNil() || (!sess.ExpiresAt.IsZero() && !requestcontext.Now(ctx).Before(sess.ExpiresAt)) {
				logger.WarnContext(ctx, "unauthorized access - session expired",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired session")
				return
			}

			ctx = requestcontext.WithGuardianID(ctx, sess.GuardianID)
			ctx = requestcontext.WithSessionRef(ctx, ref)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
