package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"consentd/pkg/requestcontext"
)

const (
	TokenHeader   = "X-Admin-Token"
	ActorIDHeader = "X-Admin-Actor-ID"

	// DefaultActorID attributes admin requests that did not name an operator.
	DefaultActorID = "administrator"
)

// TokenMatcher checks a presented admin token.
type TokenMatcher interface {
	Match(token string) bool
}

// PlainToken matches one shared token in constant time. The empty token
// matches nothing.
type PlainToken string

func (p PlainToken) Match(token string) bool {
	return p != "" && subtle.ConstantTimeCompare([]byte(token), []byte(p)) == 1
}

// RequireAdminToken admits requests carrying the shared admin token. An
// empty expected token disables the admin surface entirely.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return RequireAdmin(PlainToken(expectedToken), logger)
}

// RequireAdmin admits requests whose token satisfies m and attributes them
// to the operator named in X-Admin-Actor-ID.
func RequireAdmin(m TokenMatcher, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := r.Header.Get(TokenHeader)
			if token == "" || !m.Match(token) {
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"admin token required"}`))
				return
			}

			actorID := strings.TrimSpace(r.Header.Get(ActorIDHeader))
			if actorID == "" || len(actorID) > 128 {
				actorID = DefaultActorID
			}
			ctx = requestcontext.WithAdministrator(ctx, actorID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
