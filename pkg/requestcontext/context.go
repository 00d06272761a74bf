// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets values; services and stores read them without importing net/http.
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.7", "Mozilla/5.0")
package requestcontext

import (
	"context"
	"time"

	id "consentd/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	guardianIDKey  struct{}
	sessionRefKey  struct{}
	adminActorKey  struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyGuardianID  = guardianIDKey{}
	ContextKeySessionRef  = sessionRefKey{}
	ContextKeyAdminActor  = adminActorKey{}
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyUserAgent   = userAgentKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Acting principal
// -----------------------------------------------------------------------------

// GuardianID retrieves the authenticated guardian from the context.
// Returns the zero value if not set.
func GuardianID(ctx context.Context) id.GuardianID {
	if guardianID, ok := ctx.Value(ContextKeyGuardianID).(id.GuardianID); ok {
		return guardianID
	}
	return ""
}

// WithGuardianID injects the acting guardian into the context.
func WithGuardianID(ctx context.Context, guardianID id.GuardianID) context.Context {
	return context.WithValue(ctx, ContextKeyGuardianID, guardianID)
}

// SessionRef retrieves the upstream session reference resolved by the
// authentication layer, if any.
func SessionRef(ctx context.Context) string {
	if ref, ok := ctx.Value(ContextKeySessionRef).(string); ok {
		return ref
	}
	return ""
}

// WithSessionRef injects the upstream session reference into the context.
func WithSessionRef(ctx context.Context, ref string) context.Context {
	return context.WithValue(ctx, ContextKeySessionRef, ref)
}

// Administrator returns the administrator acting on this request, or "" for
// guardian and system requests.
func Administrator(ctx context.Context) string {
	if actor, ok := ctx.Value(ContextKeyAdminActor).(string); ok {
		return actor
	}
	return ""
}

// WithAdministrator marks the request as made by an administrator.
func WithAdministrator(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, ContextKeyAdminActor, actorID)
}

// -----------------------------------------------------------------------------
// Client metadata (IP, User-Agent)
// -----------------------------------------------------------------------------

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	return ctx
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Useful for:
//   - Service unit tests that need to travel past a retention window
//   - Workers that need consistent time within a sweep
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
