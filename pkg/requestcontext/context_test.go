package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	id "consentd/pkg/domain"
)

func TestAccessorsFallBackWhenUnset(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, id.GuardianID(""), GuardianID(ctx))
	assert.Empty(t, SessionRef(ctx))
	assert.Empty(t, Administrator(ctx))
	assert.Empty(t, ClientIP(ctx))
	assert.Empty(t, UserAgent(ctx))
	assert.Empty(t, RequestID(ctx))
	assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)
}

func TestAccessorsRoundTrip(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	ctx := WithTime(context.Background(), fixed)
	ctx = WithClientMetadata(ctx, "203.0.113.7", "Mozilla/5.0")
	ctx = WithRequestID(ctx, "req-42")
	ctx = WithGuardianID(ctx, "guardian-001")
	ctx = WithSessionRef(ctx, "sess-1")
	ctx = WithAdministrator(ctx, "ops-1")

	assert.Equal(t, fixed, Now(ctx))
	assert.Equal(t, "203.0.113.7", ClientIP(ctx))
	assert.Equal(t, "Mozilla/5.0", UserAgent(ctx))
	assert.Equal(t, "req-42", RequestID(ctx))
	assert.Equal(t, id.GuardianID("guardian-001"), GuardianID(ctx))
	assert.Equal(t, "sess-1", SessionRef(ctx))
	assert.Equal(t, "ops-1", Administrator(ctx))
}
