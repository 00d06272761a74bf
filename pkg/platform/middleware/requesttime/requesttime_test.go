package requesttime

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"consentd/pkg/requestcontext"
)

func TestMiddleware_SetsTimeInContext(t *testing.T) {
	var captured time.Time
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = requestcontext.Now(r.Context())
	}))

	before := time.Now()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/consents", nil))
	after := time.Now()

	assert.False(t, captured.Before(before.Truncate(0)))
	assert.False(t, captured.After(after))
	assert.Equal(t, time.UTC, captured.Location())
}

func TestWithClock_TimeIsStableWithinRequest(t *testing.T) {
	fixed := time.Date(2026, 1, 15, 10, 30, 0, 0, time.FixedZone("IST", 5*3600+1800))
	var first, second time.Time
	handler := WithClock(func() time.Time { return fixed })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		first = requestcontext.Now(r.Context())
		time.Sleep(5 * time.Millisecond)
		second = requestcontext.Now(r.Context())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/consents", nil))

	assert.Equal(t, first, second)
	assert.True(t, fixed.Equal(first))
	assert.Equal(t, time.UTC, first.Location())
}
