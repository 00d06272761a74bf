package request

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentd/pkg/requestcontext"
)

func ok(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func TestRequestID(t *testing.T) {
	serve := func(header string) (string, string) {
		var captured string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = requestcontext.RequestID(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/consents", nil)
		if header != "" {
			req.Header.Set("X-Request-ID", header)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return captured, w.Header().Get("X-Request-ID")
	}

	t.Run("generates UUID when absent", func(t *testing.T) {
		captured, echoed := serve("")
		assert.Len(t, captured, 36)
		assert.Equal(t, captured, echoed)
	})

	t.Run("keeps a valid client ID", func(t *testing.T) {
		captured, echoed := serve("trace.span_1234")
		assert.Equal(t, "trace.span_1234", captured)
		assert.Equal(t, "trace.span_1234", echoed)
	})

	t.Run("accepts exactly max length", func(t *testing.T) {
		id := strings.Repeat("a", MaxRequestIDLength)
		captured, _ := serve(id)
		assert.Equal(t, id, captured)
	})

	for name, bad := range map[string]string{
		"too long":  strings.Repeat("a", MaxRequestIDLength+1),
		"space":     "request id",
		"quote":     `request"id`,
		"semicolon": "request;id",
		"brackets":  "request<id>",
	} {
		t.Run("replaces "+name, func(t *testing.T) {
			captured, _ := serve(bad)
			assert.NotEqual(t, bad, captured)
			assert.Len(t, captured, 36)
		})
	}
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()

	require.NotPanics(t, func() {
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/consents", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal_error"}`, w.Body.String())
}

func TestContentTypeJSON(t *testing.T) {
	tests := []struct {
		method string
		ct     string
		status int
	}{
		{http.MethodPost, "application/json", http.StatusOK},
		{http.MethodPost, "application/json; charset=utf-8", http.StatusOK},
		{http.MethodPost, "", http.StatusOK},
		{http.MethodPost, "text/plain", http.StatusUnsupportedMediaType},
		{http.MethodPost, ";;", http.StatusUnsupportedMediaType},
		{http.MethodGet, "text/plain", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.ct, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/consents", strings.NewReader(`{}`))
			if tt.ct != "" {
				req.Header.Set("Content-Type", tt.ct)
			}
			w := httptest.NewRecorder()
			ContentTypeJSON(http.HandlerFunc(ok)).ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestBodyLimit(t *testing.T) {
	var readErr error
	handler := BodyLimit(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/consents", strings.NewReader("12345678")))
	assert.NoError(t, readErr)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/consents", strings.NewReader("123456789")))
	var tooLarge *http.MaxBytesError
	assert.ErrorAs(t, readErr, &tooLarge)
}

func TestRoutePattern(t *testing.T) {
	var pattern string
	r := chi.NewRouter()
	r.Get("/consents/{id}", func(w http.ResponseWriter, r *http.Request) {
		pattern = routePattern(r)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/consents/cns_0123", nil))

	assert.Equal(t, "/consents/{id}", pattern)
	assert.Equal(t, "unmatched", routePattern(httptest.NewRequest(http.MethodGet, "/x", nil)))
}

func TestInstrument_NilMetrics(t *testing.T) {
	w := httptest.NewRecorder()
	Instrument(nil)(http.HandlerFunc(ok)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/consents", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
