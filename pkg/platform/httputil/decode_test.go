package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "consentd/pkg/domain-errors"
)

type proofRequest struct {
	Proof  string `json:"proof"`
	Agreed bool   `json:"agreed"`
}

type preparedRequest struct {
	Proof      string `json:"proof"`
	normalized bool
}

func (r *preparedRequest) Normalize() {
	r.normalized = true
	r.Proof = strings.TrimSpace(r.Proof)
}

func (r *preparedRequest) Validate() error {
	if r.Proof == "" {
		return errors.New("proof is required")
	}
	return nil
}

type domainRequest struct{}

func (domainRequest) Validate() error {
	return dErrors.New(dErrors.CodeConsentDeclined, "declined")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestDecodeJSON(t *testing.T) {
	ctx := context.Background()

	t.Run("decodes a single object", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"proof":"123456","agreed":true}`))
		w := httptest.NewRecorder()

		got, ok := DecodeJSON[proofRequest](w, r, discardLogger(), ctx, "req-1")

		require.True(t, ok)
		assert.Equal(t, "123456", got.Proof)
		assert.True(t, got.Agreed)
	})

	cases := map[string]string{
		"malformed":      `{proof}`,
		"empty":          ``,
		"unknown field":  `{"proof":"1","otp":"2"}`,
		"trailing value": `{"proof":"1"}{"proof":"2"}`,
	}
	for name, body := range cases {
		t.Run(name+" is a bad request", func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
			w := httptest.NewRecorder()

			got, ok := DecodeJSON[proofRequest](w, r, discardLogger(), ctx, "req-1")

			assert.False(t, ok)
			assert.Nil(t, got)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "bad_request", decodeBody(t, w)["error"])
		})
	}

	t.Run("oversized body is rejected with 413", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"proof":"`+strings.Repeat("9", 64)+`"}`))
		w := httptest.NewRecorder()
		r.Body = http.MaxBytesReader(w, r.Body, 16)

		_, ok := DecodeJSON[proofRequest](w, r, discardLogger(), ctx, "req-1")

		assert.False(t, ok)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
}

func TestDecodeAndPrepare(t *testing.T) {
	ctx := context.Background()

	t.Run("normalizes before validating", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"proof":"  424242 "}`))
		w := httptest.NewRecorder()

		got, ok := DecodeAndPrepare[preparedRequest](w, r, discardLogger(), ctx, "req-1")

		require.True(t, ok)
		assert.True(t, got.normalized)
		assert.Equal(t, "424242", got.Proof)
	})

	t.Run("plain validation error becomes validation_error", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"proof":"   "}`))
		w := httptest.NewRecorder()

		_, ok := DecodeAndPrepare[preparedRequest](w, r, discardLogger(), ctx, "req-1")

		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "validation_error", body["error"])
		assert.Equal(t, "proof is required", body["error_description"])
	})

	t.Run("domain error code is preserved", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{}`))
		w := httptest.NewRecorder()

		_, ok := DecodeAndPrepare[domainRequest](w, r, discardLogger(), ctx, "req-1")

		assert.False(t, ok)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "consent_declined", decodeBody(t, w)["error"])
	})
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{dErrors.New(dErrors.CodeRecordNotFound, "consent not found"), http.StatusNotFound, "not_found"},
		{dErrors.New(dErrors.CodeConflict, "granted"), http.StatusConflict, "conflict"},
		{dErrors.New(dErrors.CodeAlreadyWithdrawn, "withdrawn"), http.StatusConflict, "already_withdrawn"},
		{dErrors.New(dErrors.CodeChallengeExpired, "expired"), http.StatusGone, "challenge_expired"},
		{dErrors.New(dErrors.CodeVerificationFailed, "wrong"), http.StatusUnprocessableEntity, "verification_failed"},
		{dErrors.New(dErrors.CodeMaxAttemptsExceeded, "locked"), http.StatusTooManyRequests, "max_attempts_exceeded"},
		{dErrors.New(dErrors.CodeDeliveryFailed, "gateway"), http.StatusBadGateway, "delivery_failed"},
		{dErrors.New(dErrors.CodeTimeout, "lock"), http.StatusGatewayTimeout, "timeout"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeBody(t, w)["error"])
		})
	}

	t.Run("internal message is not exposed", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "pq: relation consent_records does not exist"))

		_, leaked := decodeBody(t, w)["error_description"]
		assert.False(t, leaked)
	})
}
