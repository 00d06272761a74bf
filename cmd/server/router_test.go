package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	consenthandler "consentd/internal/consent/handler"
	"consentd/internal/consent/handler/mocks"
	"consentd/internal/consent/identity"
	"consentd/internal/consent/models"
	"consentd/internal/platform/config"
	"consentd/internal/platform/health"
	"consentd/pkg/platform/middleware/admin"
	"consentd/pkg/platform/middleware/auth"
	"consentd/pkg/secrets"
)

func testRouter(t *testing.T, adminToken string) (http.Handler, *mocks.MockService, *identity.InMemorySessions) {
	t.Helper()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockService(ctrl)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	sessions := identity.NewInMemorySessions()
	sessions.Put(identity.Session{
		Ref:        "sess-1",
		GuardianID: "guardian-1",
		ExpiresAt:  time.Now().Add(time.Hour),
	})

	r, err := newRouter(
		config.Server{AdminToken: adminToken},
		log,
		nil,
		consenthandler.New(svc, log),
		sessionResolver(sessions),
		health.New("test"),
		nil,
	)
	require.NoError(t, err)
	return r, svc, sessions
}

func do(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Probes(t *testing.T) {
	r, _, _ := testRouter(t, "")
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health/live", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health/ready", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/metrics", nil).Code)
}

func TestRouter_GuardianRoutes(t *testing.T) {
	t.Run("missing session", func(t *testing.T) {
		r, _, _ := testRouter(t, "")
		assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/consents", nil).Code)
	})

	t.Run("unknown session", func(t *testing.T) {
		r, _, _ := testRouter(t, "")
		rec := do(r, http.MethodGet, "/consents", map[string]string{auth.SessionHeader: "nope"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("session resolves guardian", func(t *testing.T) {
		r, svc, _ := testRouter(t, "")
		svc.EXPECT().ListConsents(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, f models.ListFilter) ([]*models.ConsentView, error) {
				assert.Equal(t, "guardian-1", string(f.GuardianID))
				return nil, nil
			})

		rec := do(r, http.MethodGet, "/consents", map[string]string{"Authorization": "Bearer sess-1"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})
}

func TestNewAdminMatcher(t *testing.T) {
	hash, err := secrets.Hash("operator-token")
	require.NoError(t, err)

	m, err := newAdminMatcher(config.Server{AdminToken: "plain", AdminTokenHash: hash})
	require.NoError(t, err)
	assert.True(t, m.Match("operator-token"))
	assert.False(t, m.Match("plain"), "hash wins over the plain token")

	_, err = newAdminMatcher(config.Server{AdminTokenHash: "garbage"})
	assert.ErrorContains(t, err, "ADMIN_TOKEN_HASH")
}

func TestRouter_AdminRoutes(t *testing.T) {
	t.Run("not mounted without a token", func(t *testing.T) {
		r, _, _ := testRouter(t, "")
		rec := do(r, http.MethodGet, "/admin/consents?student_id=s-1", map[string]string{admin.TokenHeader: ""})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("wrong token", func(t *testing.T) {
		r, _, _ := testRouter(t, "s3cret")
		rec := do(r, http.MethodGet, "/admin/consents?student_id=s-1", map[string]string{admin.TokenHeader: "guess"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		r, svc, _ := testRouter(t, "s3cret")
		svc.EXPECT().ListConsents(gomock.Any(), gomock.Any()).Return(nil, nil)

		rec := do(r, http.MethodGet, "/admin/consents?student_id=s-1", map[string]string{admin.TokenHeader: "s3cret"})
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	})
}
