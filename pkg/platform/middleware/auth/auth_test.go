package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	id "consentd/pkg/domain"
	"consentd/pkg/platform/sentinel"
	"consentd/pkg/requestcontext"
)

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) ResolveSession(ctx context.Context, ref string) (Session, error) {
	args := m.Called(ctx, ref)
	return args.Get(0).(Session), args.Error(1)
}

// captureHandler records whether it ran and the context it saw.
type captureHandler struct {
	called bool
	ctx    context.Context
}

func (h *captureHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.ctx = r.Context()
	w.WriteHeader(http.StatusOK)
}

type AuthMiddlewareSuite struct {
	suite.Suite
	resolver *mockResolver
	next     *captureHandler
	handler  http.Handler
	now      time.Time
}

func TestAuthMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(AuthMiddlewareSuite))
}

func (s *AuthMiddlewareSuite) SetupTest() {
	s.resolver = new(mockResolver)
	s.next = &captureHandler{}
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.handler = RequireGuardian(s.resolver, logger)(s.next)
}

func (s *AuthMiddlewareSuite) serve(setup func(r *http.Request)) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, "/consents", nil)
	r = r.WithContext(requestcontext.WithTime(r.Context(), s.now))
	if setup != nil {
		setup(r)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)
	return w
}

func (s *AuthMiddlewareSuite) TestBearerSession() {
	s.resolver.On("ResolveSession", mock.Anything, "sess-abc").
		Return(Session{GuardianID: "gdn-1", ExpiresAt: s.now.Add(time.Hour)}, nil).Once()

	w := s.serve(func(r *http.Request) { r.Header.Set("Authorization", "Bearer sess-abc") })

	s.Equal(http.StatusOK, w.Code)
	s.Require().True(s.next.called)
	s.Equal(id.GuardianID("gdn-1"), requestcontext.GuardianID(s.next.ctx))
	s.Equal("sess-abc", requestcontext.SessionRef(s.next.ctx))
	s.resolver.AssertExpectations(s.T())
}

func (s *AuthMiddlewareSuite) TestSessionHeader() {
	s.resolver.On("ResolveSession", mock.Anything, "sess-hdr").
		Return(Session{GuardianID: "gdn-2"}, nil).Once()

	w := s.serve(func(r *http.Request) { r.Header.Set(SessionHeader, " sess-hdr ") })

	s.Equal(http.StatusOK, w.Code)
	s.Equal(id.GuardianID("gdn-2"), requestcontext.GuardianID(s.next.ctx))
}

func (s *AuthMiddlewareSuite) TestMissingSession() {
	w := s.serve(nil)

	s.Equal(http.StatusUnauthorized, w.Code)
	s.False(s.next.called)
	s.resolver.AssertNotCalled(s.T(), "ResolveSession", mock.Anything, mock.Anything)
}

func (s *AuthMiddlewareSuite) TestRejectedSessions() {
	cases := []struct {
		name   string
		sess   Session
		err    error
		status int
	}{
		{"unknown", Session{}, sentinel.ErrNotFound, http.StatusUnauthorized},
		{"revoked", Session{}, sentinel.ErrExpired, http.StatusUnauthorized},
		{"expired", Session{GuardianID: "gdn-1", ExpiresAt: s.now}, nil, http.StatusUnauthorized},
		{"no guardian", Session{}, nil, http.StatusUnauthorized},
		{"store failure", Session{}, errors.New("redis down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.SetupTest()
			s.resolver.On("ResolveSession", mock.Anything, "sess-x").Return(tc.sess, tc.err).Once()

			w := s.serve(func(r *http.Request) { r.Header.Set("Authorization", "Bearer sess-x") })

			s.Equal(tc.status, w.Code)
			s.False(s.next.called)
		})
	}
}
