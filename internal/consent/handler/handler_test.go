package handler

// Handler tests cover transport concerns only: body decoding and validation,
// acting-guardian resolution, ownership hiding and the mapping of domain errors
// to status codes. Lifecycle behaviour is covered by the service suite.

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"consentd/internal/consent/handler/mocks"
	"consentd/internal/consent/models"
	id "consentd/pkg/domain"
	dErrors "consentd/pkg/domain-errors"
	"consentd/pkg/requestcontext"
)

const (
	testConsentID = id.ConsentID("cns_0123456789abcdef0123456789abcdef")
	testGuardian  = id.GuardianID("gdn-100")
	otherGuardian = id.GuardianID("gdn-200")
	testStudent   = id.StudentID("stu-42")
)

type ConsentHandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  chi.Router
	now     time.Time
}

func TestConsentHandlerSuite(t *testing.T) {
	suite.Run(t, new(ConsentHandlerSuite))
}

func (s *ConsentHandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.now = time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)

	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := requestcontext.WithRequestID(req.Context(), "req-test")
			if g := req.Header.Get("X-Test-Guardian"); g != "" {
				ctx = requestcontext.WithGuardianID(ctx, id.GuardianID(g))
			}
			if a := req.Header.Get("X-Test-Admin"); a != "" {
				ctx = requestcontext.WithAdministrator(ctx, a)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.Register(r)
	h.RegisterAdmin(r)
	s.router = r
}

func (s *ConsentHandlerSuite) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func asGuardian(g id.GuardianID) map[string]string {
	return map[string]string{"X-Test-Guardian": string(g)}
}

func asAdmin() map[string]string {
	return map[string]string{"X-Test-Admin": "ops-1"}
}

func (s *ConsentHandlerSuite) body(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (s *ConsentHandlerSuite) assertError(w *httptest.ResponseRecorder, status int, code string) {
	s.Equal(status, w.Code, w.Body.String())
	s.Equal(code, s.body(w)["error"])
}

func (s *ConsentHandlerSuite) view(guardian id.GuardianID, state models.State) *models.ConsentView {
	granted := s.now.Add(-time.Hour)
	return &models.ConsentView{
		ConsentID:   testConsentID,
		StudentID:   testStudent,
		GuardianID:  guardian,
		PurposeCode: "DATA_SHARING",
		State:       state,
		Method:      models.MethodEmailOTP,
		IsValid:     state == models.StateGranted,
		RequestedAt: granted.Add(-time.Minute),
		GrantedAt:   &granted,
	}
}

func (s *ConsentHandlerSuite) TestRequestConsent() {
	s.Run("creates a pending request for the session guardian", func() {
		s.SetupTest()
		expires := s.now.Add(10 * time.Minute)
		s.service.EXPECT().RequestConsent(gomock.Any(), models.RequestCommand{
			GuardianID:  testGuardian,
			StudentID:   testStudent,
			PurposeCode: "DATA_SHARING",
			Method:      models.MethodEmailOTP,
		}).Return(&models.RequestResult{
			ConsentID:   testConsentID,
			Method:      models.MethodEmailOTP,
			Destination: "p***@example.in",
			ExpiresAt:   expires,
		}, nil)

		w := s.do(http.MethodPost, "/consents",
			`{"student_id":" stu-42 ","purpose_code":"data_sharing","method":"email_otp"}`, asGuardian(testGuardian))

		s.Equal(http.StatusCreated, w.Code, w.Body.String())
		b := s.body(w)
		s.Equal(string(testConsentID), b["consent_id"])
		s.Equal("PENDING_VERIFICATION", b["state"])
		s.Equal("p***@example.in", b["destination"])
		s.NotContains(w.Body.String(), "code")
	})

	s.Run("missing session guardian is unauthorized", func() {
		s.SetupTest()
		w := s.do(http.MethodPost, "/consents", `{"student_id":"stu-42","purpose_code":"DATA_SHARING","method":"EMAIL_OTP"}`, nil)
		s.assertError(w, http.StatusUnauthorized, "unauthorized")
	})

	s.Run("invalid bodies never reach the service", func() {
		bodies := map[string]string{
			"unknown method":   `{"student_id":"stu-42","purpose_code":"DATA_SHARING","method":"POSTCARD"}`,
			"missing student":  `{"purpose_code":"DATA_SHARING","method":"EMAIL_OTP"}`,
			"bad purpose code": `{"student_id":"stu-42","purpose_code":"data sharing","method":"EMAIL_OTP"}`,
		}
		for name, body := range bodies {
			s.Run(name, func() {
				s.SetupTest()
				w := s.do(http.MethodPost, "/consents", body, asGuardian(testGuardian))
				s.assertError(w, http.StatusBadRequest, "validation_error")
			})
		}
	})

	s.Run("unknown field is a bad request", func() {
		s.SetupTest()
		w := s.do(http.MethodPost, "/consents",
			`{"student_id":"stu-42","purpose_code":"DATA_SHARING","method":"EMAIL_OTP","guardian_id":"gdn-999"}`, asGuardian(testGuardian))
		s.assertError(w, http.StatusBadRequest, "bad_request")
	})

	s.Run("delivery failure keeps the consent id", func() {
		s.SetupTest()
		s.service.EXPECT().RequestConsent(gomock.Any(), gomock.Any()).Return(
			&models.RequestResult{ConsentID: testConsentID, Method: models.MethodSMSOTP},
			dErrors.New(dErrors.CodeDeliveryFailed, "sms gateway unavailable"),
		)

		w := s.do(http.MethodPost, "/consents", `{"student_id":"stu-42","purpose_code":"DATA_SHARING","method":"SMS_OTP"}`, asGuardian(testGuardian))

		s.assertError(w, http.StatusBadGateway, "delivery_failed")
		s.Equal(string(testConsentID), s.body(w)["consent_id"])
	})

	s.Run("granted pair is a conflict", func() {
		s.SetupTest()
		s.service.EXPECT().RequestConsent(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, "consent already granted for this student and purpose"))

		w := s.do(http.MethodPost, "/consents", `{"student_id":"stu-42","purpose_code":"DATA_SHARING","method":"EMAIL_OTP"}`, asGuardian(testGuardian))
		s.assertError(w, http.StatusConflict, "conflict")
	})
}

func (s *ConsentHandlerSuite) TestGrantConsent() {
	path := "/consents/" + string(testConsentID) + "/grant"

	s.Run("passes proof and agreement through", func() {
		s.SetupTest()
		s.service.EXPECT().GrantConsent(gomock.Any(), models.GrantCommand{
			ConsentID: testConsentID,
			Proof:     "482913",
			Agreed:    true,
		}).Return(s.view(testGuardian, models.StateGranted), nil)

		w := s.do(http.MethodPost, path, `{"proof":" 482913 ","agreed":true}`, asGuardian(testGuardian))

		s.Equal(http.StatusOK, w.Code)
		s.Equal("GRANTED", s.body(w)["state"])
		s.Equal(true, s.body(w)["is_valid"])
	})

	s.Run("refusal needs no proof", func() {
		s.SetupTest()
		s.service.EXPECT().GrantConsent(gomock.Any(), models.GrantCommand{ConsentID: testConsentID, Agreed: false}).
			Return(nil, dErrors.New(dErrors.CodeConsentDeclined, "guardian declined consent"))

		w := s.do(http.MethodPost, path, `{"agreed":false}`, asGuardian(testGuardian))
		s.assertError(w, http.StatusUnprocessableEntity, "consent_declined")
	})

	s.Run("omitted agreement is a validation error", func() {
		s.SetupTest()
		w := s.do(http.MethodPost, path, `{"proof":"482913"}`, asGuardian(testGuardian))
		s.assertError(w, http.StatusBadRequest, "validation_error")
	})

	s.Run("agreement without proof is a validation error", func() {
		s.SetupTest()
		w := s.do(http.MethodPost, path, `{"agreed":true}`, asGuardian(testGuardian))
		s.assertError(w, http.StatusBadRequest, "validation_error")
	})

	s.Run("malformed consent id is not found", func() {
		s.SetupTest()
		w := s.do(http.MethodPost, "/consents/42/grant", `{"proof":"1","agreed":true}`, asGuardian(testGuardian))
		s.assertError(w, http.StatusNotFound, "not_found")
	})

	s.Run("verification outcomes map to distinct statuses", func() {
		cases := []struct {
			code   dErrors.Code
			status int
		}{
			{dErrors.CodeVerificationFailed, http.StatusUnprocessableEntity},
			{dErrors.CodeChallengeExpired, http.StatusGone},
			{dErrors.CodeMaxAttemptsExceeded, http.StatusTooManyRequests},
			{dErrors.CodeRecordNotFound, http.StatusNotFound},
			{dErrors.CodeTimeout, http.StatusGatewayTimeout},
		}
		for _, tc := range cases {
			s.Run(string(tc.code), func() {
				s.SetupTest()
				s.service.EXPECT().GrantConsent(gomock.Any(), gomock.Any()).Return(nil, dErrors.New(tc.code, "refused"))

				w := s.do(http.MethodPost, path, `{"proof":"000000","agreed":true}`, asGuardian(testGuardian))
				s.Equal(tc.status, w.Code)
			})
		}
	})
}

func (s *ConsentHandlerSuite) TestResendAndCancel() {
	s.Run("resend returns a fresh expiry", func() {
		s.SetupTest()
		s.service.EXPECT().ResendChallenge(gomock.Any(), testConsentID, models.RequestMeta{}).
			Return(&models.RequestResult{ConsentID: testConsentID, Method: models.MethodEmailOTP, ExpiresAt: s.now.Add(10 * time.Minute)}, nil)

		w := s.do(http.MethodPost, "/consents/"+string(testConsentID)+"/resend", "", asGuardian(testGuardian))

		s.Equal(http.StatusOK, w.Code)
		s.NotEmpty(s.body(w)["expires_at"])
	})

	s.Run("cancel returns the discarded record", func() {
		s.SetupTest()
		v := s.view(testGuardian, models.StatePendingVerification)
		v.GrantedAt = nil
		v.DiscardedAt = &s.now
		v.DiscardReason = models.DiscardCancelled
		s.service.EXPECT().CancelRequest(gomock.Any(), testConsentID, models.RequestMeta{}).Return(v, nil)

		w := s.do(http.MethodPost, "/consents/"+string(testConsentID)+"/cancel", "", asGuardian(testGuardian))

		s.Equal(http.StatusOK, w.Code)
		s.Equal("cancelled", s.body(w)["discard_reason"])
	})
}

func (s *ConsentHandlerSuite) TestWithdrawConsent() {
	path := "/consents/" + string(testConsentID) + "/withdraw"

	s.Run("body is optional", func() {
		s.SetupTest()
		s.service.EXPECT().WithdrawConsent(gomock.Any(), models.WithdrawCommand{ConsentID: testConsentID}).
			Return(s.view(testGuardian, models.StateWithdrawn), nil)

		w := s.do(http.MethodPost, path, "", asGuardian(testGuardian))
		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("reason is passed through", func() {
		s.SetupTest()
		s.service.EXPECT().WithdrawConsent(gomock.Any(), models.WithdrawCommand{ConsentID: testConsentID, Reason: "changed school"}).
			Return(s.view(testGuardian, models.StateWithdrawn), nil)

		w := s.do(http.MethodPost, path, `{"reason":"changed school"}`, asGuardian(testGuardian))
		s.Equal(http.StatusOK, w.Code)
	})

	s.Run("overlong reason is rejected", func() {
		s.SetupTest()
		w := s.do(http.MethodPost, path, `{"reason":"`+strings.Repeat("x", 501)+`"}`, asGuardian(testGuardian))
		s.assertError(w, http.StatusBadRequest, "validation_error")
	})

	s.Run("second withdrawal is a conflict", func() {
		s.SetupTest()
		s.service.EXPECT().WithdrawConsent(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeAlreadyWithdrawn, "consent already withdrawn"))

		w := s.do(http.MethodPost, path, "", asGuardian(testGuardian))
		s.assertError(w, http.StatusConflict, "already_withdrawn")
	})
}

func (s *ConsentHandlerSuite) TestReads() {
	s.Run("owner sees the record", func() {
		s.SetupTest()
		s.service.EXPECT().GetConsent(gomock.Any(), testConsentID).Return(s.view(testGuardian, models.StateGranted), nil)

		w := s.do(http.MethodGet, "/consents/"+string(testConsentID), "", asGuardian(testGuardian))

		s.Equal(http.StatusOK, w.Code)
		s.Equal("DATA_SHARING", s.body(w)["purpose_code"])
	})

	s.Run("another guardian gets not found", func() {
		s.SetupTest()
		s.service.EXPECT().GetConsent(gomock.Any(), testConsentID).Return(s.view(testGuardian, models.StateGranted), nil)

		w := s.do(http.MethodGet, "/consents/"+string(testConsentID), "", asGuardian(otherGuardian))
		s.assertError(w, http.StatusNotFound, "not_found")
	})

	s.Run("list is scoped to the session guardian", func() {
		s.SetupTest()
		granted := models.StateGranted
		other := s.view(testGuardian, models.StateGranted)
		other.StudentID = "stu-99"
		s.service.EXPECT().ListConsents(gomock.Any(), models.ListFilter{GuardianID: testGuardian, State: &granted}).
			Return([]*models.ConsentView{s.view(testGuardian, models.StateGranted), other}, nil)

		w := s.do(http.MethodGet, "/consents?state=granted&student_id=stu-42", "", asGuardian(testGuardian))

		s.Equal(http.StatusOK, w.Code)
		s.Len(s.body(w)["consents"], 1)
	})

	s.Run("invalid state filter", func() {
		s.SetupTest()
		w := s.do(http.MethodGet, "/consents?state=REVOKED", "", asGuardian(testGuardian))
		s.assertError(w, http.StatusBadRequest, "validation_error")
	})

	entries := []models.AuditEntry{{
		ConsentID: testConsentID,
		Sequence:  1,
		Action:    models.ActionRequested,
		ActorType: models.ActorGuardian,
		ActorID:   string(testGuardian),
		Timestamp: s.now,
		SourceIP:  "203.0.113.7",
		UserAgent: "Mozilla/5.0",
	}}

	s.Run("guardian audit view omits network metadata", func() {
		s.SetupTest()
		s.service.EXPECT().GetConsent(gomock.Any(), testConsentID).Return(s.view(testGuardian, models.StateGranted), nil)
		s.service.EXPECT().ListAuditLog(gomock.Any(), testConsentID).Return(entries, nil)

		w := s.do(http.MethodGet, "/consents/"+string(testConsentID)+"/audit", "", asGuardian(testGuardian))

		s.Equal(http.StatusOK, w.Code)
		s.NotContains(w.Body.String(), "203.0.113.7")
		s.Contains(w.Body.String(), `"action":"REQUESTED"`)
	})

	s.Run("admin audit view includes network metadata", func() {
		s.SetupTest()
		s.service.EXPECT().GetConsent(gomock.Any(), testConsentID).Return(s.view(testGuardian, models.StateGranted), nil)
		s.service.EXPECT().ListAuditLog(gomock.Any(), testConsentID).Return(entries, nil)

		w := s.do(http.MethodGet, "/admin/consents/"+string(testConsentID)+"/audit", "", asAdmin())

		s.Equal(http.StatusOK, w.Code)
		s.Contains(w.Body.String(), "203.0.113.7")
	})
}

func (s *ConsentHandlerSuite) TestAdmin() {
	s.Run("list by student", func() {
		s.SetupTest()
		s.service.EXPECT().ListConsents(gomock.Any(), models.ListFilter{StudentID: testStudent}).
			Return([]*models.ConsentView{s.view(testGuardian, models.StateGranted)}, nil)

		w := s.do(http.MethodGet, "/admin/consents?student_id=stu-42", "", asAdmin())

		s.Equal(http.StatusOK, w.Code)
		s.Len(s.body(w)["consents"], 1)
	})

	s.Run("list without a subject is rejected by the service", func() {
		s.SetupTest()
		s.service.EXPECT().ListConsents(gomock.Any(), models.ListFilter{}).
			Return(nil, dErrors.New(dErrors.CodeValidation, "exactly one of guardian_id or student_id is required"))

		w := s.do(http.MethodGet, "/admin/consents", "", asAdmin())
		s.assertError(w, http.StatusBadRequest, "validation_error")
	})

	s.Run("replay reports agreement with the stored record", func() {
		s.SetupTest()
		v := s.view(testGuardian, models.StateGranted)
		s.service.EXPECT().GetConsent(gomock.Any(), testConsentID).Return(v, nil)
		s.service.EXPECT().ReplayState(gomock.Any(), testConsentID).Return(models.ReplayState{
			State:        models.StateGranted,
			LastSequence: 4,
			GrantedAt:    v.GrantedAt,
		}, nil)

		w := s.do(http.MethodGet, "/admin/consents/"+string(testConsentID)+"/replay", "", asAdmin())

		s.Equal(http.StatusOK, w.Code)
		b := s.body(w)
		s.Equal(true, b["matches_current"])
		s.Equal(float64(4), b["last_sequence"])
	})

	s.Run("admin grant is attributed through the context", func() {
		s.SetupTest()
		s.service.EXPECT().GrantConsent(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, cmd models.GrantCommand) (*models.ConsentView, error) {
				s.Equal("ops-1", requestcontext.Administrator(ctx))
				s.Equal("att-77", cmd.Proof)
				return s.view(testGuardian, models.StateGranted), nil
			})

		w := s.do(http.MethodPost, "/admin/consents/"+string(testConsentID)+"/grant", `{"proof":"att-77","agreed":true}`, asAdmin())
		s.Equal(http.StatusOK, w.Code)
	})
}
