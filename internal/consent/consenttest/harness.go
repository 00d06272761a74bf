// Package consenttest runs the consent HTTP API in-process on the in-memory
// stores, with a recording delivery gateway so tests can read issued codes.
package consenttest

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"

	"consentd/internal/consent/audit"
	"consentd/internal/consent/handler"
	"consentd/internal/consent/identity"
	"consentd/internal/consent/models"
	"consentd/internal/consent/purpose"
	"consentd/internal/consent/service"
	"consentd/internal/consent/store"
	"consentd/internal/consent/verification"
	"consentd/internal/consent/verification/challenge"
	"consentd/internal/consent/verification/delivery"
	id "consentd/pkg/domain"
	"consentd/pkg/platform/audit/outbox"
	"consentd/pkg/platform/middleware/admin"
	"consentd/pkg/platform/middleware/auth"
)

// AdminToken authorizes the operator routes.
const AdminToken = "ops-token"

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

// Harness owns a running test server. Close it when done.
type Harness struct {
	URL       string
	Sender    *delivery.Recorder
	Directory *identity.InMemoryDirectory
	Sessions  *identity.InMemorySessions

	server *httptest.Server
}

// New starts a server whose catalog holds the given purposes.
func New(purposes ...models.Purpose) (*Harness, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	stores := service.Stores{
		Records: store.NewInMemory(),
		Audit:   audit.NewInMemory(),
		Outbox:  outbox.NewInMemoryStore(),
	}
	catalog, err := purpose.NewCatalog(purposes...)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		Sender:    delivery.NewRecorder(),
		Directory: identity.NewInMemoryDirectory(),
		Sessions:  identity.NewInMemorySessions(),
	}

	hasher, err := verification.NewHasher(verification.Argon2Params{
		Memory: 64, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16,
	}, "pepper")
	if err != nil {
		return nil, err
	}
	dispatcher := verification.NewDispatcher(challenge.NewInMemoryStore(), h.Sender, hasher, []verification.Channel{
		verification.NewOTPChannel(hasher),
		verification.NewIdentityChannel(h.Sessions, hasher, 15*time.Minute),
	})

	svc := service.New(stores, service.NewShardedTx(stores), catalog, h.Directory, dispatcher, service.WithLogger(logger))
	consent := handler.New(svc, logger)

	resolver := auth.SessionResolverFunc(func(ctx context.Context, ref string) (auth.Session, error) {
		sess, err := h.Sessions.VerifySession(ctx, ref)
		if err != nil {
			return auth.Session{}, err
		}
		return auth.Session{GuardianID: sess.GuardianID, ExpiresAt: sess.ExpiresAt}, nil
	})

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireGuardian(resolver, logger))
		consent.Register(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(AdminToken, logger))
		consent.RegisterAdmin(r)
	})

	h.server = httptest.NewServer(r)
	h.URL = h.server.URL
	return h, nil
}

// AddGuardian links guardian to student and opens a session ref for the
// guardian, valid for an hour.
func (h *Harness) AddGuardian(guardian id.GuardianID, student id.StudentID, email, sessionRef string) {
	h.Directory.Link(guardian, student, identity.Guardianship{
		Jurisdiction: "IN-KA",
		Email:        email,
	})
	now := time.Now()
	h.Sessions.Put(identity.Session{
		Ref:             sessionRef,
		GuardianID:      guardian,
		AuthenticatedAt: now,
		ExpiresAt:       now.Add(time.Hour),
		AuthMethod:      "password",
	})
}

// Code returns the last code delivered for consentID.
func (h *Harness) Code(consentID string) (string, bool) {
	msg, ok := h.Sender.Last(id.ConsentID(consentID))
	if !ok {
		return "", false
	}
	code := codePattern.FindString(msg.Body)
	return code, code != ""
}

func (h *Harness) Close() {
	h.server.Close()
}
