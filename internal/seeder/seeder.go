package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"consentd/internal/consent/identity"
	"consentd/internal/consent/models"
	id "consentd/pkg/domain"
)

// PurposeRegistrar registers catalog entries. Registering an identical
// purpose twice is not an error.
type PurposeRegistrar interface {
	Register(ctx context.Context, p models.Purpose) error
}

// GuardianLinker records guardian-student relationships.
type GuardianLinker interface {
	Link(ctx context.Context, guardianID id.GuardianID, studentID id.StudentID, g identity.Guardianship) error
}

// LinkerFunc adapts a function to GuardianLinker.
type LinkerFunc func(ctx context.Context, guardianID id.GuardianID, studentID id.StudentID, g identity.Guardianship) error

func (f LinkerFunc) Link(ctx context.Context, guardianID id.GuardianID, studentID id.StudentID, g identity.Guardianship) error {
	return f(ctx, guardianID, studentID, g)
}

// SessionStore accepts upstream sessions for local development.
type SessionStore interface {
	Put(ctx context.Context, sess identity.Session) error
}

// SessionStoreFunc adapts a function to SessionStore.
type SessionStoreFunc func(ctx context.Context, sess identity.Session) error

func (f SessionStoreFunc) Put(ctx context.Context, sess identity.Session) error {
	return f(ctx, sess)
}

// Seeder populates stores with the purpose catalog and demo data
type Seeder struct {
	purposes  PurposeRegistrar
	guardians GuardianLinker
	sessions  SessionStore
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a new seeder. guardians and sessions may be nil when only the
// catalog is seeded.
func New(purposes PurposeRegistrar, guardians GuardianLinker, sessions SessionStore, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		purposes:  purposes,
		guardians: guardians,
		sessions:  sessions,
		logger:    logger,
		now:       time.Now,
	}
}

// SeedPurposes registers every catalog purpose.
func (s *Seeder) SeedPurposes(ctx context.Context, purposes []models.Purpose) error {
	for _, p := range purposes {
		if err := s.purposes.Register(ctx, p); err != nil {
			return fmt.Errorf("register purpose %s: %w", p.Code, err)
		}
	}
	s.logger.InfoContext(ctx, "purpose catalog seeded", "purposes", len(purposes))
	return nil
}

// DemoSession is a seeded session reference a developer can present.
type DemoSession struct {
	Ref        string
	GuardianID id.GuardianID
	StudentID  id.StudentID
}

// SeedDemo links demo guardians to students and issues a session for each.
func (s *Seeder) SeedDemo(ctx context.Context) ([]DemoSession, error) {
	if s.guardians == nil {
		return nil, fmt.Errorf("seed demo: no guardian directory")
	}

	demo := []struct {
		guardian     id.GuardianID
		student      id.StudentID
		jurisdiction string
		email        string
		phone        string
		vid          string
	}{
		{"guardian-anita", "student-arjun", "IN-KA", "anita.rao@example.in", "+919812340001", "9100000000000001"},
		{"guardian-anita", "student-meera", "IN-KA", "anita.rao@example.in", "+919812340001", "9100000000000001"},
		{"guardian-vikram", "student-kabir", "IN-MH", "vikram.shah@example.in", "+919812340002", ""},
		{"guardian-farah", "student-zoya", "IN-DL", "", "+919812340003", ""},
	}

	now := s.now()
	var sessions []DemoSession
	seen := make(map[id.GuardianID]string)
	for _, d := range demo {
		err := s.guardians.Link(ctx, d.guardian, d.student, identity.Guardianship{
			Authorized:   true,
			Jurisdiction: d.jurisdiction,
			Email:        d.email,
			Phone:        d.phone,
			AadhaarVID:   d.vid,
		})
		if err != nil {
			return nil, fmt.Errorf("link %s to %s: %w", d.guardian, d.student, err)
		}

		ref, ok := seen[d.guardian]
		if !ok {
			ref = "dev_" + uuid.NewString()
			seen[d.guardian] = ref
			if s.sessions != nil {
				err := s.sessions.Put(ctx, identity.Session{
					Ref:             ref,
					GuardianID:      d.guardian,
					AuthenticatedAt: now,
					ExpiresAt:       now.Add(24 * time.Hour),
					AuthMethod:      "demo",
				})
				if err != nil {
					return nil, fmt.Errorf("seed session for %s: %w", d.guardian, err)
				}
			}
		}
		sessions = append(sessions, DemoSession{Ref: ref, GuardianID: d.guardian, StudentID: d.student})
	}

	s.logger.InfoContext(ctx, "demo guardianships seeded",
		"guardianships", len(demo),
		"sessions", len(seen),
	)
	return sessions, nil
}
