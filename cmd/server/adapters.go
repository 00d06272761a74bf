package main

import (
	"context"

	"consentd/internal/consent/identity"
	id "consentd/pkg/domain"
	"consentd/pkg/platform/middleware/auth"
)

// sessionResolver adapts the identity session verifier to the auth
// middleware. Both the request guard and the EXISTING_IDENTITY channel read
// the same upstream sessions.
func sessionResolver(sessions identity.SessionVerifier) auth.SessionResolver {
	return auth.SessionResolverFunc(func(ctx context.Context, ref string) (auth.Session, error) {
		sess, err := sessions.VerifySession(ctx, ref)
		if err != nil {
			return auth.Session{}, err
		}
		return auth.Session{GuardianID: sess.GuardianID, ExpiresAt: sess.ExpiresAt}, nil
	})
}

// inMemoryLinker adapts the development directory to the seeder.
func inMemoryLinker(dir *identity.InMemoryDirectory) func(ctx context.Context, guardianID id.GuardianID, studentID id.StudentID, g identity.Guardianship) error {
	return func(_ context.Context, guardianID id.GuardianID, studentID id.StudentID, g identity.Guardianship) error {
		dir.Link(guardianID, studentID, g)
		return nil
	}
}

// inMemorySessionStore adapts the development session store to the seeder.
func inMemorySessionStore(sessions *identity.InMemorySessions) func(ctx context.Context, sess identity.Session) error {
	return func(_ context.Context, sess identity.Session) error {
		sessions.Put(sess)
		return nil
	}
}
