package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "consentd/pkg/domain"
	"consentd/pkg/platform/sentinel"
)

// sessionKeyPrefix matches the keys the upstream auth service writes.
const sessionKeyPrefix = "session:"

type sessionJSON struct {
	GuardianID string `json:"user_id"`
	Status     string `json:"status"`
	AuthMethod string `json:"auth_method"`
	CreatedAt  int64  `json:"created_at"` // Unix nano
	ExpiresAt  int64  `json:"expires_at"` // Unix nano
	RevokedAt  *int64 `json:"revoked_at,omitempty"`
}

// RedisSessions verifies session references against the auth service's
// Redis session records.
type RedisSessions struct {
	client *redis.Client
}

func NewRedisSessions(client *redis.Client) *RedisSessions {
	return &RedisSessions{client: client}
}

// VerifySession returns sentinel.ErrNotFound for unknown sessions and
// sentinel.ErrExpired for revoked or expired ones.
func (s *RedisSessions) VerifySession(ctx context.Context, ref string) (Session, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+ref).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, sentinel.ErrNotFound
		}
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	var j sessionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	if j.RevokedAt != nil || j.Status == "revoked" {
		return Session{}, sentinel.ErrExpired
	}
	sess := Session{
		Ref:             ref,
		GuardianID:      id.GuardianID(j.GuardianID),
		AuthenticatedAt: time.Unix(0, j.CreatedAt),
		ExpiresAt:       time.Unix(0, j.ExpiresAt),
		AuthMethod:      j.AuthMethod,
	}
	return sess, nil
}

// Put writes a session in the auth service's layout with a TTL matching its
// expiry. Used by local tooling; the server itself never writes sessions.
func (s *RedisSessions) Put(ctx context.Context, sess Session) error {
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", sess.Ref)
	}
	data, err := json.Marshal(sessionJSON{
		GuardianID: string(sess.GuardianID),
		Status:     "active",
		AuthMethod: sess.AuthMethod,
		CreatedAt:  sess.AuthenticatedAt.UnixNano(),
		ExpiresAt:  sess.ExpiresAt.UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, sessionKeyPrefix+sess.Ref, data, ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}
