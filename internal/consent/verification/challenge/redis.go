package challenge

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"consentd/internal/consent/models"
	id "consentd/pkg/domain"
	"consentd/pkg/platform/sentinel"
)

const (
	challengeKeyPrefix = "consent:challenge:"

	// expiredGrace keeps an expired challenge readable for a while so a late
	// submission is reported as expired rather than unknown.
	expiredGrace = time.Hour
)

// RedisStore keeps challenges as Redis hashes with a TTL.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func challengeKey(consentID id.ConsentID) string {
	return challengeKeyPrefix + string(consentID)
}

// Save replaces any challenge already held for the consent.
func (s *RedisStore) Save(ctx context.Context, ch *models.Challenge) error {
	key := challengeKey(ch.ConsentID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, map[string]any{
			"method":       string(ch.Method),
			"guardian_id":  string(ch.GuardianID),
			"code_hash":    base64.RawStdEncoding.EncodeToString(ch.CodeHash),
			"salt":         base64.RawStdEncoding.EncodeToString(ch.Salt),
			"subject":      ch.Subject,
			"destination":  ch.Destination,
			"issued_at":    ch.IssuedAt.UnixNano(),
			"expires_at":   ch.ExpiresAt.UnixNano(),
			"max_attempts": ch.MaxAttempts,
		})
		pipe.ExpireAt(ctx, key, ch.ExpiresAt.Add(expiredGrace))
		return nil
	})
	if err != nil {
		return fmt.Errorf("save challenge: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, consentID id.ConsentID) (*models.Challenge, error) {
	fields, err := s.client.HGetAll(ctx, challengeKey(consentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	if len(fields) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return decodeChallenge(consentID, fields)
}

// Delete is idempotent.
func (s *RedisStore) Delete(ctx context.Context, consentID id.ConsentID) error {
	if err := s.client.Del(ctx, challengeKey(consentID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("delete challenge: %w", err)
	}
	return nil
}

func decodeChallenge(consentID id.ConsentID, f map[string]string) (*models.Challenge, error) {
	hash, err := base64.RawStdEncoding.DecodeString(f["code_hash"])
	if err != nil {
		return nil, fmt.Errorf("decode code hash: %w", err)
	}
	salt, err := base64.RawStdEncoding.DecodeString(f["salt"])
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	issued, err := strconv.ParseInt(f["issued_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode issued_at: %w", err)
	}
	expires, err := strconv.ParseInt(f["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode expires_at: %w", err)
	}
	maxAttempts, _ := strconv.Atoi(f["max_attempts"]) //nolint:errcheck // absent means the dispatcher default
	return &models.Challenge{
		ConsentID:   consentID,
		Method:      models.Method(f["method"]),
		GuardianID:  id.GuardianID(f["guardian_id"]),
		CodeHash:    hash,
		Salt:        salt,
		Subject:     f["subject"],
		Destination: f["destination"],
		IssuedAt:    time.Unix(0, issued),
		ExpiresAt:   time.Unix(0, expires),
		MaxAttempts: maxAttempts,
	}, nil
}
