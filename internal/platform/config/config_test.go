package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("CONSENT_ADDR", "")
	t.Setenv("CONFLICT_POLICY", "")
	t.Setenv("ENABLED_METHODS", "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, DefaultChallengeTTL, cfg.ChallengeTTL)
	assert.Equal(t, 5, cfg.MaxVerificationAttempts)
	assert.Equal(t, DefaultPendingTTL, cfg.PendingTTL)
	assert.Zero(t, cfg.RedactAfter)
	assert.Equal(t, ConflictReject, cfg.Features.ConflictPolicy)
	assert.True(t, cfg.Features.MethodEnabled("EMAIL_OTP"))
	assert.False(t, cfg.Features.Supersede())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("CHALLENGE_TTL", "5m")
	t.Setenv("MAX_VERIFICATION_ATTEMPTS", "3")
	t.Setenv("CONFLICT_POLICY", "Supersede")
	t.Setenv("ENABLED_METHODS", "EMAIL_OTP, SMS_OTP")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8")
	t.Setenv("ADMIN_TOKEN", "s3cret")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.ChallengeTTL)
	assert.Equal(t, 3, cfg.MaxVerificationAttempts)
	assert.True(t, cfg.Features.Supersede())
	assert.True(t, cfg.Features.MethodEnabled("SMS_OTP"))
	assert.False(t, cfg.Features.MethodEnabled("MANUAL_VERIFICATION"))
	assert.Equal(t, []string{"10.0.0.0/8"}, cfg.TrustedProxies)
	assert.Equal(t, "s3cret", cfg.AdminToken)
}

func TestFromEnv_Rejects(t *testing.T) {
	cases := map[string][2]string{
		"bad policy":   {"CONFLICT_POLICY", "merge"},
		"bad duration": {"PENDING_TTL", "soon"},
		"bad attempts": {"MAX_VERIFICATION_ATTEMPTS", "0"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}

	t.Run("pepper required in production", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "production")
		t.Setenv("OTP_PEPPER", "")
		_, err := FromEnv()
		assert.ErrorContains(t, err, "OTP_PEPPER")
	})
}
