package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	pstrings "consentd/pkg/platform/strings"
)

// Conflict policies for a consent request on a pair that already has a
// granted record.
const (
	ConflictReject    = "reject"
	ConflictSupersede = "supersede"
)

// Features switches deployment-level behavior of the consent engine. It is
// passed explicitly into the engine rather than read from globals.
type Features struct {
	// EnabledMethods lists verification methods accepted for new requests.
	// Empty means every registered method is enabled.
	EnabledMethods []string
	ConflictPolicy string
}

// MethodEnabled reports whether new requests may use method.
func (f Features) MethodEnabled(method string) bool {
	if len(f.EnabledMethods) == 0 {
		return true
	}
	return slices.Contains(f.EnabledMethods, method)
}

// Supersede reports whether a new request replaces a granted record.
func (f Features) Supersede() bool {
	return f.ConflictPolicy == ConflictSupersede
}

// Server captures process level configuration.
type Server struct {
	Addr        string
	Environment string
	LogLevel    string

	DatabaseURL string
	RedisURL    string

	KafkaBrokers      string
	NotificationTopic string
	AuditTopic        string

	ChallengeTTL            time.Duration
	MaxVerificationAttempts int
	SessionMaxAge           time.Duration
	OTPPepper               string

	SweepInterval time.Duration
	PendingTTL    time.Duration
	RedactAfter   time.Duration

	TrustedProxies []string
	// AdminToken or its bcrypt AdminTokenHash guards the /admin routes. With
	// neither set the routes are not mounted.
	AdminToken     string
	AdminTokenHash string

	Features Features
}

// Default values for unset variables.
var (
	DefaultChallengeTTL  = 10 * time.Minute
	DefaultSweepInterval = time.Hour
	DefaultPendingTTL    = 24 * time.Hour
	DefaultSessionMaxAge = 15 * time.Minute
)

// AdminEnabled reports whether administrator routes are mounted.
func (s Server) AdminEnabled() bool {
	return s.AdminToken != "" || s.AdminTokenHash != ""
}

// IsDevelopment reports whether in-memory fallbacks are acceptable.
func (s Server) IsDevelopment() bool {
	return s.Environment == "" || s.Environment == "development"
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() (Server, error) {
	cfg := Server{
		Addr:                    getEnv("CONSENT_ADDR", ":8080"),
		Environment:             getEnv("ENVIRONMENT", "development"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		RedisURL:                os.Getenv("REDIS_URL"),
		KafkaBrokers:            os.Getenv("KAFKA_BROKERS"),
		NotificationTopic:       getEnv("NOTIFICATION_TOPIC", "consent.notifications"),
		AuditTopic:              getEnv("AUDIT_TOPIC", "consent.audit.events"),
		OTPPepper:               os.Getenv("OTP_PEPPER"),
		TrustedProxies:          pstrings.SplitList(os.Getenv("TRUSTED_PROXIES")),
		AdminToken:              os.Getenv("ADMIN_TOKEN"),
		AdminTokenHash:          os.Getenv("ADMIN_TOKEN_HASH"),
		MaxVerificationAttempts: 5,
		Features: Features{
			EnabledMethods: pstrings.DedupeAndTrimUpper(strings.Split(os.Getenv("ENABLED_METHODS"), ",")),
			ConflictPolicy: strings.ToLower(getEnv("CONFLICT_POLICY", ConflictReject)),
		},
	}

	var err error
	if cfg.ChallengeTTL, err = durationEnv("CHALLENGE_TTL", DefaultChallengeTTL); err != nil {
		return Server{}, err
	}
	if cfg.SessionMaxAge, err = durationEnv("SESSION_MAX_AGE", DefaultSessionMaxAge); err != nil {
		return Server{}, err
	}
	if cfg.SweepInterval, err = durationEnv("SWEEP_INTERVAL", DefaultSweepInterval); err != nil {
		return Server{}, err
	}
	if cfg.PendingTTL, err = durationEnv("PENDING_TTL", DefaultPendingTTL); err != nil {
		return Server{}, err
	}
	if cfg.RedactAfter, err = durationEnv("REDACT_AFTER", 0); err != nil {
		return Server{}, err
	}
	if v := os.Getenv("MAX_VERIFICATION_ATTEMPTS"); v != "" {
		n, convErr := strconv.Atoi(v)
		if convErr != nil || n <= 0 {
			return Server{}, fmt.Errorf("MAX_VERIFICATION_ATTEMPTS must be a positive integer, got %q", v)
		}
		cfg.MaxVerificationAttempts = n
	}

	switch cfg.Features.ConflictPolicy {
	case ConflictReject, ConflictSupersede:
	default:
		return Server{}, fmt.Errorf("CONFLICT_POLICY must be %q or %q, got %q",
			ConflictReject, ConflictSupersede, cfg.Features.ConflictPolicy)
	}
	if !cfg.IsDevelopment() && cfg.OTPPepper == "" {
		return Server{}, fmt.Errorf("OTP_PEPPER is required outside development")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}
