package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"consentd/internal/consent/audit"
	consenthandler "consentd/internal/consent/handler"
	"consentd/internal/consent/identity"
	consentmetrics "consentd/internal/consent/metrics"
	"consentd/internal/consent/purpose"
	consentservice "consentd/internal/consent/service"
	consentstore "consentd/internal/consent/store"
	"consentd/internal/consent/verification"
	"consentd/internal/consent/verification/challenge"
	"consentd/internal/consent/verification/delivery"
	"consentd/internal/consent/workers/sweeper"
	"consentd/internal/platform/config"
	"consentd/internal/platform/database"
	"consentd/internal/platform/health"
	"consentd/internal/platform/kafka"
	"consentd/internal/platform/kafka/producer"
	"consentd/internal/platform/logger"
	"consentd/internal/platform/redis"
	"consentd/internal/seeder"
	"consentd/pkg/platform/audit/outbox"
	outboxmetrics "consentd/pkg/platform/audit/outbox/metrics"
	outboxpostgres "consentd/pkg/platform/audit/outbox/store/postgres"
	outboxworker "consentd/pkg/platform/audit/outbox/worker"
	"consentd/pkg/platform/circuit"
	"consentd/pkg/platform/middleware/admin"
	"consentd/pkg/platform/middleware/auth"
	"consentd/pkg/platform/middleware/metadata"
	"consentd/pkg/platform/middleware/request"
	"consentd/pkg/platform/middleware/requesttime"
	"consentd/pkg/secrets"
	"consentd/pkg/validation"
)

const (
	requestTimeout  = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal consent packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.Environment)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

// purposeCatalog is satisfied by both the in-memory and Postgres catalogs.
type purposeCatalog interface {
	seeder.PurposeRegistrar
	consentservice.PurposeRegistry
	sweeper.PurposeLister
}

// infra holds the optional external connections. Nil fields mean the
// in-memory fallback is in use.
type infra struct {
	db       *database.Pool
	redis    *redis.Client
	producer *producer.Producer
}

func (i *infra) close(ctx context.Context, log *slog.Logger) {
	if i.producer != nil {
		if err := i.producer.Close(ctx); err != nil {
			log.Warn("kafka producer close failed", "error", err)
		}
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Warn("redis close failed", "error", err)
		}
	}
	if err := i.db.Close(); err != nil {
		log.Warn("database close failed", "error", err)
	}
}

func connect(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, error) {
	if !cfg.IsDevelopment() && (cfg.DatabaseURL == "" || cfg.RedisURL == "") {
		return nil, fmt.Errorf("DATABASE_URL and REDIS_URL are required in %s", cfg.Environment)
	}

	i := &infra{}
	var err error
	if i.db, err = database.New(ctx, database.DefaultConfig(cfg.DatabaseURL)); err != nil {
		return nil, err
	}
	if i.redis, err = redis.New(ctx, cfg.RedisURL, redis.NewPoolMetrics()); err != nil {
		i.close(ctx, log)
		return nil, err
	}
	if cfg.KafkaBrokers != "" {
		pcfg := kafka.DefaultProducerConfig()
		pcfg.Brokers = cfg.KafkaBrokers
		if i.producer, err = producer.New(pcfg, log); err != nil {
			i.close(ctx, log)
			return nil, err
		}
	}

	log.Info("infrastructure connected",
		"postgres", i.db != nil,
		"redis", i.redis != nil,
		"kafka", i.producer != nil,
	)
	return i, nil
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	log.Info("initializing consentd",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"conflict_policy", cfg.Features.ConflictPolicy,
	)

	deps, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.close(context.Background(), log)

	consentMetrics := consentmetrics.New()
	healthHandler := health.New(cfg.Environment)

	// Stores and transaction boundary.
	var (
		reads        consentservice.Stores
		tx           consentservice.ConsentTx
		purposes     purposeCatalog
		directory    consentservice.GuardianDirectory
		linker       seeder.GuardianLinker
		attestations identity.AttestationVerifier
	)
	if deps.db != nil {
		db := deps.db.DB()
		reads = consentservice.Stores{
			Records: consentstore.NewPostgres(db),
			Audit:   audit.NewPostgres(db),
			Outbox:  outboxpostgres.New(db),
		}
		tx = newConsentPostgresTx(db, consentMetrics, log)
		purposes = purpose.NewPostgresCatalog(db)
		pgDirectory := identity.NewPostgresDirectory(db)
		directory, linker = pgDirectory, pgDirectory
		attestations = identity.NewPostgresAttestations(db)
		healthHandler.RegisterCheck("postgres", deps.db.Health)
	} else {
		reads = consentservice.Stores{
			Records: consentstore.NewInMemory(),
			Audit:   audit.NewInMemory(),
			Outbox:  outbox.NewInMemoryStore(),
		}
		tx = consentservice.NewShardedTx(reads, consentservice.WithTxMetrics(consentMetrics))
		catalog, err := purpose.NewCatalog()
		if err != nil {
			return err
		}
		purposes = catalog
		memDirectory := identity.NewInMemoryDirectory()
		directory, linker = memDirectory, seeder.LinkerFunc(inMemoryLinker(memDirectory))
		attestations = identity.NewInMemoryAttestations()
		log.Warn("DATABASE_URL not set; consent records are kept in memory")
	}

	// Challenges and upstream sessions.
	var (
		challenges   verification.ChallengeStore
		sessions     identity.SessionVerifier
		demoSessions seeder.SessionStore
	)
	if deps.redis != nil {
		challenges = challenge.NewRedisStore(deps.redis.Client)
		redisSessions := identity.NewRedisSessions(deps.redis.Client)
		sessions, demoSessions = redisSessions, redisSessions
		healthHandler.RegisterCheck("redis", deps.redis.Health)
	} else {
		challenges = challenge.NewInMemoryStore()
		memSessions := identity.NewInMemorySessions()
		sessions, demoSessions = memSessions, seeder.SessionStoreFunc(inMemorySessionStore(memSessions))
		log.Warn("REDIS_URL not set; challenges and sessions are kept in memory")
	}

	// Outbound delivery and the audit stream publisher.
	var (
		sender    delivery.Sender
		publisher outboxworker.Publisher
	)
	if deps.producer != nil {
		sender = delivery.NewBreakerSender(
			delivery.NewKafkaSender(deps.producer, cfg.NotificationTopic, log),
			circuit.New("notification_gateway"),
			log,
		)
		publisher = deps.producer
		kafkaHealth := kafka.NewHealthChecker(cfg.KafkaBrokers)
		healthHandler.RegisterCheck(kafkaHealth.Name(), kafkaHealth.Check)
	} else {
		sender = delivery.NewLogSender(log)
		if deps.db == nil {
			// Keeps the in-memory outbox bounded.
			publisher = producer.NoopProducer{}
		}
		log.Warn("KAFKA_BROKERS not set; notifications are logged, not delivered")
	}

	seed := seeder.New(purposes, linker, demoSessions, log)
	if err := seed.SeedPurposes(ctx, purpose.Defaults()); err != nil {
		return err
	}
	if cfg.IsDevelopment() {
		demo, err := seed.SeedDemo(ctx)
		if err != nil {
			return err
		}
		for _, d := range demo {
			log.Info("demo guardianship",
				"guardian_id", d.GuardianID,
				"student_id", d.StudentID,
				"session_ref", d.Ref,
			)
		}
	}

	// Verification and lifecycle engine.
	hasher, err := verification.NewHasher(verification.DefaultArgon2Params(), cfg.OTPPepper)
	if err != nil {
		return err
	}
	dispatcher := verification.NewDispatcher(challenges, sender, hasher,
		[]verification.Channel{
			verification.NewOTPChannel(hasher),
			verification.NewIdentityChannel(sessions, hasher, cfg.SessionMaxAge),
			verification.NewManualChannel(attestations, hasher),
		},
		verification.WithChallengeTTL(cfg.ChallengeTTL),
		verification.WithMaxAttempts(cfg.MaxVerificationAttempts),
		verification.WithLogger(log),
	)
	consentService := consentservice.New(reads, tx, purposes, directory, dispatcher,
		consentservice.WithFeatures(cfg.Features),
		consentservice.WithMetrics(consentMetrics),
		consentservice.WithLogger(log),
	)

	consentSweeper, err := sweeper.New(reads.Records, purposes, consentService,
		sweeper.WithInterval(cfg.SweepInterval),
		sweeper.WithPendingTTL(cfg.PendingTTL),
		sweeper.WithRedactAfter(cfg.RedactAfter),
		sweeper.WithMetrics(consentMetrics),
		sweeper.WithLogger(log),
	)
	if err != nil {
		return err
	}

	// HTTP surface.
	trusted, err := metadata.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return err
	}
	router, err := newRouter(cfg, log, trusted, consenthandler.New(consentService, log), sessionResolver(sessions), healthHandler, request.NewMetrics())
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		if err := consentSweeper.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("consent sweeper: %w", err)
		}
		return nil
	})
	if publisher != nil {
		worker := outboxworker.New(reads.Outbox, publisher,
			outboxworker.WithTopic(cfg.AuditTopic),
			outboxworker.WithMetrics(outboxmetrics.New()),
			outboxworker.WithLogger(log),
		)
		g.Go(func() error { return worker.Run(gctx) })
	} else {
		log.Warn("audit outbox worker disabled; entries stay pending until Kafka is configured")
	}
	if deps.redis != nil {
		g.Go(func() error { return deps.redis.RunPoolStats(gctx, 15*time.Second) })
	}

	return g.Wait()
}

func newRouter(cfg config.Server, log *slog.Logger, trusted []netip.Prefix, consent *consenthandler.Handler, resolver auth.SessionResolver, healthHandler *health.Handler, httpMetrics *request.Metrics) (http.Handler, error) {
	adminMatcher, err := newAdminMatcher(cfg)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(log))
	r.Use(requesttime.Middleware)
	r.Use(metadata.NewMiddleware(trusted).Handler)
	r.Use(request.Logger(log))
	r.Use(request.Instrument(httpMetrics))

	healthHandler.Register(r)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(requestTimeout))
		r.Use(request.BodyLimit(validation.MaxBodySize))
		r.Use(request.ContentTypeJSON)
		r.Use(auth.RequireGuardian(resolver, log))
		consent.Register(r)
	})

	if cfg.AdminEnabled() {
		r.Group(func(r chi.Router) {
			r.Use(request.Timeout(requestTimeout))
			r.Use(request.BodyLimit(validation.MaxBodySize))
			r.Use(request.ContentTypeJSON)
			r.Use(admin.RequireAdmin(adminMatcher, log))
			consent.RegisterAdmin(r)
		})
	} else {
		log.Info("ADMIN_TOKEN not set; administrator routes are disabled")
	}
	return r, nil
}

// newAdminMatcher prefers the bcrypt hash when both forms are configured.
func newAdminMatcher(cfg config.Server) (admin.TokenMatcher, error) {
	if cfg.AdminTokenHash != "" {
		m, err := secrets.NewHashMatcher(cfg.AdminTokenHash)
		if err != nil {
			return nil, fmt.Errorf("ADMIN_TOKEN_HASH: %w", err)
		}
		return m, nil
	}
	return admin.PlainToken(cfg.AdminToken), nil
}
