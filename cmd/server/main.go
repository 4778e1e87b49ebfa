package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"civreg/internal/audit"
	"civreg/internal/event/authz"
	"civreg/internal/event/handler"
	"civreg/internal/event/service"
	"civreg/internal/event/store/record"
	"civreg/internal/index"
	"civreg/internal/location"
	"civreg/internal/notify"
	"civreg/internal/platform/config"
	"civreg/internal/platform/httpserver"
	"civreg/internal/platform/kafka"
	"civreg/internal/platform/logger"
	"civreg/internal/platform/metrics"
	"civreg/internal/platform/redis"
	"civreg/internal/ratelimit"
	"civreg/internal/regnumber"
	"civreg/internal/token"
	"civreg/internal/webhook"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal service
// packages. Backends missing from config are replaced with in-memory
// implementations, which keeps local development a one-command affair.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores.
	var (
		records   service.Store
		indexes   index.Store
		trail     audit.Store
		locations location.Resolver
	)
	if cfg.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		records = record.NewPostgres(pool)
		indexes = index.NewPostgres(pool)
		trail = audit.NewPostgresStore(pool)
		locations = location.NewPostgres(pool)
	} else {
		log.Warn("POSTGRES_URL not set, using in-memory stores")
		records = record.NewInMemory()
		indexes = index.NewInMemory()
		trail = audit.NewInMemoryStore()
		seed := location.DevSeed()
		if cfg.LocationsFile != "" {
			var err error
			if seed, err = location.LoadFile(cfg.LocationsFile); err != nil {
				log.Error("location seed failed", "path", cfg.LocationsFile, "error", err)
				os.Exit(1)
			}
		}
		locations = location.NewInMemory(seed...)
	}

	// Redis-backed queueing, idempotency and rate limiting, when configured.
	var outbox notify.Outbox = notify.NewMemoryOutbox()
	var reserver service.Reserver
	var limitStore ratelimit.Store = ratelimit.NewMemoryStore()
	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		outbox = notify.NewRedisOutbox(redisClient, cfg.NotifyQueue)
		reserver = service.NewRedisReserver(redisClient, 24*time.Hour)
		limitStore = ratelimit.NewRedisStore(redisClient)
	}

	// Audit trail, mirrored to Kafka when brokers are configured.
	auditOpts := []audit.Option{audit.WithLogger(log)}
	producer, err := kafka.NewProducer(cfg.KafkaBrokers)
	if err != nil {
		log.Error("kafka connection failed", "error", err)
		os.Exit(1)
	}
	if producer != nil {
		defer producer.Close()
		if err := producer.EnsureTopic(ctx, cfg.AuditTopic, 3); err != nil {
			log.Error("audit topic setup failed", "error", err)
			os.Exit(1)
		}
		auditOpts = append(auditOpts, audit.WithProducer(producer, cfg.AuditTopic))
	}
	auditor := audit.NewPublisher(trail, auditOpts...)
	defer auditor.Close()

	// Notification delivery worker.
	notifier := notify.NewService(notify.DefaultRules(), outbox, log)
	sender := logSender{log}
	worker := notify.NewWorker(outbox, sender, log, cfg.NotifyBackoff, 3)
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("notification worker stopped", "error", err)
		}
	}()

	// Webhooks.
	var endpoints []webhook.Endpoint
	for _, raw := range cfg.WebhookEndpoints {
		url, secret, _ := strings.Cut(raw, "|")
		endpoints = append(endpoints, webhook.Endpoint{URL: url, Secret: secret})
	}
	dispatcher := webhook.NewDispatcher(endpoints, log)

	// The pipeline.
	indexSvc := index.NewService(indexes, log)
	opts := []service.Option{
		service.WithIndexer(indexSvc),
		service.WithAuditor(auditor),
		service.WithNotifier(notifier),
		service.WithWebhooks(dispatcher),
		service.WithMetrics(m),
		service.WithLogger(log),
		service.WithMaxAttempts(cfg.CommitMaxAttempts),
	}
	if reserver != nil {
		opts = append(opts, service.WithReserver(reserver))
	}
	svc := service.NewService(
		records,
		authz.NewResolver(authz.DefaultConfig()),
		regnumber.NewGenerator(locations),
		opts...,
	)

	jwtService := token.NewJWTService(cfg.JWTSigningKey, "civreg", "civreg")

	router := chi.NewRouter()
	if cfg.RateLimit > 0 {
		router.Use(ratelimit.Middleware(limitStore, cfg.RateLimit, cfg.RateLimitWindow, log))
	}
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())
	handler.New(svc, indexSvc, jwtService, log).Register(router)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting civreg", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}

// logSender stands in for an SMS/email gateway until one is configured.
type logSender struct {
	log *slog.Logger
}

func (s logSender) Send(_ context.Context, n notify.Notification) error {
	s.log.Info("notification delivered",
		"event_id", n.EventID,
		"action_type", n.ActionType,
		"tracking_id", n.TrackingID,
	)
	return nil
}
