package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "civreg/pkg/platform/strings"
)

// Config captures process configuration. FromEnv builds it from environment
// variables so main stays lean; empty backend endpoints mean the
// corresponding subsystem runs on its in-memory implementation.
type Config struct {
	Addr          string
	JWTSigningKey string

	PostgresURL  string
	Redis        RedisConfig
	KafkaBrokers []string
	AuditTopic   string

	// LocationsFile seeds the in-memory location resolver (JSON array).
	// Empty falls back to the built-in development hierarchy.
	LocationsFile string

	// CommitMaxAttempts bounds the conflict-retry loop in the pipeline.
	CommitMaxAttempts int

	// WebhookEndpoints lists "url|secret" pairs invoked after each commit.
	WebhookEndpoints []string

	NotifyQueue   string
	NotifyBackoff time.Duration

	// RateLimit bounds requests per caller over RateLimitWindow. Zero
	// disables enforcement.
	RateLimit       int
	RateLimitWindow time.Duration
}

// RedisConfig holds connection tuning for the shared Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:              envOr("CIVREG_ADDR", ":8080"),
		JWTSigningKey:     envOr("JWT_SIGNING_KEY", ""),
		PostgresURL:       os.Getenv("POSTGRES_URL"),
		LocationsFile:     os.Getenv("LOCATIONS_FILE"),
		AuditTopic:        envOr("AUDIT_TOPIC", "civreg.audit"),
		CommitMaxAttempts: envInt("COMMIT_MAX_ATTEMPTS", 5),
		NotifyQueue:       envOr("NOTIFY_QUEUE", "civreg:notify"),
		NotifyBackoff:     envDuration("NOTIFY_BACKOFF", 5*time.Second),
		RateLimit:         envInt("RATE_LIMIT", 300),
		RateLimitWindow:   envDuration("RATE_LIMIT_WINDOW", time.Minute),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = pstrings.DedupeAndTrim(strings.Split(brokers, ","))
	}
	if endpoints := os.Getenv("WEBHOOK_ENDPOINTS"); endpoints != "" {
		cfg.WebhookEndpoints = pstrings.DedupeAndTrim(strings.Split(endpoints, ","))
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
