package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-level configuration. Empty PostgresDSN or RedisURL
// means the in-memory fallbacks are used; empty KafkaBrokers disables the
// audit publisher worker.
type Config struct {
	Addr          string
	JWTSigningKey string

	PostgresDSN string
	Redis       RedisConfig

	KafkaBrokers []string
	AuditTopic   string

	NotifyWorkers int
	NotifyBuffer  int
}

// RedisConfig tunes the shared Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RuleSetCacheTTL bounds staleness of the active rule-set cache. Writes
// invalidate eagerly; the TTL is a backstop for missed invalidations.
var RuleSetCacheTTL = 5 * time.Minute

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	addr := os.Getenv("CREDITGATE_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}
	topic := os.Getenv("AUDIT_TOPIC")
	if topic == "" {
		topic = "creditgate.audit"
	}

	return Config{
		Addr:          addr,
		JWTSigningKey: jwtSigningKey,
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		KafkaBrokers:  brokers,
		AuditTopic:    topic,
		NotifyWorkers: envInt("NOTIFY_WORKERS", 2),
		NotifyBuffer:  envInt("NOTIFY_BUFFER", 256),
	}
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
