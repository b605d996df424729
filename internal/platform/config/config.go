package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "healthpass/pkg/platform/strings"
)

// Server captures process level configuration.
type Server struct {
	Addr      string
	LogLevel  string
	LogFormat string

	Uniqueness Uniqueness
	Backend    Backend
	Redis      RedisConfig
	Postgres   PostgresConfig
	Kafka      KafkaConfig

	KeyRefreshInterval   time.Duration
	RevalidationInterval time.Duration

	// VoucherPublicKey is a PEM encoded public key; empty disables voucher
	// parsing.
	VoucherPublicKey string
	// LabPublicKey is a base64 ed25519 key; empty accepts unsigned lab results.
	LabPublicKey string
}

// Uniqueness controls remote redemption of ingested documents.
type Uniqueness struct {
	Enabled bool
	// Key overrides the embedded fingerprint key when set.
	Key string
}

type Backend struct {
	URL     string
	Timeout time.Duration
}

// RedisConfig configures the key-value store. An empty URL selects the
// in-memory store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig configures payload persistence. An empty URL selects the
// in-memory store.
type PostgresConfig struct {
	URL      string
	MaxConns int32
}

// KafkaConfig configures audit streaming. No brokers disables it.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:      env("HEALTHPASS_ADDR", ":8080"),
		LogLevel:  env("LOG_LEVEL", "info"),
		LogFormat: env("LOG_FORMAT", "json"),
		Uniqueness: Uniqueness{
			Enabled: envBool("UNIQUENESS_ENABLED", false),
			Key:     os.Getenv("UNIQUENESS_KEY"),
		},
		Backend: Backend{
			URL:     os.Getenv("BACKEND_URL"),
			Timeout: envDuration("BACKEND_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			URL:      os.Getenv("DATABASE_URL"),
			MaxConns: int32(envInt("DATABASE_MAX_CONNS", 8)),
		},
		Kafka: KafkaConfig{
			Brokers:    platformstrings.SplitList(os.Getenv("KAFKA_BROKERS")),
			AuditTopic: env("AUDIT_TOPIC", "healthpass.audit"),
		},
		KeyRefreshInterval:   envDuration("KEY_REFRESH_INTERVAL", time.Hour),
		RevalidationInterval: envDuration("REVALIDATION_INTERVAL", time.Hour),
		VoucherPublicKey:     os.Getenv("VOUCHER_PUBLIC_KEY"),
		LabPublicKey:         os.Getenv("LAB_PUBLIC_KEY"),
	}
}

func env(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
