package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the process configuration assembled from the environment.
type Config struct {
	Server   Server
	Auth     Auth
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Ledger   Ledger
	Log      Log
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
	// WriteRateLimit is the per-caller write requests allowed per minute; 0 disables.
	WriteRateLimit int
}

// Auth configures caller-identity tokens and the bootstrap administrator.
type Auth struct {
	JWTSigningKey string
	JWTIssuer     string
	RootIdentity  string
}

// DatabaseConfig selects the Postgres backend. An empty URL keeps the ledger in memory.
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig configures the event fan-out channel. An empty URL disables it.
type RedisConfig struct {
	URL          string
	Channel      string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the outbox relay. No brokers disables it.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	PollInterval time.Duration
	BatchSize    int
}

// Ledger holds the custody engine parameters.
type Ledger struct {
	MinScans     uint64
	RefundLock   time.Duration
	ScheduleFile string
}

// Log selects slog level and handler format.
type Log struct {
	Level  string
	Format string
}

// DefaultRefundLock is the donor refund lock period.
const DefaultRefundLock = 30 * 24 * time.Hour

// DefaultMinScans is the scan count an asset needs before milestones pay out.
const DefaultMinScans = 2

// DefaultWriteRateLimit is the per-caller write budget per minute.
const DefaultWriteRateLimit = 120

const devSigningKey = "dev-secret-key-change-in-production"

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	cfg := Config{
		Server: Server{
			Addr:            getEnv("AIDTRACE_ADDR", ":8080"),
			ShutdownTimeout: 10 * time.Second,
			WriteRateLimit:  DefaultWriteRateLimit,
		},
		Auth: Auth{
			// Use a default for development - should be overridden in production
			JWTSigningKey: getEnv("AIDTRACE_JWT_SIGNING_KEY", devSigningKey),
			JWTIssuer:     getEnv("AIDTRACE_JWT_ISSUER", "aidtrace"),
			RootIdentity:  os.Getenv("AIDTRACE_ROOT_IDENTITY"),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("AIDTRACE_DATABASE_URL"),
			MaxOpenConns: 20,
			MaxIdleConns: 5,
		},
		Redis: RedisConfig{
			URL:          os.Getenv("AIDTRACE_REDIS_URL"),
			Channel:      getEnv("AIDTRACE_REDIS_CHANNEL", "aidtrace:events"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:      splitList(os.Getenv("AIDTRACE_KAFKA_BROKERS")),
			Topic:        getEnv("AIDTRACE_KAFKA_TOPIC", "aidtrace.ledger.events"),
			PollInterval: time.Second,
			BatchSize:    100,
		},
		Ledger: Ledger{
			MinScans:     DefaultMinScans,
			RefundLock:   DefaultRefundLock,
			ScheduleFile: os.Getenv("AIDTRACE_MILESTONE_SCHEDULE_FILE"),
		},
		Log: Log{
			Level:  getEnv("AIDTRACE_LOG_LEVEL", "info"),
			Format: getEnv("AIDTRACE_LOG_FORMAT", "json"),
		},
	}

	if v := os.Getenv("AIDTRACE_MIN_SCANS"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil || n == 0 {
			return Config{}, fmt.Errorf("AIDTRACE_MIN_SCANS must be a positive integer, got %q", v)
		}
		cfg.Ledger.MinScans = n
	}
	if v := os.Getenv("AIDTRACE_REFUND_LOCK"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("AIDTRACE_REFUND_LOCK must be a non-negative duration, got %q", v)
		}
		cfg.Ledger.RefundLock = d
	}
	if v := os.Getenv("AIDTRACE_WRITE_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("AIDTRACE_WRITE_RATE_LIMIT must be a non-negative integer, got %q", v)
		}
		cfg.Server.WriteRateLimit = n
	}
	if cfg.Auth.RootIdentity == "" {
		return Config{}, fmt.Errorf("AIDTRACE_ROOT_IDENTITY is required")
	}
	return cfg, nil
}

// ScheduleEntry is one row of the milestone schedule file.
type ScheduleEntry struct {
	Stage   string `yaml:"stage"`
	Percent uint8  `yaml:"percent"`
}

type scheduleFile struct {
	Milestones []ScheduleEntry `yaml:"milestones"`
}

// LoadSchedule reads the default milestone schedule from a YAML file:
//
//	milestones:
//	  - stage: hub
//	    percent: 40
//	  - stage: beneficiary
//	    percent: 60
//
// Validation of stages and percentages is left to the ledger.
func LoadSchedule(path string) ([]ScheduleEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read milestone schedule: %w", err)
	}
	var f scheduleFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse milestone schedule %s: %w", path, err)
	}
	if len(f.Milestones) == 0 {
		return nil, fmt.Errorf("milestone schedule %s has no entries", path)
	}
	return f.Milestones, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
