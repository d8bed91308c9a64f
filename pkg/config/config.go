// Package config provides configuration loading from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// StorageBackend represents the storage implementation type.
type StorageBackend string

const (
	// StorageMemory uses in-memory storage (for development/testing).
	StorageMemory StorageBackend = "memory"
	// StoragePostgres uses PostgreSQL storage (for production).
	StoragePostgres StorageBackend = "postgres"
)

// DeliveryMode selects how completed telemetry reaches the collector.
type DeliveryMode string

const (
	// DeliveryAsync enqueues envelopes for the background worker.
	DeliveryAsync DeliveryMode = "async"
	// DeliverySync exports envelopes inline, blocking the caller.
	DeliverySync DeliveryMode = "sync"
)

// ParseMode selects the envelope field-extraction strategy.
type ParseMode string

const (
	// ParseNative uses the structured JSON decoder.
	ParseNative ParseMode = "native"
	// ParsePattern uses regex-based extraction for hosts without native JSON support.
	ParsePattern ParseMode = "pattern"
)

// DeadLetterPolicy controls what happens to a queue entry after its
// dead-letter snapshot is written.
type DeadLetterPolicy string

const (
	// DeadLetterFlag leaves the exhausted entry in the queue for audit.
	DeadLetterFlag DeadLetterPolicy = "flag"
	// DeadLetterDelete removes the exhausted entry from the queue.
	DeadLetterDelete DeadLetterPolicy = "delete"
)

// Config holds the full Beacon configuration.
type Config struct {
	// Service identification, stamped onto every outbound payload
	ServiceName string
	Version     string
	Environment string // development, staging, production
	TenantID    string

	// Collector endpoints. CollectorURL is the base; per-signal overrides win.
	CollectorURL    string
	TracesEndpoint  string
	MetricsEndpoint string
	LogsEndpoint    string

	// HTTP transport
	HTTPTimeout time.Duration

	// Delivery
	Mode             DeliveryMode
	ParseMode        ParseMode
	MaxAttempts      int
	BatchSize        int
	PollInterval     time.Duration
	DeadLetterPolicy DeadLetterPolicy

	// Storage backend
	StorageBackend StorageBackend

	// Database (used when StorageBackend is "postgres")
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis (worker lease and counters; empty disables)
	RedisURL string

	// Logging
	LogLevel  string
	LogFormat string // json, text
	Debug     bool
}

// Load loads configuration from environment variables.
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		ServiceName: getEnv("BEACON_SERVICE_NAME", serviceName),
		Version:     getEnv("BEACON_VERSION", "dev"),
		Environment: getEnv("BEACON_ENV", "development"),
		TenantID:    getEnv("BEACON_TENANT_ID", "default"),

		CollectorURL:    getEnv("BEACON_COLLECTOR_URL", "http://localhost:4318"),
		TracesEndpoint:  getEnv("BEACON_TRACES_ENDPOINT", ""),
		MetricsEndpoint: getEnv("BEACON_METRICS_ENDPOINT", ""),
		LogsEndpoint:    getEnv("BEACON_LOGS_ENDPOINT", ""),

		HTTPTimeout: getEnvDuration("BEACON_HTTP_TIMEOUT", 10*time.Second),

		Mode:             parseDeliveryMode(getEnv("BEACON_DELIVERY_MODE", "async")),
		ParseMode:        parseParseMode(getEnv("BEACON_PARSE_MODE", "native")),
		MaxAttempts:      getEnvInt("BEACON_QUEUE_MAX_ATTEMPTS", 3),
		BatchSize:        getEnvInt("BEACON_QUEUE_BATCH_SIZE", 50),
		PollInterval:     getEnvDuration("BEACON_QUEUE_POLL_INTERVAL", 5*time.Second),
		DeadLetterPolicy: parseDeadLetterPolicy(getEnv("BEACON_QUEUE_DEADLETTER_POLICY", "flag")),

		StorageBackend: parseStorageBackend(getEnv("BEACON_STORAGE_BACKEND", "memory")),

		DBHost:     getEnv("BEACON_DB_HOST", "localhost"),
		DBPort:     getEnvInt("BEACON_DB_PORT", 5432),
		DBUser:     getEnv("BEACON_DB_USER", "beacon"),
		DBPassword: getEnv("BEACON_DB_PASSWORD", ""),
		DBName:     getEnv("BEACON_DB_NAME", "beacon"),
		DBSSLMode:  getEnv("BEACON_DB_SSLMODE", "disable"),

		RedisURL: getEnv("BEACON_REDIS_URL", ""),

		LogLevel:  getEnv("BEACON_LOG_LEVEL", "info"),
		LogFormat: getEnv("BEACON_LOG_FORMAT", "json"),
		Debug:     getEnvBool("BEACON_DEBUG", false),
	}

	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("BEACON_QUEUE_MAX_ATTEMPTS must be >= 1, got %d", cfg.MaxAttempts)
	}
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("BEACON_QUEUE_BATCH_SIZE must be >= 1, got %d", cfg.BatchSize)
	}

	return cfg, nil
}

// DatabaseDSN returns the PostgreSQL connection string.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// SignalURL returns the endpoint for one signal, applying per-signal
// overrides over the collector base URL.
func (c *Config) SignalURL(signal string) string {
	switch signal {
	case "traces":
		if c.TracesEndpoint != "" {
			return c.TracesEndpoint
		}
	case "metrics":
		if c.MetricsEndpoint != "" {
			return c.MetricsEndpoint
		}
	case "logs":
		if c.LogsEndpoint != "" {
			return c.LogsEndpoint
		}
	}
	return strings.TrimRight(c.CollectorURL, "/") + "/v1/" + signal
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// UsePostgresStorage returns true if using PostgreSQL storage.
func (c *Config) UsePostgresStorage() bool {
	return c.StorageBackend == StoragePostgres
}

// Helper functions

func parseStorageBackend(s string) StorageBackend {
	switch s {
	case "postgres", "postgresql", "pg":
		return StoragePostgres
	default:
		return StorageMemory
	}
}

func parseDeliveryMode(s string) DeliveryMode {
	if s == "sync" || s == "synchronous" {
		return DeliverySync
	}
	return DeliveryAsync
}

func parseParseMode(s string) ParseMode {
	if s == "pattern" || s == "regex" || s == "fallback" {
		return ParsePattern
	}
	return ParseNative
}

func parseDeadLetterPolicy(s string) DeadLetterPolicy {
	if s == "delete" {
		return DeadLetterDelete
	}
	return DeadLetterFlag
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
