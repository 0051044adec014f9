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

// Base contains common configuration shared by all binaries.
type Base struct {
	// Service identification
	ServiceName string
	Environment string // development, staging, production
	Version     string

	// Server
	GRPCPort int

	// Storage backend
	StorageBackend StorageBackend

	// Database (used when StorageBackend is "postgres")
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis (job queue transport)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	QueueName     string

	// Worker
	WorkerConcurrency int
	TaskTimeout       time.Duration

	// Providers
	OpenAIAPIKey    string
	AnthropicAPIKey string
	FallbackModels  []string
	EmbeddingModel  string
	ProviderTimeout time.Duration
	ProviderRetries int

	// Observability
	ObserveEndpoint string
	LogLevel        string
	LogFormat       string // json, text

	// Tracing
	TracingEnabled  bool
	TracingSampling float64
}

// Load loads base configuration from environment variables.
func Load(serviceName string) (*Base, error) {
	cfg := &Base{
		ServiceName: serviceName,
		Environment: getEnv("REHOBOAM_ENV", "development"),
		Version:     getEnv("REHOBOAM_VERSION", "dev"),

		GRPCPort: getEnvInt("REHOBOAM_GRPC_PORT", 9000),

		StorageBackend: parseStorageBackend(getEnv("REHOBOAM_STORAGE_BACKEND", "memory")),

		DBHost:     getEnv("REHOBOAM_DB_HOST", "localhost"),
		DBPort:     getEnvInt("REHOBOAM_DB_PORT", 5432),
		DBUser:     getEnv("REHOBOAM_DB_USER", "rehoboam"),
		DBPassword: getEnv("REHOBOAM_DB_PASSWORD", ""),
		DBName:     getEnv("REHOBOAM_DB_NAME", "rehoboam"),
		DBSSLMode:  getEnv("REHOBOAM_DB_SSLMODE", "disable"),

		RedisAddr:     getEnv("REHOBOAM_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REHOBOAM_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REHOBOAM_REDIS_DB", 0),
		QueueName:     getEnv("REHOBOAM_QUEUE_NAME", "evaluations"),

		WorkerConcurrency: getEnvInt("REHOBOAM_WORKER_CONCURRENCY", 4),
		TaskTimeout:       getEnvDuration("REHOBOAM_TASK_TIMEOUT", time.Hour),

		OpenAIAPIKey:    getEnv("REHOBOAM_OPENAI_API_KEY", os.Getenv("OPENAI_API_KEY")),
		AnthropicAPIKey: getEnv("REHOBOAM_ANTHROPIC_API_KEY", os.Getenv("ANTHROPIC_API_KEY")),
		FallbackModels:  getEnvList("REHOBOAM_FALLBACK_MODELS"),
		EmbeddingModel:  getEnv("REHOBOAM_EMBEDDING_MODEL", "text-embedding-3-small"),
		ProviderTimeout: getEnvDuration("REHOBOAM_PROVIDER_TIMEOUT", 2*time.Minute),
		ProviderRetries: getEnvInt("REHOBOAM_PROVIDER_RETRIES", 3),

		ObserveEndpoint: getEnv("REHOBOAM_OBSERVE_ENDPOINT", "localhost:4317"),
		LogLevel:        getEnv("REHOBOAM_LOG_LEVEL", "info"),
		LogFormat:       getEnv("REHOBOAM_LOG_FORMAT", "json"),

		TracingEnabled:  getEnvBool("REHOBOAM_TRACING_ENABLED", false),
		TracingSampling: getEnvFloat("REHOBOAM_TRACING_SAMPLING", 1.0),
	}

	return cfg, nil
}

// DatabaseDSN returns the PostgreSQL connection string.
func (c *Base) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// IsDevelopment returns true if running in development mode.
func (c *Base) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (c *Base) IsProduction() bool {
	return c.Environment == "production"
}

// UseMemoryStorage returns true if using in-memory storage.
func (c *Base) UseMemoryStorage() bool {
	return c.StorageBackend == StorageMemory
}

// UsePostgresStorage returns true if using PostgreSQL storage.
func (c *Base) UsePostgresStorage() bool {
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

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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
