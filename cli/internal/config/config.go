// Package config provides configuration for the CLI.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds CLI presentation settings. Storage and queue settings come
// from the shared environment configuration.
type Config struct {
	// Output format
	Format string // json, table, yaml

	// Per-command deadline
	Timeout time.Duration

	// Verbosity
	Verbose bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Format:  getEnv("REHOBOAM_FORMAT", "table"),
		Timeout: getEnvDuration("REHOBOAM_CLI_TIMEOUT", 30*time.Second),
		Verbose: getEnvBool("REHOBOAM_VERBOSE", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
