// Package config loads application configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	// How long a stored series is served without re-asking the provider.
	CacheTTL time.Duration

	// Upstream HTTP client settings.
	HTTPTimeout  time.Duration
	RetryMax     int
	RetryBackoff time.Duration
}

// Load reads configuration from environment variables with defaults
// suitable for local development.
func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8080"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		RedisURL:     getEnv("REDIS_URL", ""),
		CacheTTL:     time.Duration(getEnvInt("CACHE_TTL_MIN", 360)) * time.Minute,
		HTTPTimeout:  time.Duration(getEnvInt("HTTP_TIMEOUT_MS", 15000)) * time.Millisecond,
		RetryMax:     getEnvInt("HTTP_RETRY_MAX", 3),
		RetryBackoff: time.Duration(getEnvInt("HTTP_RETRY_DELAY_MS", 500)) * time.Millisecond,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
