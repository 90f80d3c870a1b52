// Package config provides centralized configuration loaded from environment
// variables. Shared by the CLI and the progress API server.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Config struct — populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// Scraping target
	BaseURL string

	// Request pacing
	MinDelay time.Duration // floor between requests
	MaxDelay time.Duration // backoff ceiling
	Jitter   time.Duration // random extra delay per request

	// Fetching
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBase      time.Duration
	RotateEvery    int // successful fetches between identity rotations

	// Batch execution
	Workers          int
	ItemRetries      int
	FailureThreshold float64
	SkipExisting     bool

	// Progress API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string
}

// Load reads configuration from environment variables with sensible defaults.
// The defaults keep request pacing polite enough for a public stats site.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", envOr("PFR_DATABASE_URL", ""))
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL or PFR_DATABASE_URL must be set")
	}

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		BaseURL: envOr("PFR_BASE_URL", "https://www.pro-football-reference.com"),

		MinDelay: time.Duration(envInt("SCRAPE_MIN_DELAY_SECONDS", 5)) * time.Second,
		MaxDelay: time.Duration(envInt("SCRAPE_MAX_DELAY_SECONDS", 15)) * time.Second,
		Jitter:   time.Duration(envInt("SCRAPE_JITTER_SECONDS", 3)) * time.Second,

		RequestTimeout: time.Duration(envInt("REQUEST_TIMEOUT_SECONDS", 30)) * time.Second,
		MaxRetries:     envInt("MAX_RETRIES", 3),
		RetryBase:      time.Duration(envInt("RETRY_BASE_SECONDS", 2)) * time.Second,
		RotateEvery:    envInt("IDENTITY_ROTATE_EVERY", 15),

		Workers:          envInt("BATCH_WORKERS", 1),
		ItemRetries:      envInt("BATCH_ITEM_RETRIES", 1),
		FailureThreshold: envFloat("BATCH_FAILURE_THRESHOLD", 0.5),
		SkipExisting:     envBool("BATCH_SKIP_EXISTING", false),

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),
	}, nil
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

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

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
