// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits with an error.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all runtime configuration for the portrait service.
type Config struct {
	Port                string
	DatabaseURL         string
	RedisURL            string
	GoogleAPIKey        string // optional — draft generation is disabled when empty
	GeminiModel         string
	DigestIntervalHours int // how often the open-feedback digest fires
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	port := os.Getenv("PORTRAIT_PORT")
	if port == "" {
		port = "8083"
	}

	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = "gemini-2.5-pro"
	}

	interval := 6
	if s := os.Getenv("DIGEST_INTERVAL_HOURS"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("DIGEST_INTERVAL_HOURS must be a positive integer, got %q", s)
		}
		interval = v
	}

	return &Config{
		Port:                port,
		DatabaseURL:         dbURL,
		RedisURL:            redisURL,
		GoogleAPIKey:        os.Getenv("GOOGLE_API_KEY"),
		GeminiModel:         model,
		DigestIntervalHours: interval,
	}, nil
}
