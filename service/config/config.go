package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// TronScan configuration
	TronScanAPIURL string
	TronScanAPIKey string
	HTTPTimeout    time.Duration

	// Fetch configuration
	FetchMaxAttempts int
	FetchRetryDelay  time.Duration
	FetchPageLimit   int

	// Search defaults
	SearchMaxDepth int
	SearchWorkers  int

	// Optional integrations, disabled when empty
	DatabaseURL string
	NATSURL     string
}

const (
	maxSearchDepth   = 6
	maxSearchWorkers = 8
)

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// TronScan configuration
	cfg.TronScanAPIURL = getEnvOrDefault("TRONSCAN_API_URL", "https://apilist.tronscan.org")
	cfg.TronScanAPIKey = os.Getenv("TRONSCAN_API_KEY")
	if cfg.TronScanAPIKey == "" {
		errs = append(errs, fmt.Errorf("TRONSCAN_API_KEY is required"))
	}

	timeout, err := parseDuration("HTTP_TIMEOUT", "23s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.HTTPTimeout = timeout
	}

	// Fetch configuration
	if cfg.FetchMaxAttempts, err = parseInt("FETCH_MAX_ATTEMPTS", 3); err != nil {
		errs = append(errs, err)
	}
	retryDelay, err := parseDuration("FETCH_RETRY_DELAY", "1s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.FetchRetryDelay = retryDelay
	}
	if cfg.FetchPageLimit, err = parseInt("FETCH_PAGE_LIMIT", 100); err != nil {
		errs = append(errs, err)
	}

	// Search defaults
	if cfg.SearchMaxDepth, err = parseInt("SEARCH_MAX_DEPTH", 3); err != nil {
		errs = append(errs, err)
	}
	if cfg.SearchWorkers, err = parseInt("SEARCH_WORKERS", 1); err != nil {
		errs = append(errs, err)
	}

	// Optional integrations
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")

	// Return all parse errors before range checks, which would only repeat them
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.TronScanAPIURL == "" {
		errs = append(errs, fmt.Errorf("TronScanAPIURL is required"))
	}

	if c.TronScanAPIKey == "" {
		errs = append(errs, fmt.Errorf("TronScanAPIKey is required"))
	}

	if c.HTTPTimeout < time.Second {
		errs = append(errs, fmt.Errorf("HTTPTimeout must be at least 1 second"))
	}

	if c.FetchMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("FetchMaxAttempts must be at least 1"))
	}

	if c.FetchRetryDelay < 0 {
		errs = append(errs, fmt.Errorf("FetchRetryDelay cannot be negative"))
	}

	if c.FetchPageLimit < 1 || c.FetchPageLimit > 200 {
		errs = append(errs, fmt.Errorf("FetchPageLimit must be between 1 and 200"))
	}

	if c.SearchMaxDepth < 1 || c.SearchMaxDepth > maxSearchDepth {
		errs = append(errs, fmt.Errorf("SearchMaxDepth must be between 1 and %d", maxSearchDepth))
	}

	if c.SearchWorkers < 1 || c.SearchWorkers > maxSearchWorkers {
		errs = append(errs, fmt.Errorf("SearchWorkers must be between 1 and %d", maxSearchWorkers))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}
