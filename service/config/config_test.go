package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ValidConfig(t *testing.T) {
	cleanupEnv()
	os.Setenv("TRONSCAN_API_KEY", "test-key")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "test-key", cfg.TronScanAPIKey)
	assert.Equal(t, "https://apilist.tronscan.org", cfg.TronScanAPIURL) // Default
	assert.Equal(t, ":8080", cfg.ServerAddr)                            // Default
	assert.Equal(t, "info", cfg.LogLevel)                               // Default
	assert.Equal(t, 23*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 3, cfg.FetchMaxAttempts)
	assert.Equal(t, time.Second, cfg.FetchRetryDelay)
	assert.Equal(t, 100, cfg.FetchPageLimit)
	assert.Equal(t, 3, cfg.SearchMaxDepth)
	assert.Equal(t, 1, cfg.SearchWorkers)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.NATSURL)
}

func TestLoad_MissingAPIKey(t *testing.T) {
	cleanupEnv()
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "TRONSCAN_API_KEY is required")
}

func TestLoad_InvalidTimeout(t *testing.T) {
	cleanupEnv()
	os.Setenv("TRONSCAN_API_KEY", "test-key")
	os.Setenv("HTTP_TIMEOUT", "invalid")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoad_InvalidInteger(t *testing.T) {
	cleanupEnv()
	os.Setenv("TRONSCAN_API_KEY", "test-key")
	os.Setenv("SEARCH_MAX_DEPTH", "three")
	defer cleanupEnv()

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "SEARCH_MAX_DEPTH: invalid integer")
}

func TestLoad_ReportsAllErrors(t *testing.T) {
	cleanupEnv()
	os.Setenv("HTTP_TIMEOUT", "soon")
	defer cleanupEnv()

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRONSCAN_API_KEY is required")
	assert.Contains(t, err.Error(), "HTTP_TIMEOUT")
}

func TestLoad_CustomValues(t *testing.T) {
	cleanupEnv()
	os.Setenv("TRONSCAN_API_KEY", "secret-key")
	os.Setenv("TRONSCAN_API_URL", "https://tronscan.example.com")
	os.Setenv("HTTP_TIMEOUT", "5s")
	os.Setenv("FETCH_MAX_ATTEMPTS", "5")
	os.Setenv("FETCH_RETRY_DELAY", "250ms")
	os.Setenv("FETCH_PAGE_LIMIT", "50")
	os.Setenv("SEARCH_MAX_DEPTH", "4")
	os.Setenv("SEARCH_WORKERS", "3")
	os.Setenv("SERVER_ADDR", ":9090")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("DATABASE_URL", "postgres://localhost/test")
	os.Setenv("NATS_URL", "nats://nats.example.com:4222")
	defer cleanupEnv()

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "secret-key", cfg.TronScanAPIKey)
	assert.Equal(t, "https://tronscan.example.com", cfg.TronScanAPIURL)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 5, cfg.FetchMaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.FetchRetryDelay)
	assert.Equal(t, 50, cfg.FetchPageLimit)
	assert.Equal(t, 4, cfg.SearchMaxDepth)
	assert.Equal(t, 3, cfg.SearchWorkers)
	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
	assert.Equal(t, "nats://nats.example.com:4222", cfg.NATSURL)
}

func validConfig() *Config {
	return &Config{
		TronScanAPIURL:   "https://apilist.tronscan.org",
		TronScanAPIKey:   "key",
		HTTPTimeout:      23 * time.Second,
		FetchMaxAttempts: 3,
		FetchRetryDelay:  time.Second,
		FetchPageLimit:   100,
		SearchMaxDepth:   3,
		SearchWorkers:    1,
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	err := validConfig().Validate()
	assert.NoError(t, err)
}

func TestValidate_ZeroRetryDelayAllowed(t *testing.T) {
	cfg := validConfig()
	cfg.FetchRetryDelay = 0

	assert.NoError(t, cfg.Validate())
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"missing api key", func(c *Config) { c.TronScanAPIKey = "" }, "TronScanAPIKey is required"},
		{"missing api url", func(c *Config) { c.TronScanAPIURL = "" }, "TronScanAPIURL is required"},
		{"short timeout", func(c *Config) { c.HTTPTimeout = 500 * time.Millisecond }, "must be at least 1 second"},
		{"zero attempts", func(c *Config) { c.FetchMaxAttempts = 0 }, "FetchMaxAttempts must be at least 1"},
		{"negative delay", func(c *Config) { c.FetchRetryDelay = -time.Second }, "FetchRetryDelay cannot be negative"},
		{"page limit too large", func(c *Config) { c.FetchPageLimit = 500 }, "FetchPageLimit must be between"},
		{"depth too large", func(c *Config) { c.SearchMaxDepth = 7 }, "SearchMaxDepth must be between 1 and 6"},
		{"zero workers", func(c *Config) { c.SearchWorkers = 0 }, "SearchWorkers must be between 1 and 8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestMustLoad_Panics(t *testing.T) {
	// Don't set required env vars
	cleanupEnv()
	defer cleanupEnv()

	assert.Panics(t, func() {
		MustLoad()
	})
}

func TestMustLoad_Success(t *testing.T) {
	cleanupEnv()
	os.Setenv("TRONSCAN_API_KEY", "test-key")
	defer cleanupEnv()

	assert.NotPanics(t, func() {
		cfg := MustLoad()
		assert.NotNil(t, cfg)
	})
}

// cleanupEnv clears all environment variables used in tests
func cleanupEnv() {
	for _, key := range []string{
		"TRONSCAN_API_URL",
		"TRONSCAN_API_KEY",
		"HTTP_TIMEOUT",
		"FETCH_MAX_ATTEMPTS",
		"FETCH_RETRY_DELAY",
		"FETCH_PAGE_LIMIT",
		"SEARCH_MAX_DEPTH",
		"SEARCH_WORKERS",
		"SERVER_ADDR",
		"LOG_LEVEL",
		"DATABASE_URL",
		"NATS_URL",
	} {
		os.Unsetenv(key)
	}
}
