package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Logging
	LogLevel string

	// Solana configuration
	RPCURLs      []string // ordered failover candidates
	TokenAddress string

	// Dataset configuration
	DataDir string

	// Sync configuration
	LookbackDays  int
	PageLimit     int
	DetailWorkers int
	PageDelay     time.Duration

	// RPC retry configuration
	MaxRetries     int
	BaseRetryDelay time.Duration
	RPCTimeout     time.Duration

	// Optional integrations
	NATSURL     string // empty disables publishing
	MetricsAddr string // empty disables the metrics endpoint
}

// Load reads configuration from environment variables and validates all
// required fields. Returns an error if any required configuration is
// missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Solana configuration
	rawURLs := os.Getenv("SOLANA_RPC_URLS")
	if rawURLs == "" {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URLS is required"))
	} else {
		for _, u := range strings.Split(rawURLs, ",") {
			if u = strings.TrimSpace(u); u != "" {
				cfg.RPCURLs = append(cfg.RPCURLs, u)
			}
		}
		if len(cfg.RPCURLs) == 0 {
			errs = append(errs, fmt.Errorf("SOLANA_RPC_URLS must contain at least one endpoint"))
		}
	}

	cfg.TokenAddress = os.Getenv("TOKEN_ADDRESS")
	if cfg.TokenAddress == "" {
		errs = append(errs, fmt.Errorf("TOKEN_ADDRESS is required"))
	}

	// Dataset configuration
	cfg.DataDir = getEnvOrDefault("DATA_DIR", "./data")

	// Sync configuration
	var err error
	if cfg.LookbackDays, err = parseInt("LOOKBACK_DAYS", 30); err != nil {
		errs = append(errs, err)
	}
	if cfg.PageLimit, err = parseInt("PAGE_LIMIT", 50); err != nil {
		errs = append(errs, err)
	}
	if cfg.DetailWorkers, err = parseInt("DETAIL_WORKERS", 4); err != nil {
		errs = append(errs, err)
	}
	if cfg.PageDelay, err = parseDuration("PAGE_DELAY", "300ms"); err != nil {
		errs = append(errs, err)
	}

	// RPC retry configuration
	if cfg.MaxRetries, err = parseInt("MAX_RETRIES", 3); err != nil {
		errs = append(errs, err)
	}
	if cfg.BaseRetryDelay, err = parseDuration("BASE_RETRY_DELAY", "2s"); err != nil {
		errs = append(errs, err)
	}
	if cfg.RPCTimeout, err = parseDuration("RPC_TIMEOUT", "30s"); err != nil {
		errs = append(errs, err)
	}

	// Optional integrations
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for process initialization where misconfiguration should halt startup.
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

	if len(c.RPCURLs) == 0 {
		errs = append(errs, fmt.Errorf("at least one RPC endpoint is required"))
	}
	if c.TokenAddress == "" {
		errs = append(errs, fmt.Errorf("TokenAddress is required"))
	}
	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("DataDir is required"))
	}
	if c.LookbackDays < 1 {
		errs = append(errs, fmt.Errorf("LookbackDays must be at least 1"))
	}
	if c.PageLimit < 1 || c.PageLimit > 1000 {
		errs = append(errs, fmt.Errorf("PageLimit must be between 1 and 1000"))
	}
	if c.DetailWorkers < 1 {
		errs = append(errs, fmt.Errorf("DetailWorkers must be at least 1"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("MaxRetries cannot be negative"))
	}
	if c.BaseRetryDelay < 0 {
		errs = append(errs, fmt.Errorf("BaseRetryDelay cannot be negative"))
	}
	if c.RPCTimeout < time.Second {
		errs = append(errs, fmt.Errorf("RPCTimeout must be at least 1 second"))
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
