package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds all application configuration loaded from environment variables.
// Required fields are validated at startup so misconfiguration fails fast.
type Config struct {
	// Server configuration
	ServerAddr  string
	MetricsAddr string // worker only
	LogLevel    string

	// Solana configuration
	SolanaRPCURL  string
	SolanaNetwork string
	RPCTimeout    time.Duration

	// Optional collaborators. Empty disables them.
	DatabaseURL string
	NATSURL     string

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string
}

var (
	validNetworks  = []string{"mainnet", "devnet", "testnet"}
	validLogLevels = []string{"debug", "info", "warn", "error"}
)

// Load reads configuration from environment variables and validates it.
// All problems are reported together.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.MetricsAddr = getEnvOrDefault("METRICS_ADDR", ":9091")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.SolanaRPCURL = os.Getenv("SOLANA_RPC_URL")
	if cfg.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL is required"))
	}
	cfg.SolanaNetwork = getEnvOrDefault("SOLANA_NETWORK", "mainnet")

	timeout, err := parseDuration("RPC_TIMEOUT", "30s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RPCTimeout = timeout
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")

	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "rawtx-reconstruct")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks a configuration built without the environment.
func (c *Config) Validate() error {
	var errs []error

	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}
	if !contains(validNetworks, c.SolanaNetwork) {
		errs = append(errs, fmt.Errorf("SolanaNetwork must be one of %v, got %q", validNetworks, c.SolanaNetwork))
	}
	if !contains(validLogLevels, c.LogLevel) {
		errs = append(errs, fmt.Errorf("LogLevel must be one of %v, got %q", validLogLevels, c.LogLevel))
	}
	if c.RPCTimeout < 0 {
		errs = append(errs, fmt.Errorf("RPCTimeout cannot be negative"))
	}
	if c.TemporalHost == "" {
		errs = append(errs, fmt.Errorf("TemporalHost is required"))
	}
	if c.TemporalNamespace == "" {
		errs = append(errs, fmt.Errorf("TemporalNamespace is required"))
	}
	if c.TemporalTaskQueue == "" {
		errs = append(errs, fmt.Errorf("TemporalTaskQueue is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}
	return nil
}

// ArchiveEnabled reports whether reconstructions are stored in Postgres.
func (c *Config) ArchiveEnabled() bool {
	return c.DatabaseURL != ""
}

// PublishEnabled reports whether reconstructions are published to NATS.
func (c *Config) PublishEnabled() bool {
	return c.NATSURL != ""
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

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
