package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultExchanges is the set enabled when EXCHANGES_ENABLED is not set.
const DefaultExchanges = "binance,bigone,bybit,gate,hyperliquid,mexc,pancakeswap"

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Exchanges
	ExchangesEnabled            []string
	ExchangesSandbox            bool
	ExchangeHTTPTimeout         time.Duration
	MarketsPreloadInterval      time.Duration
	LogExchangePermissionErrors bool

	// PancakeSwap subgraph and BSC RPC
	PancakeswapSubgraphURL    string
	PancakeswapSubgraphAPIKey string
	BSCRPCURL                 string

	// Credential encryption
	EncryptionSecret string
	EncryptionSalt   string

	// Campaigns
	ManifestCacheTTL time.Duration

	// Storage
	StorageMode  string // "postgres" or "memory"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Exchange defaults
		ExchangesEnabled:            getListOrDefault("EXCHANGES_ENABLED", DefaultExchanges),
		ExchangesSandbox:            getBoolOrDefault("EXCHANGES_SANDBOX", false),
		ExchangeHTTPTimeout:         getDurationOrDefault("EXCHANGE_HTTP_TIMEOUT", 30*time.Second),
		MarketsPreloadInterval:      getDurationOrDefault("MARKETS_PRELOAD_INTERVAL", 25*time.Minute),
		LogExchangePermissionErrors: getBoolOrDefault("LOG_EXCHANGE_PERMISSION_ERRORS", false),

		PancakeswapSubgraphURL: getEnvOrDefault("PANCAKESWAP_SUBGRAPH_URL",
			"https://gateway.thegraph.com/api/subgraphs/id/A1fvJWQLBeUAggX2WQTMm3FKjXTekNXo77ZySun4YN2m"),
		PancakeswapSubgraphAPIKey: os.Getenv("PANCAKESWAP_SUBGRAPH_API_KEY"),
		BSCRPCURL:                 os.Getenv("BSC_RPC_URL"),

		EncryptionSecret: os.Getenv("ENCRYPTION_SECRET"),
		EncryptionSalt:   getEnvOrDefault("ENCRYPTION_SALT", "mm-oracle-api-keys"),

		ManifestCacheTTL: getDurationOrDefault("MANIFEST_CACHE_TTL", 1*time.Hour),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "memory"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "oracle"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "oracle"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "mm_oracle"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if len(c.ExchangesEnabled) == 0 {
		return fmt.Errorf("EXCHANGES_ENABLED cannot be empty")
	}

	if c.ExchangeHTTPTimeout <= 0 {
		return fmt.Errorf("EXCHANGE_HTTP_TIMEOUT must be positive, got %s", c.ExchangeHTTPTimeout)
	}

	if c.MarketsPreloadInterval < time.Minute {
		return fmt.Errorf("MARKETS_PRELOAD_INTERVAL must be at least 1m, got %s", c.MarketsPreloadInterval)
	}

	if c.StorageMode != "memory" && c.StorageMode != "postgres" {
		return fmt.Errorf("STORAGE_MODE must be 'memory' or 'postgres', got %q", c.StorageMode)
	}

	if c.EncryptionSecret != "" && len(c.EncryptionSecret) < 16 {
		return fmt.Errorf("ENCRYPTION_SECRET must be at least 16 characters")
	}

	return nil
}

// ExchangeEnabled reports whether name is in the enabled exchange set.
func (c *Config) ExchangeEnabled(name string) bool {
	for _, enabled := range c.ExchangesEnabled {
		if enabled == name {
			return true
		}
	}
	return false
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}

// getListOrDefault parses a comma separated list, lower-casing and trimming entries.
func getListOrDefault(key string, defaultValue string) []string {
	raw := getEnvOrDefault(key, defaultValue)

	var list []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			list = append(list, item)
		}
	}
	return list
}
