// Package config loads service configuration from a YAML file with
// environment-variable overrides. A .env file, if present, is loaded
// before overrides are read.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the full engine configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Market  MarketConfig  `yaml:"market"`
	Feed    FeedConfig    `yaml:"feed"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// MarketConfig controls market-making parameters.
type MarketConfig struct {
	Liquidity       float64 `yaml:"liquidity"`        // LMSR b parameter for new markets
	StartingBalance float64 `yaml:"starting_balance"` // tokens granted to new users
}

// FeedConfig controls the schedule feed poller.
type FeedConfig struct {
	BaseURL         string  `yaml:"base_url"`
	RefreshSeconds  int     `yaml:"refresh_seconds"`
	LookaheadDays   int     `yaml:"lookahead_days"`
	LookbehindDays  int     `yaml:"lookbehind_days"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
}

// StorageConfig controls persistence backends. Empty URLs fall back to
// the in-memory store.
type StorageConfig struct {
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`
	CacheTTLSec int    `yaml:"cache_ttl_seconds"`
}

// LogConfig controls the log level and format.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML config at path, then applies .env and environment
// overrides. A missing file is not an error; defaults and environment
// carry a zero config.
func Load(path string) (*Config, error) {
	// Load .env if present (missing file is fine).
	_ = godotenv.Load()

	var cfg Config
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML %q: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// RefreshInterval returns the feed polling interval as a time.Duration.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Feed.RefreshSeconds) * time.Second
}

// CacheTTL returns the Redis cache TTL as a time.Duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Storage.CacheTTLSec) * time.Second
}

// Liquidity returns the LMSR b parameter as a decimal.
func (c *Config) Liquidity() decimal.Decimal {
	return decimal.NewFromFloat(c.Market.Liquidity)
}

// StartingBalance returns the new-user token grant as a decimal.
func (c *Config) StartingBalance() decimal.Decimal {
	return decimal.NewFromFloat(c.Market.StartingBalance)
}

// applyEnvOverrides overwrites config values from the environment when set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Storage.RedisURL = v
	}
	if v := os.Getenv("FEED_BASE_URL"); v != "" {
		cfg.Feed.BaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// setDefaults fills in required values that are still unset.
func setDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Market.Liquidity <= 0 {
		cfg.Market.Liquidity = 100
	}
	if cfg.Market.StartingBalance <= 0 {
		cfg.Market.StartingBalance = 10000
	}
	if cfg.Feed.RefreshSeconds <= 0 {
		cfg.Feed.RefreshSeconds = 300
	}
	if cfg.Feed.LookaheadDays <= 0 {
		cfg.Feed.LookaheadDays = 7
	}
	if cfg.Feed.LookbehindDays <= 0 {
		cfg.Feed.LookbehindDays = 3
	}
	if cfg.Feed.RateLimitPerSec <= 0 {
		cfg.Feed.RateLimitPerSec = 2
	}
	if cfg.Storage.CacheTTLSec <= 0 {
		cfg.Storage.CacheTTLSec = 60
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}
