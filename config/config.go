// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/entitled/domain/feature"
	"github.com/artpar/entitled/domain/tier"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig      `yaml:"server"`
	Database DatabaseConfig    `yaml:"database"`
	Admin    AdminConfig       `yaml:"admin"`
	Tiers    []TierConfig      `yaml:"tiers"`
	Features map[string]string `yaml:"features"` // feature key -> required tier
	Logging  LoggingConfig     `yaml:"logging"`
	Metrics  MetricsConfig     `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig configures the override store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite", "redis", or "memory"
	DSN    string `yaml:"dsn"`    // file path for sqlite, redis URL for redis
}

// AdminConfig configures the admin API.
// TokenHash is a bcrypt hash of the bearer token; an empty hash
// disables the admin endpoints entirely.
type AdminConfig struct {
	TokenHash string `yaml:"token_hash"`
}

// TierConfig overrides display data for one tier of the closed set.
// Rank ordering is fixed in code and cannot be configured.
type TierConfig struct {
	ID           string   `yaml:"id"`
	PriceMonthly int64    `yaml:"price_monthly"` // cents
	Features     []string `yaml:"features,omitempty"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	data = expandEnvRefs(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

var envRefPattern = regexp.MustCompile(`\$\{[A-Za-z_][A-Za-z0-9_]*\}`)

// expandEnvRefs substitutes ${VAR}-form references with environment
// values. Only the braced form is expanded; bare $ runes stay literal,
// since admin.token_hash holds a bcrypt hash full of them.
func expandEnvRefs(data []byte) []byte {
	return envRefPattern.ReplaceAllFunc(data, func(m []byte) []byte {
		return []byte(os.Getenv(string(m[2 : len(m)-1])))
	})
}

// LoadFromEnv creates configuration entirely from environment variables.
// Useful for Docker deployments where no config file is needed.
//
// Environment variables:
//
//	ENTITLED_SERVER_HOST       - Server host (default: 0.0.0.0)
//	ENTITLED_SERVER_PORT       - Server port (default: 8080)
//	ENTITLED_DATABASE_DRIVER   - Store backend: sqlite, redis, memory (default: sqlite)
//	ENTITLED_DATABASE_DSN      - Store DSN (default: entitled.db)
//	ENTITLED_ADMIN_TOKEN_HASH  - bcrypt hash of the admin bearer token
//	ENTITLED_LOG_LEVEL         - Log level: debug, info, warn, error (default: info)
//	ENTITLED_LOG_FORMAT        - Log format: json or console (default: json)
//	ENTITLED_METRICS_ENABLED   - Enable /metrics endpoint (default: true)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment
// variables when the file is absent.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// Catalog builds the tier catalog from the configured overrides.
func (c *Config) Catalog() (tier.Catalog, error) {
	if len(c.Tiers) == 0 {
		return tier.Default(), nil
	}
	overrides := make(map[tier.Tier]tier.Info, len(c.Tiers))
	for _, tc := range c.Tiers {
		t, err := tier.ParseTier(tc.ID)
		if err != nil {
			return tier.Catalog{}, fmt.Errorf("tiers: %w", err)
		}
		overrides[t] = tier.Info{
			PriceMonthly: tc.PriceMonthly,
			Features:     tc.Features,
		}
	}
	return tier.NewCatalog(overrides)
}

// FeatureTable builds the feature requirement table from configuration.
func (c *Config) FeatureTable() (feature.Table, error) {
	reqs := make(map[string]tier.Tier, len(c.Features))
	for key, raw := range c.Features {
		t, err := tier.ParseTier(raw)
		if err != nil {
			return feature.Table{}, fmt.Errorf("features[%s]: %w", key, err)
		}
		reqs[key] = t
	}
	return feature.NewTable(reqs), nil
}

// applyEnvOverrides applies ENTITLED_* environment variables.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ENTITLED_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("ENTITLED_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ENTITLED_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("ENTITLED_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	if v := os.Getenv("ENTITLED_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("ENTITLED_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}

	if v := os.Getenv("ENTITLED_ADMIN_TOKEN_HASH"); v != "" {
		cfg.Admin.TokenHash = v
	}

	if v := os.Getenv("ENTITLED_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ENTITLED_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("ENTITLED_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("ENTITLED_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "entitled.db"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func validate(cfg *Config) error {
	validDrivers := map[string]bool{"sqlite": true, "redis": true, "memory": true}
	if !validDrivers[cfg.Database.Driver] {
		return fmt.Errorf("database.driver must be 'sqlite', 'redis', or 'memory', got %q", cfg.Database.Driver)
	}
	if cfg.Database.Driver == "redis" && cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required when database.driver is 'redis'")
	}

	seen := map[string]bool{}
	for i, tc := range cfg.Tiers {
		if tc.ID == "" {
			return fmt.Errorf("tiers[%d].id is required", i)
		}
		if !tier.Valid(tier.Tier(tc.ID)) {
			return fmt.Errorf("tiers[%d].id %q is not a known tier", i, tc.ID)
		}
		if seen[tc.ID] {
			return fmt.Errorf("tiers[%d].id %q appears twice", i, tc.ID)
		}
		seen[tc.ID] = true
		if tc.PriceMonthly < 0 {
			return fmt.Errorf("tiers[%d].price_monthly must not be negative", i)
		}
	}

	for key, raw := range cfg.Features {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("features: empty feature key")
		}
		if !tier.Valid(tier.Tier(raw)) {
			return fmt.Errorf("features[%s]: %q is not a known tier", key, raw)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}

	return nil
}
