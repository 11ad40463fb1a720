package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackzampolin/biograph/internal/postgres"
)

// Config holds biograph configuration.
// Stored at: ~/.biograph/config.yaml
type Config struct {
	Provider ProviderCfg `mapstructure:"provider" yaml:"provider"`
	Quota    QuotaCfg    `mapstructure:"quota" yaml:"quota"`
	Database DatabaseCfg `mapstructure:"database" yaml:"database"`
	Batch    BatchCfg    `mapstructure:"batch" yaml:"batch"`
}

// ProviderCfg configures the remote generation service.
type ProviderCfg struct {
	APIKey         string `mapstructure:"api_key" yaml:"api_key"`               // API key (supports ${ENV_VAR} syntax)
	PromptID       string `mapstructure:"prompt_id" yaml:"prompt_id"`           // Stored prompt identifier
	PromptVersion  string `mapstructure:"prompt_version" yaml:"prompt_version"` // Optional pinned prompt version
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// QuotaCfg configures the quota monitor.
type QuotaCfg struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled"`
	DailyLimit int64   `mapstructure:"daily_limit" yaml:"daily_limit"` // 0 relies on response headers alone
	Threshold  float64 `mapstructure:"threshold" yaml:"threshold"`     // Pause above this usage fraction (0-1]
	StatePath  string  `mapstructure:"state_path" yaml:"state_path"`   // Empty uses the home default
}

// DatabaseCfg configures the destination Postgres.
type DatabaseCfg struct {
	URL      string `mapstructure:"url" yaml:"url"` // Takes precedence over discrete fields
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password"` // Supports ${ENV_VAR} syntax
	DBName   string `mapstructure:"dbname" yaml:"dbname"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
	Overflow int    `mapstructure:"overflow" yaml:"overflow"` // Pool connections beyond one per worker
}

// BatchCfg configures an orchestrator run.
type BatchCfg struct {
	Workers     int    `mapstructure:"workers" yaml:"workers"`
	Output      string `mapstructure:"output" yaml:"output"`             // Result log path; empty uses the home default
	MetricsAddr string `mapstructure:"metrics_addr" yaml:"metrics_addr"` // Prometheus listen address; empty disables
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderCfg{
			APIKey:         "${OPENAI_API_KEY}",
			TimeoutSeconds: 60,
		},
		Quota: QuotaCfg{
			Enabled:   true,
			Threshold: 0.8,
		},
		Database: DatabaseCfg{
			Host:     "localhost",
			Port:     5432,
			User:     "biograph",
			Password: "biograph", // matches the local db container default
			DBName:   "biograph",
			SSLMode:  "disable",
			Overflow: 2,
		},
		Batch: BatchCfg{
			Workers: 4,
		},
	}
}

// Validate checks structural soundness. It does not require run-only
// fields like the prompt ID; see ProviderCfg.Validate.
func (c *Config) Validate() error {
	if c.Batch.Workers < 1 {
		return fmt.Errorf("batch.workers must be at least 1, got %d", c.Batch.Workers)
	}
	if c.Provider.TimeoutSeconds < 1 {
		return fmt.Errorf("provider.timeout_seconds must be at least 1, got %d", c.Provider.TimeoutSeconds)
	}
	if c.Quota.Threshold <= 0 || c.Quota.Threshold > 1 {
		return fmt.Errorf("quota.threshold must be in (0, 1], got %g", c.Quota.Threshold)
	}
	if c.Quota.DailyLimit < 0 {
		return fmt.Errorf("quota.daily_limit must not be negative, got %d", c.Quota.DailyLimit)
	}
	if c.Database.Port < 0 || c.Database.Port > 65535 {
		return fmt.Errorf("database.port out of range: %d", c.Database.Port)
	}
	if c.Database.Overflow < 0 {
		return fmt.Errorf("database.overflow must not be negative, got %d", c.Database.Overflow)
	}
	return nil
}

// Validate checks the fields a run cannot start without.
func (p ProviderCfg) Validate() error {
	if p.PromptID == "" {
		return errors.New("provider.prompt_id is required")
	}
	if p.ResolvedAPIKey() == "" {
		return errors.New("provider.api_key resolves to empty; set OPENAI_API_KEY or configure a literal key")
	}
	return nil
}

// ResolvedAPIKey expands any ${ENV_VAR} reference in the API key.
func (p ProviderCfg) ResolvedAPIKey() string {
	return ResolveEnvVars(p.APIKey)
}

// Timeout returns the per-request deadline.
func (p ProviderCfg) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// PoolConfig converts the database section into a postgres pool config
// sized for the given worker count. The password's ${ENV_VAR} reference
// is resolved here so it never round-trips through the config file.
func (c *Config) PoolConfig(workers int, logger *slog.Logger) postgres.Config {
	return postgres.Config{
		URL:      ResolveEnvVars(c.Database.URL),
		Host:     c.Database.Host,
		Port:     c.Database.Port,
		User:     c.Database.User,
		Password: ResolveEnvVars(c.Database.Password),
		Database: c.Database.DBName,
		SSLMode:  c.Database.SSLMode,
		Workers:  workers,
		Overflow: c.Database.Overflow,
		Logger:   logger,
	}
}
