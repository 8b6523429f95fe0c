package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// APIConfig holds the settings for talking to the Mailgun REST API.
type APIConfig struct {
	// BaseURL is the API root, e.g. https://api.eu.mailgun.net for EU
	// region domains.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec bounds every single HTTP request.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`

	// MaxRetries applies to idempotent requests only.
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
}

// Timeout returns TimeoutSec as a duration.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// FeedConfig controls how much of the event log a run walks.
type FeedConfig struct {
	WindowDays int `mapstructure:"window_days" yaml:"window_days"`
	PageSize   int `mapstructure:"page_size" yaml:"page_size"`
}

// Window returns the look-back window as a duration.
func (c FeedConfig) Window() time.Duration {
	return time.Duration(c.WindowDays) * 24 * time.Hour
}

// LogConfig holds operator log preferences.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Redact bool   `mapstructure:"redact" yaml:"redact"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API  APIConfig  `mapstructure:"api" yaml:"api"`
	Feed FeedConfig `mapstructure:"feed" yaml:"feed"`
	Log  LogConfig  `mapstructure:"log" yaml:"log"`

	// LedgerPath enables the processed-event ledger when non-empty.
	LedgerPath string `mapstructure:"ledger_path" yaml:"ledger_path"`
}

// ConfigDir returns ~/.config/mg2dsn.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "mg2dsn")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mg2dsn/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			BaseURL:    "https://api.mailgun.net",
			TimeoutSec: 30,
			MaxRetries: 3,
		},
		Feed: FeedConfig{
			WindowDays: 30,
			PageSize:   100,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("api.base_url", "https://api.mailgun.net")
	v.SetDefault("api.timeout_sec", 30)
	v.SetDefault("api.max_retries", 3)
	v.SetDefault("feed.window_days", 30)
	v.SetDefault("feed.page_size", 100)
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// Guard against explicit zeroes that would stall or flood a run.
	if cfg.Feed.PageSize <= 0 || cfg.Feed.PageSize > 300 {
		cfg.Feed.PageSize = 100
	}
	if cfg.Feed.WindowDays <= 0 {
		cfg.Feed.WindowDays = 30
	}
	if cfg.API.TimeoutSec <= 0 {
		cfg.API.TimeoutSec = 30
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", map[string]any{
		"base_url":    cfg.API.BaseURL,
		"timeout_sec": cfg.API.TimeoutSec,
		"max_retries": cfg.API.MaxRetries,
	})
	v.Set("feed", map[string]any{
		"window_days": cfg.Feed.WindowDays,
		"page_size":   cfg.Feed.PageSize,
	})
	v.Set("log", map[string]any{
		"level":  cfg.Log.Level,
		"redact": cfg.Log.Redact,
	})
	v.Set("ledger_path", cfg.LedgerPath)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
