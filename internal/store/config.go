package store

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	MarketSourceBinance = "binance"
	MarketSourceKite    = "kite"
)

type Config struct {
	PollSeconds      int     `yaml:"poll_seconds"`
	SnapshotLimit    int     `yaml:"snapshot_limit"`
	IncrementalLimit int     `yaml:"incremental_limit"`
	MatchTolerance   float64 `yaml:"match_tolerance"`

	Market struct {
		Source  string `yaml:"source"`
		Binance struct {
			BaseURL        string `yaml:"base_url"`
			TimeoutSeconds int    `yaml:"timeout_seconds"`
		} `yaml:"binance"`
		Kite struct {
			APIKeyEnv      string `yaml:"api_key_env"`
			AccessTokenEnv string `yaml:"access_token_env"`
			Exchange       string `yaml:"exchange"`
		} `yaml:"kite"`
	} `yaml:"market"`

	Backend struct {
		BaseURL        string `yaml:"base_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		MaxRetries     int    `yaml:"max_retries"`
	} `yaml:"backend"`

	Server struct {
		Listen string `yaml:"listen"`
	} `yaml:"server"`

	Export struct {
		Dir           string `yaml:"dir"`
		Journal       bool   `yaml:"journal"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"export"`
}

// Default returns a config with every default applied.
func Default() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

func (c *Config) applyDefaults() {
	if c.PollSeconds == 0 {
		c.PollSeconds = 60
	}
	if c.SnapshotLimit == 0 {
		c.SnapshotLimit = 100
	}
	if c.IncrementalLimit == 0 {
		c.IncrementalLimit = 2
	}
	if c.MatchTolerance == 0 {
		c.MatchTolerance = 1e-6
	}
	if c.Market.Source == "" {
		c.Market.Source = MarketSourceBinance
	}
	c.Market.Source = strings.ToLower(c.Market.Source)
	if c.Market.Binance.BaseURL == "" {
		c.Market.Binance.BaseURL = "https://api.binance.com"
	}
	if c.Market.Binance.TimeoutSeconds == 0 {
		c.Market.Binance.TimeoutSeconds = 10
	}
	if c.Market.Kite.APIKeyEnv == "" {
		c.Market.Kite.APIKeyEnv = "KITE_API_KEY"
	}
	if c.Market.Kite.AccessTokenEnv == "" {
		c.Market.Kite.AccessTokenEnv = "KITE_ACCESS_TOKEN"
	}
	if c.Market.Kite.Exchange == "" {
		c.Market.Kite.Exchange = "NSE"
	}
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = "http://127.0.0.1:5000"
	}
	if c.Backend.TimeoutSeconds == 0 {
		c.Backend.TimeoutSeconds = 10
	}
	if c.Backend.MaxRetries == 0 {
		c.Backend.MaxRetries = 2
	}
	if c.Server.Listen == "" {
		c.Server.Listen = ":8080"
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "exports"
	}
	if c.Export.RetentionDays == 0 {
		c.Export.RetentionDays = 7
	}
}

func (c *Config) Validate() error {
	if c.PollSeconds < 1 {
		return fmt.Errorf("poll_seconds must be positive, got %d", c.PollSeconds)
	}
	if c.SnapshotLimit < 1 || c.IncrementalLimit < 1 {
		return fmt.Errorf("snapshot_limit and incremental_limit must be positive, got %d/%d", c.SnapshotLimit, c.IncrementalLimit)
	}
	if c.IncrementalLimit > c.SnapshotLimit {
		return fmt.Errorf("incremental_limit (%d) cannot exceed snapshot_limit (%d)", c.IncrementalLimit, c.SnapshotLimit)
	}
	if c.MatchTolerance <= 0 {
		return fmt.Errorf("match_tolerance must be positive, got %g", c.MatchTolerance)
	}
	if c.Market.Source != MarketSourceBinance && c.Market.Source != MarketSourceKite {
		return fmt.Errorf("invalid market.source '%s': must be 'binance' or 'kite'", c.Market.Source)
	}
	if c.Backend.BaseURL == "" {
		return errors.New("backend.base_url cannot be empty")
	}
	if c.Export.RetentionDays < 0 {
		return fmt.Errorf("export.retention_days cannot be negative, got %d", c.Export.RetentionDays)
	}
	return nil
}

// PollInterval is the live refresh period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollSeconds) * time.Second
}

// Tolerance is the trade-to-bar price matching tolerance.
func (c *Config) Tolerance() decimal.Decimal {
	return decimal.NewFromFloat(c.MatchTolerance)
}

func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

func (c *Config) MarketTimeout() time.Duration {
	return time.Duration(c.Market.Binance.TimeoutSeconds) * time.Second
}

// LoadConfig reads a YAML config. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
