// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/applytrack/internal/address"
	"github.com/jonathan/applytrack/internal/match"
)

// Config represents the CLI configuration that can be loaded from a JSON
// file. All fields are optional; missing values use defaults or must be
// provided via CLI flags or environment variables.
type Config struct {
	// Mailbox
	IMAPHost     string   `json:"imap_host,omitempty"`
	IMAPUser     string   `json:"imap_user,omitempty"`
	IMAPPassword string   `json:"imap_password,omitempty"`
	IMAPFolder   string   `json:"imap_folder,omitempty"`
	SearchTerms  []string `json:"search_terms,omitempty"`
	// SinceDate bounds the mailbox search, format 2006-01-02.
	SinceDate string `json:"since_date,omitempty" validate:"omitempty,datetime=2006-01-02"`

	// Services
	APIKey      string `json:"api_key,omitempty"`
	DatabaseURL string `json:"database_url,omitempty"`

	// Output
	OutputPath string `json:"output_path,omitempty"`

	// Policy knobs for matching and register acceptance. Thresholds are
	// deliberately configuration, not constants: matching quality is
	// domain-sensitive and needs empirical tuning.
	Matching  match.Config        `json:"matching,omitempty"`
	Addresses address.ChainConfig `json:"addresses,omitempty"`

	// Behavior
	Parallelism int  `json:"parallelism,omitempty" validate:"gte=0"`
	Interactive bool `json:"interactive,omitempty"`
	Verbose     bool `json:"verbose,omitempty"`
}

// LoadConfig loads configuration from a JSON file.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration values. Required fields are not checked
// here; the commands validate those after merging flags and environment.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if c.Matching.LowThreshold > c.Matching.HighThreshold {
		return fmt.Errorf("config error: matching.low_threshold must not exceed matching.high_threshold")
	}
	return nil
}

// Since parses the configured start date. A zero value means no bound.
func (c *Config) Since() (time.Time, error) {
	if c.SinceDate == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", c.SinceDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("config error: invalid since_date: %w", err)
	}
	return t, nil
}

// MergeWithDefaults returns a new Config with unset fields filled from
// defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c
	if result.IMAPFolder == "" {
		result.IMAPFolder = defaults.IMAPFolder
	}
	if len(result.SearchTerms) == 0 {
		result.SearchTerms = defaults.SearchTerms
	}
	if result.SinceDate == "" {
		result.SinceDate = defaults.SinceDate
	}
	if result.OutputPath == "" {
		result.OutputPath = defaults.OutputPath
	}
	if result.Parallelism == 0 {
		result.Parallelism = defaults.Parallelism
	}
	return result
}
