package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Setup errors returned by Validate.
var (
	ErrMissingFolder      = errors.New("config: folder_id is required")
	ErrMissingCredentials = errors.New("config: api_key or service_account_json is required")
)

// Config defines configuration for the drivefetch CLI.
type Config struct {
	FolderID           string        `yaml:"folder_id"`
	Destination        string        `yaml:"destination"`
	APIKey             string        `yaml:"api_key"`
	ServiceAccountJSON string        `yaml:"service_account_json"`
	BaseURL            string        `yaml:"base_url"`
	Workers            int           `yaml:"workers"`
	PageSize           int           `yaml:"page_size"`
	Delay              time.Duration `yaml:"delay"`
	MaxDepth           int           `yaml:"max_depth"`
	AllowedTypes       []string      `yaml:"allowed_types"`
	TypesFile          string        `yaml:"types_file"`
	Sample             int           `yaml:"sample"`
	Seed               uint64        `yaml:"seed"`
	Progress           bool          `yaml:"progress"`
	Log                LogConfig     `yaml:"log"`
	Retry              RetryConfig   `yaml:"retry"`
}

// LogConfig defines logger output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// RetryConfig defines HTTP retry behavior for transient failures.
type RetryConfig struct {
	Attempts   int           `yaml:"attempts"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Destination:  "gdrive_downloads",
		Workers:      10,
		PageSize:     1000,
		Delay:        100 * time.Millisecond,
		AllowedTypes: []string{"text/plain"},
		Seed:         42,
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Retry: RetryConfig{
			Attempts:   5,
			Backoff:    time.Second,
			MaxBackoff: 30 * time.Second,
		},
	}
}

// TypesPath is where the distinct type list of the configured folder is
// written.
func (c Config) TypesPath() string {
	if c.TypesFile != "" {
		return c.TypesFile
	}
	return fmt.Sprintf("distinct_file_types_%s.txt", c.FolderID)
}

// yamlConfig is used for YAML unmarshaling with string durations.
type yamlConfig struct {
	FolderID           string          `yaml:"folder_id,omitempty"`
	Destination        string          `yaml:"destination,omitempty"`
	APIKey             string          `yaml:"api_key,omitempty"`
	ServiceAccountJSON string          `yaml:"service_account_json,omitempty"`
	BaseURL            string          `yaml:"base_url,omitempty"`
	Workers            int             `yaml:"workers,omitempty"`
	PageSize           int             `yaml:"page_size,omitempty"`
	Delay              string          `yaml:"delay,omitempty"`
	MaxDepth           int             `yaml:"max_depth,omitempty"`
	AllowedTypes       []string        `yaml:"allowed_types,omitempty"`
	TypesFile          string          `yaml:"types_file,omitempty"`
	Sample             int             `yaml:"sample,omitempty"`
	Seed               uint64          `yaml:"seed,omitempty"`
	Progress           bool            `yaml:"progress,omitempty"`
	Log                LogConfig       `yaml:"log,omitempty"`
	Retry              yamlRetryConfig `yaml:"retry,omitempty"`
}

type yamlRetryConfig struct {
	Attempts   int    `yaml:"attempts,omitempty"`
	Backoff    string `yaml:"backoff,omitempty"`
	MaxBackoff string `yaml:"max_backoff,omitempty"`
}

// LoadFromFile loads configuration from a YAML file on top of Default.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	override := Config{
		FolderID:           yc.FolderID,
		Destination:        yc.Destination,
		APIKey:             yc.APIKey,
		ServiceAccountJSON: yc.ServiceAccountJSON,
		BaseURL:            yc.BaseURL,
		Workers:            yc.Workers,
		PageSize:           yc.PageSize,
		MaxDepth:           yc.MaxDepth,
		AllowedTypes:       yc.AllowedTypes,
		TypesFile:          yc.TypesFile,
		Sample:             yc.Sample,
		Seed:               yc.Seed,
		Progress:           yc.Progress,
		Log:                yc.Log,
		Retry:              RetryConfig{Attempts: yc.Retry.Attempts},
	}
	if yc.Delay != "" {
		d, err := time.ParseDuration(yc.Delay)
		if err != nil {
			return Config{}, fmt.Errorf("parse delay: %w", err)
		}
		override.Delay = d
	}
	if yc.Retry.Backoff != "" {
		d, err := time.ParseDuration(yc.Retry.Backoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.backoff: %w", err)
		}
		override.Retry.Backoff = d
	}
	if yc.Retry.MaxBackoff != "" {
		d, err := time.ParseDuration(yc.Retry.MaxBackoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.max_backoff: %w", err)
		}
		override.Retry.MaxBackoff = d
	}

	cfg := Default().Merge(override)
	if yc.Delay != "" {
		// an explicit zero disables the pause
		cfg.Delay = override.Delay
	}
	return cfg, nil
}

// SaveFile writes c as YAML. Credentials are never written.
func (c Config) SaveFile(path string) error {
	yc := yamlConfig{
		FolderID:     c.FolderID,
		Destination:  c.Destination,
		BaseURL:      c.BaseURL,
		Workers:      c.Workers,
		PageSize:     c.PageSize,
		Delay:        c.Delay.String(),
		MaxDepth:     c.MaxDepth,
		AllowedTypes: c.AllowedTypes,
		TypesFile:    c.TypesFile,
		Sample:       c.Sample,
		Seed:         c.Seed,
		Progress:     c.Progress,
		Log:          c.Log,
		Retry: yamlRetryConfig{
			Attempts:   c.Retry.Attempts,
			Backoff:    c.Retry.Backoff.String(),
			MaxBackoff: c.Retry.MaxBackoff.String(),
		},
	}

	data, err := yaml.Marshal(&yc)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// envPrefix is prepended to every field's variable name.
const envPrefix = "DRIVEFETCH_"

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the DRIVEFETCH_ prefix. The unprefixed API_KEY
// and SERVICE_ACCOUNT_JSON are honoured when the prefixed ones are unset.
func (c *Config) LoadFromEnv() error {
	str := func(name string, dst *string) {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v := os.Getenv(envPrefix + name)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s%s: %w", envPrefix, name, err)
		}
		*dst = n
		return nil
	}
	dur := func(name string, dst *time.Duration) error {
		v := os.Getenv(envPrefix + name)
		if v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s%s: %w", envPrefix, name, err)
		}
		*dst = d
		return nil
	}

	if v := os.Getenv("API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("SERVICE_ACCOUNT_JSON"); v != "" {
		c.ServiceAccountJSON = v
	}

	str("FOLDER_ID", &c.FolderID)
	str("DESTINATION", &c.Destination)
	str("API_KEY", &c.APIKey)
	str("SERVICE_ACCOUNT_JSON", &c.ServiceAccountJSON)
	str("BASE_URL", &c.BaseURL)
	str("TYPES_FILE", &c.TypesFile)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("LOG_OUTPUT", &c.Log.Output)

	for name, dst := range map[string]*int{
		"WORKERS":        &c.Workers,
		"PAGE_SIZE":      &c.PageSize,
		"MAX_DEPTH":      &c.MaxDepth,
		"SAMPLE":         &c.Sample,
		"RETRY_ATTEMPTS": &c.Retry.Attempts,
	} {
		if err := num(name, dst); err != nil {
			return err
		}
	}
	for name, dst := range map[string]*time.Duration{
		"DELAY":             &c.Delay,
		"RETRY_BACKOFF":     &c.Retry.Backoff,
		"RETRY_MAX_BACKOFF": &c.Retry.MaxBackoff,
	} {
		if err := dur(name, dst); err != nil {
			return err
		}
	}

	if v := os.Getenv(envPrefix + "SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parse %sSEED: %w", envPrefix, err)
		}
		c.Seed = n
	}
	if v := os.Getenv(envPrefix + "ALLOWED_TYPES"); v != "" {
		c.AllowedTypes = SplitList(v)
	}
	if v := os.Getenv(envPrefix + "PROGRESS"); v != "" {
		c.Progress = v == "true" || v == "1"
	}

	return nil
}

// SplitList splits a comma-separated list, dropping blank entries.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.FolderID == "" {
		return ErrMissingFolder
	}
	if c.APIKey == "" && c.ServiceAccountJSON == "" {
		return ErrMissingCredentials
	}
	if c.Destination == "" {
		return errors.New("config: destination is required")
	}
	if c.Workers <= 0 {
		return errors.New("config: workers must be positive")
	}
	if c.PageSize <= 0 || c.PageSize > 1000 {
		return errors.New("config: page_size must be between 1 and 1000")
	}
	if c.Delay < 0 {
		return errors.New("config: delay must not be negative")
	}
	if c.MaxDepth < 0 {
		return errors.New("config: max_depth must not be negative")
	}
	if c.Sample < 0 {
		return errors.New("config: sample must not be negative")
	}
	switch c.Log.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.FolderID != "" {
		c.FolderID = override.FolderID
	}
	if override.Destination != "" {
		c.Destination = override.Destination
	}
	if override.APIKey != "" {
		c.APIKey = override.APIKey
	}
	if override.ServiceAccountJSON != "" {
		c.ServiceAccountJSON = override.ServiceAccountJSON
	}
	if override.BaseURL != "" {
		c.BaseURL = override.BaseURL
	}
	if override.Workers != 0 {
		c.Workers = override.Workers
	}
	if override.PageSize != 0 {
		c.PageSize = override.PageSize
	}
	if override.Delay != 0 {
		c.Delay = override.Delay
	}
	if override.MaxDepth != 0 {
		c.MaxDepth = override.MaxDepth
	}
	if len(override.AllowedTypes) > 0 {
		c.AllowedTypes = override.AllowedTypes
	}
	if override.TypesFile != "" {
		c.TypesFile = override.TypesFile
	}
	if override.Sample != 0 {
		c.Sample = override.Sample
	}
	if override.Seed != 0 {
		c.Seed = override.Seed
	}
	if override.Progress {
		c.Progress = override.Progress
	}
	if override.Log.Level != "" {
		c.Log.Level = override.Log.Level
	}
	if override.Log.Format != "" {
		c.Log.Format = override.Log.Format
	}
	if override.Log.Output != "" {
		c.Log.Output = override.Log.Output
	}
	if override.Retry.Attempts != 0 {
		c.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.Backoff != 0 {
		c.Retry.Backoff = override.Retry.Backoff
	}
	if override.Retry.MaxBackoff != 0 {
		c.Retry.MaxBackoff = override.Retry.MaxBackoff
	}
	return c
}
