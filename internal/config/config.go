// Package config provides configuration structures for the foodscan client.
// The main Config struct ties together the API target, logging, history and
// metrics settings.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Errors returned by the config package.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("config: invalid configuration")
	// ErrConfigNotFound is returned when the config file is not found.
	ErrConfigNotFound = errors.New("config: configuration file not found")
)

// Environment variables recognized at startup.
const (
	// EnvAPIURL overrides the API base URL regardless of config file contents.
	EnvAPIURL = "FOODSCAN_API_URL"
	// EnvEnvironment selects the environment default base URL ("production"
	// or anything else for development).
	EnvEnvironment = "FOODSCAN_ENV"
)

// Environment default base URLs. The base URL is resolved exactly once, at
// load time.
const (
	defaultDevBaseURL  = "http://localhost:8000"
	defaultProdBaseURL = "https://api.foodscan.example.com"
)

// Config is the root configuration structure for the foodscan client.
type Config struct {
	// API configures the remote analysis service target.
	API APIConfig `yaml:"api"`

	// Log configures logging.
	Log LogConfig `yaml:"log,omitempty"`

	// History configures the scan history cache.
	History HistoryConfig `yaml:"history,omitempty"`

	// Metrics configures the optional Prometheus scrape endpoint.
	Metrics MetricsConfig `yaml:"metrics,omitempty"`

	// StateDir is the directory holding durable client state (the access
	// token slot). Default: <user config dir>/foodscan.
	StateDir string `yaml:"stateDir,omitempty"`
}

// APIConfig holds remote service target configuration.
type APIConfig struct {
	// BaseURL is the base URL of the analysis service.
	// Resolution order: FOODSCAN_API_URL, then this field, then the
	// environment-specific default.
	BaseURL string `yaml:"baseURL,omitempty"`

	// Timeout is the per-request timeout. 0 disables the timeout.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// RateLimit caps outbound requests per second. 0 disables limiting.
	RateLimit float64 `yaml:"rateLimit,omitempty"`

	// Headers are additional headers to include in all requests.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// UnmarshalYAML decodes the API section, parsing the timeout from a duration
// string ("10s", "1m30s").
func (c *APIConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		BaseURL   string            `yaml:"baseURL"`
		Timeout   string            `yaml:"timeout"`
		RateLimit float64           `yaml:"rateLimit"`
		Headers   map[string]string `yaml:"headers"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	c.BaseURL = raw.BaseURL
	c.RateLimit = raw.RateLimit
	c.Headers = raw.Headers
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return fmt.Errorf("%w: timeout: %v", ErrInvalidConfig, err)
		}
		c.Timeout = d
	}
	return nil
}

// LogConfig holds logging configuration.
type LogConfig struct {
	// Level is the minimum level: debug, info, warn, error.
	// Default: info
	Level string `yaml:"level,omitempty"`

	// Format is the encoder format: console or json.
	// Default: console
	Format string `yaml:"format,omitempty"`

	// Output is stdout, stderr, or a file path.
	// Default: stderr
	Output string `yaml:"output,omitempty"`
}

// HistoryConfig holds scan history cache configuration.
type HistoryConfig struct {
	// PerPage is the number of entries requested on each refresh.
	// Default: 5
	PerPage int `yaml:"perPage,omitempty"`
}

// MetricsConfig holds metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the listen address for the Prometheus scrape endpoint
	// (e.g. ":9090"). Empty disables the endpoint.
	Addr string `yaml:"addr,omitempty"`
}

// Load reads the configuration from the given path. An empty path yields a
// configuration built entirely from defaults and environment overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
			}
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults applies default values and environment overrides to unset
// fields.
func (c *Config) ApplyDefaults() {
	c.API.BaseURL = resolveBaseURL(c.API.BaseURL)
	if c.API.Timeout == 0 {
		c.API.Timeout = 30 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if c.Log.Output == "" {
		c.Log.Output = "stderr"
	}
	if c.History.PerPage == 0 {
		c.History.PerPage = 5
	}
	if c.StateDir == "" {
		c.StateDir = defaultStateDir()
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: invalid base URL %q", ErrInvalidConfig, c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("%w: timeout must be non-negative", ErrInvalidConfig)
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("%w: rateLimit must be non-negative", ErrInvalidConfig)
	}
	if c.History.PerPage < 1 {
		return fmt.Errorf("%w: history perPage must be positive", ErrInvalidConfig)
	}
	return nil
}

// resolveBaseURL resolves the API base URL. The FOODSCAN_API_URL override
// always wins; otherwise an explicitly configured URL is kept, and the
// environment default is the fallback.
func resolveBaseURL(configured string) string {
	if env := os.Getenv(EnvAPIURL); env != "" {
		return env
	}
	if configured != "" {
		return configured
	}
	if os.Getenv(EnvEnvironment) == "production" {
		return defaultProdBaseURL
	}
	return defaultDevBaseURL
}

func defaultStateDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ".foodscan"
	}
	return filepath.Join(base, "foodscan")
}
