package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvEnvironment, "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, defaultDevBaseURL, cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	assert.Equal(t, 5, cfg.History.PerPage)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NotEmpty(t, cfg.StateDir)
}

func TestLoad_ProductionDefault(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvEnvironment, "production")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, defaultProdBaseURL, cfg.API.BaseURL)
}

func TestLoad_EnvOverrideWins(t *testing.T) {
	t.Setenv(EnvAPIURL, "http://api.internal:9000")
	t.Setenv(EnvEnvironment, "production")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api:\n  baseURL: http://from-file:8000\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://api.internal:9000", cfg.API.BaseURL)
}

func TestLoad_File(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api:
  baseURL: http://localhost:9999
  timeout: 10s
  rateLimit: 2
history:
  perPage: 3
log:
  level: debug
  format: json
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9999", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, 2.0, cfg.API.RateLimit)
	assert.Equal(t, 3, cfg.History.PerPage)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [not a map"), 0o600))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "bad base URL",
			mutate:  func(c *Config) { c.API.BaseURL = "not-a-url" },
			wantErr: true,
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.API.Timeout = -time.Second },
			wantErr: true,
		},
		{
			name:    "negative rate limit",
			mutate:  func(c *Config) { c.API.RateLimit = -1 },
			wantErr: true,
		},
		{
			name:    "zero per page",
			mutate:  func(c *Config) { c.History.PerPage = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvAPIURL, "")
			t.Setenv(EnvEnvironment, "")
			cfg := &Config{}
			cfg.ApplyDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
