package shared

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		assert.Equal(t, "http://localhost:8000", config.API.BaseURL)
		assert.Equal(t, AuthModeCookie, config.API.AuthMode)
		assert.Equal(t, 30*time.Second, config.API.Timeout())
		assert.Equal(t, 45*time.Minute, config.Session.RefreshInterval())
		assert.Equal(t, 2*time.Second, config.Poller.Interval())
		assert.Equal(t, "~/.perc/perc.db", config.Database.Path)
		assert.NoError(t, config.Validate())
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		require.NoError(t, CreateConfigFile(configPath))
		_, err := os.Stat(configPath)
		require.NoError(t, err)

		config, err := LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), config)

		assert.Error(t, CreateConfigFile(configPath), "creating config file again should fail")
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		content := `[api]
base_url = "https://api.example.com"
auth_mode = "bearer"

[poller]
interval_ms = 500
`
		require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

		config, err := LoadConfig(configPath)
		require.NoError(t, err)

		assert.Equal(t, "https://api.example.com", config.API.BaseURL)
		assert.Equal(t, AuthModeBearer, config.API.AuthMode)
		assert.Equal(t, 500*time.Millisecond, config.Poller.Interval())
		assert.Equal(t, 45, config.Session.RefreshIntervalMinutes, "missing keys keep defaults")
	})

	t.Run("LoadConfig Missing File", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		assert.Error(t, err)
	})

	t.Run("LoadConfig Invalid TOML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		require.NoError(t, os.WriteFile(configPath, []byte("[api\nbase_url ="), 0644))

		_, err := LoadConfig(configPath)
		assert.Error(t, err)
	})

	t.Run("Validate", func(t *testing.T) {
		tt := []struct {
			name   string
			mutate func(c *Config)
		}{
			{"empty base url", func(c *Config) { c.API.BaseURL = "" }},
			{"unknown auth mode", func(c *Config) { c.API.AuthMode = "basic" }},
			{"zero poll interval", func(c *Config) { c.Poller.IntervalMS = 0 }},
			{"negative refresh interval", func(c *Config) { c.Session.RefreshIntervalMinutes = -1 }},
		}

		for _, tc := range tt {
			t.Run(tc.name, func(t *testing.T) {
				config := DefaultConfig()
				tc.mutate(config)
				assert.ErrorIs(t, config.Validate(), ErrInvalidConfig)
			})
		}
	})

	t.Run("ApplyEnv", func(t *testing.T) {
		t.Setenv(EnvAPIURL, "https://staging.example.com")
		t.Setenv(EnvAuthMode, "BEARER")
		t.Setenv(EnvSessionPath, "/tmp/session.json")
		t.Setenv(EnvDBPath, "")

		config := DefaultConfig()
		config.ApplyEnv()

		assert.Equal(t, "https://staging.example.com", config.API.BaseURL)
		assert.Equal(t, AuthModeBearer, config.API.AuthMode)
		assert.Equal(t, "/tmp/session.json", config.Session.Path)
		assert.Equal(t, "~/.perc/perc.db", config.Database.Path, "empty env keeps file value")
	})
}
