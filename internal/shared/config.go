package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Credential strategies understood by the HTTP client.
const (
	AuthModeCookie = "cookie"
	AuthModeBearer = "bearer"
)

// Environment variables that override values loaded from the config file.
const (
	EnvAPIURL      = "PERC_API_URL"
	EnvAuthMode    = "PERC_AUTH_MODE"
	EnvSessionPath = "PERC_SESSION_PATH"
	EnvDBPath      = "PERC_DB_PATH"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	API      APIConfig      `toml:"api"`
	Session  SessionConfig  `toml:"session"`
	Poller   PollerConfig   `toml:"poller"`
	Database DatabaseConfig `toml:"database"`
	Frontend FrontendConfig `toml:"frontend"`
}

// APIConfig contains analysis backend connection settings.
type APIConfig struct {
	BaseURL        string  `toml:"base_url"`
	AuthMode       string  `toml:"auth_mode"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	RateLimit      float64 `toml:"rate_limit"`
}

// SessionConfig controls where the session is persisted and how often it is re-validated.
type SessionConfig struct {
	Path                   string `toml:"path"`
	RefreshIntervalMinutes int    `toml:"refresh_interval_minutes"`
}

// PollerConfig controls analysis progress polling.
type PollerConfig struct {
	IntervalMS int `toml:"interval_ms"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// FrontendConfig points at the web dashboard, used when opening reports or the sign-in page.
type FrontendConfig struct {
	URL string `toml:"url"`
}

// Timeout returns the per-request HTTP timeout.
func (c APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RefreshInterval returns the period of the session keep-alive timer.
func (c SessionConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMinutes) * time.Minute
}

// Interval returns the poll period.
func (c PollerConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// Validate reports configuration values the client cannot work with.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("%w: api.base_url is required", ErrInvalidConfig)
	}
	switch c.API.AuthMode {
	case AuthModeCookie, AuthModeBearer:
	default:
		return fmt.Errorf("%w: api.auth_mode must be %q or %q, got %q", ErrInvalidConfig, AuthModeCookie, AuthModeBearer, c.API.AuthMode)
	}
	if c.Poller.IntervalMS <= 0 {
		return fmt.Errorf("%w: poller.interval_ms must be positive", ErrInvalidConfig)
	}
	if c.Session.RefreshIntervalMinutes <= 0 {
		return fmt.Errorf("%w: session.refresh_interval_minutes must be positive", ErrInvalidConfig)
	}
	return nil
}

// ApplyEnv overrides config values from PERC_* environment variables.
func (c *Config) ApplyEnv() {
	c.API.BaseURL = GetEnv(EnvAPIURL, c.API.BaseURL)
	c.API.AuthMode = strings.ToLower(GetEnv(EnvAuthMode, c.API.AuthMode))
	c.Session.Path = GetEnv(EnvSessionPath, c.Session.Path)
	c.Database.Path = GetEnv(EnvDBPath, c.Database.Path)
}

// GetEnv returns the value of envVar, or defaultValue when it is unset or empty.
func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
