// Package config loads the daemon's environment-driven configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	AppName     = "clusterdash"
	EnvFileName = "config.env"
)

// LoadEnvFile loads environment variables from the config file in the
// user's config directory. Errors are ignored since the file may not
// exist.
func LoadEnvFile() {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return
	}
	configPath := filepath.Join(configBase, AppName, EnvFileName)
	_ = godotenv.Load(configPath)
}

// Config is everything the daemon needs to wire the session layer.
type Config struct {
	// APIBaseURL is the backend the request gateway fronts.
	APIBaseURL string

	// DemoMode selects the mock authenticator as the primary variant.
	DemoMode bool
	// ProviderURL, ClientID, Scope configure the OIDC adapter.
	ProviderURL string
	ClientID    string
	Scope       string
	// SessionCookieName is the reverse-proxy companion's cookie, empty
	// when the deployment does not use cookie sessions.
	SessionCookieName string

	// DemoEmail/DemoPassword route an exact match to the mock
	// authenticator even when the OIDC adapter is primary.
	DemoEmail    string
	DemoPassword string

	// DBPath and TokenKey configure the credential store.
	DBPath   string
	TokenKey string

	// MaxRetries bounds gateway retries of transient failures.
	MaxRetries int

	// KeepAliveInterval and KeepAliveLeeway tune the refresh loop.
	KeepAliveInterval time.Duration
	KeepAliveLeeway   time.Duration

	// MetricsAddr serves prometheus metrics when non-empty.
	MetricsAddr string
}

// FromEnv reads the configuration from environment variables.
func FromEnv() (*Config, error) {
	cfg := &Config{
		APIBaseURL:        os.Getenv("CLUSTERDASH_API_URL"),
		DemoMode:          os.Getenv("CLUSTERDASH_DEMO_MODE") == "true",
		ProviderURL:       os.Getenv("CLUSTERDASH_PROVIDER_URL"),
		ClientID:          os.Getenv("CLUSTERDASH_CLIENT_ID"),
		Scope:             os.Getenv("CLUSTERDASH_SCOPE"),
		SessionCookieName: os.Getenv("CLUSTERDASH_SESSION_COOKIE"),
		DemoEmail:         os.Getenv("CLUSTERDASH_DEMO_EMAIL"),
		DemoPassword:      os.Getenv("CLUSTERDASH_DEMO_PASSWORD"),
		DBPath:            os.Getenv("CLUSTERDASH_DB_PATH"),
		TokenKey:          os.Getenv("CLUSTERDASH_TOKEN_KEY"),
		MetricsAddr:       os.Getenv("CLUSTERDASH_METRICS_ADDR"),
		KeepAliveInterval: time.Minute,
		KeepAliveLeeway:   5 * time.Minute,
	}

	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("CLUSTERDASH_API_URL is not set")
	}
	if !cfg.DemoMode && cfg.ProviderURL == "" {
		return nil, fmt.Errorf("CLUSTERDASH_PROVIDER_URL is not set (or enable CLUSTERDASH_DEMO_MODE)")
	}
	if cfg.TokenKey == "" {
		return nil, fmt.Errorf("CLUSTERDASH_TOKEN_KEY is not set")
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "clusterdash.db"
	}

	if v := os.Getenv("CLUSTERDASH_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("CLUSTERDASH_MAX_RETRIES must be a non-negative integer")
		}
		cfg.MaxRetries = n
	}
	if v := os.Getenv("CLUSTERDASH_KEEPALIVE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("CLUSTERDASH_KEEPALIVE_INTERVAL: %w", err)
		}
		cfg.KeepAliveInterval = d
	}
	if v := os.Getenv("CLUSTERDASH_KEEPALIVE_LEEWAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("CLUSTERDASH_KEEPALIVE_LEEWAY: %w", err)
		}
		cfg.KeepAliveLeeway = d
	}

	return cfg, nil
}
