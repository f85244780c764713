// Package config loads the application configuration from an optional YAML
// file overlaid with environment variables.
package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const defaultConfigPath = "config/gatehouse.yaml"

// AppConfig is the full configuration for the server and portal.
type AppConfig struct {
	// ListenAddr is the server bind address.
	ListenAddr string `yaml:"listen_addr" env:"GATEHOUSE_LISTEN_ADDR" env-default:":8080"`
	// DBPath is the BBolt database file; empty selects the in-memory store.
	DBPath string `yaml:"db_path" env:"GATEHOUSE_DB_PATH" env-default:"./data/gatehouse.db"`
	// TokenSecret signs access tokens. Required for the server.
	TokenSecret string `yaml:"token_secret" env:"GATEHOUSE_TOKEN_SECRET"`
	// TokenTTL bounds access-token lifetime.
	TokenTTL time.Duration `yaml:"token_ttl" env:"GATEHOUSE_TOKEN_TTL" env-default:"8h"`
	// MetricsEnabled exposes /metrics when set.
	MetricsEnabled bool `yaml:"metrics_enabled" env:"GATEHOUSE_METRICS_ENABLED" env-default:"true"`

	// ServerURL is the credential store base URL used by the portal.
	ServerURL string `yaml:"server_url" env:"GATEHOUSE_SERVER_URL" env-default:"http://localhost:8080/api"`
	// RequestTimeout is the portal's per-request timeout. Zero leaves
	// requests without a client-side deadline.
	RequestTimeout time.Duration `yaml:"request_timeout" env:"GATEHOUSE_REQUEST_TIMEOUT" env-default:"0"`

	// Bootstrap seeds an initial admin account when the store is empty.
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
}

// BootstrapConfig controls first-run admin account creation.
type BootstrapConfig struct {
	AdminUsername string `yaml:"admin_username" env:"GATEHOUSE_ADMIN_USERNAME" env-default:"admin"`
	AdminPassword string `yaml:"admin_password" env:"GATEHOUSE_ADMIN_PASSWORD"`
}

// Load reads configuration from path (or the default path when empty) if
// the file exists, then overlays environment variables.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}
	if path == "" {
		path = defaultConfigPath
	}
	if st, err := os.Stat(path); err == nil && !st.IsDir() {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, err
	}
	normalize(cfg)
	return cfg, nil
}

func normalize(cfg *AppConfig) {
	cfg.ServerURL = strings.TrimRight(strings.TrimSpace(cfg.ServerURL), "/")
	cfg.DBPath = strings.TrimSpace(cfg.DBPath)
	cfg.TokenSecret = strings.TrimSpace(cfg.TokenSecret)
}

// ValidateServer checks the fields the server requires.
func (c *AppConfig) ValidateServer() error {
	if c.TokenSecret == "" {
		return errors.New("token_secret is required (set GATEHOUSE_TOKEN_SECRET)")
	}
	if c.ListenAddr == "" {
		return errors.New("listen_addr must not be empty")
	}
	return nil
}
