package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatehouse/config"
)

func TestDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "./data/gatehouse.db", cfg.DBPath)
	assert.Equal(t, 8*time.Hour, cfg.TokenTTL)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, "http://localhost:8080/api", cfg.ServerURL)
	assert.Zero(t, cfg.RequestTimeout)
	assert.Equal(t, "admin", cfg.Bootstrap.AdminUsername)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gatehouse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: ":9090"
token_secret: file-secret
token_ttl: 30m
server_url: "https://portal.example.com/api/"
bootstrap:
  admin_username: root
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "file-secret", cfg.TokenSecret)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.Equal(t, "https://portal.example.com/api", cfg.ServerURL, "trailing slash is trimmed")
	assert.Equal(t, "root", cfg.Bootstrap.AdminUsername)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gatehouse.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: \":9090\"\n"), 0o600))
	t.Setenv("GATEHOUSE_LISTEN_ADDR", ":7070")
	t.Setenv("GATEHOUSE_TOKEN_SECRET", "env-secret")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.ListenAddr)
	assert.Equal(t, "env-secret", cfg.TokenSecret)
}

func TestValidateServer(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Error(t, cfg.ValidateServer(), "a server without a token secret must not start")

	cfg.TokenSecret = "secret"
	assert.NoError(t, cfg.ValidateServer())

	cfg.ListenAddr = ""
	assert.Error(t, cfg.ValidateServer())
}
