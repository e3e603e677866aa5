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
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.APIBaseURL)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NotEmpty(t, cfg.CredentialsDir)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_base_url: https://todo.example.com/api
timeout: 3s
proxy_url: socks5://127.0.0.1:1080
google_client_id: client-123
port: 9000
api_keys: [one, two]
log_level: debug
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://todo.example.com/api", cfg.APIBaseURL)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, "socks5://127.0.0.1:1080", cfg.ProxyURL)
	assert.Equal(t, "client-123", cfg.GoogleClientID)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, []string{"one", "two"}, cfg.APIKeys)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "http://127.0.0.1:9000/callback", cfg.CallbackURL())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TODOCTL_API_BASE_URL", "https://env.example.com")
	t.Setenv("TODOCTL_TIMEOUT", "30s")
	t.Setenv("TODOCTL_PORT", "9100")
	t.Setenv("TODOCTL_API_KEYS", " a , b ")
	t.Setenv("TODOCTL_RATE_LIMIT", "5")
	t.Setenv("TODOCTL_DEBUG", "1")
	t.Setenv("TODOCTL_CREDENTIALS_DIR", "/tmp/todoctl-creds")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://env.example.com", cfg.APIBaseURL)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, []string{"a", "b"}, cfg.APIKeys)
	assert.Equal(t, 5, cfg.RateLimit)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "/tmp/todoctl-creds", cfg.CredentialsDir)
}

func TestLoad_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	require.NoError(t, os.WriteFile(path, []byte("api_base_url: [unclosed"), 0600))
	_, err := Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("api_base_url: not-a-url"), 0600))
	_, err = Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("timeout: -1s"), 0600))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestCallbackURL_WildcardHost(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "0.0.0.0"

	assert.Equal(t, "http://localhost:8765/callback", cfg.CallbackURL())
}
