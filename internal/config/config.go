// Package config provides configuration loading and management for todoctl.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	// Remote API settings
	APIBaseURL string        `yaml:"api_base_url"`
	Timeout    time.Duration `yaml:"timeout"`

	// Proxy settings
	ProxyURL string `yaml:"proxy_url"`

	// Credentials settings
	CredentialsDir string `yaml:"credentials_dir"`

	// Google sign-in settings
	GoogleClientID string `yaml:"google_client_id"`

	// Local server settings
	Port      int      `yaml:"port"`
	Host      string   `yaml:"host"`
	APIKeys   []string `yaml:"api_keys"`
	RateLimit int      `yaml:"rate_limit"`

	// Logging settings
	LogLevel string `yaml:"log_level"`
	Debug    bool   `yaml:"debug"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL:     "http://localhost:8000",
		Timeout:        10 * time.Second,
		CredentialsDir: defaultCredentialsDir(),
		Port:           8765,
		Host:           "127.0.0.1",
		RateLimit:      600,
		LogLevel:       "info",
	}
}

// Load reads configuration from a YAML file.
// If the file doesn't exist, returns default configuration with environment
// overrides applied.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			log.Debugf("Config file not found at %s, using defaults", path)
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api_base_url %q", c.APIBaseURL)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TODOCTL_API_BASE_URL"); v != "" {
		c.APIBaseURL = v
	}

	if v := os.Getenv("TODOCTL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Timeout = d
		} else {
			log.Warnf("Ignoring TODOCTL_TIMEOUT=%q: %v", v, err)
		}
	}

	if v := os.Getenv("TODOCTL_PROXY_URL"); v != "" {
		c.ProxyURL = v
	}

	if v := os.Getenv("TODOCTL_CREDENTIALS_DIR"); v != "" {
		c.CredentialsDir = v
	}

	if v := os.Getenv("TODOCTL_GOOGLE_CLIENT_ID"); v != "" {
		c.GoogleClientID = v
	}

	if v := os.Getenv("TODOCTL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}

	if v := os.Getenv("TODOCTL_HOST"); v != "" {
		c.Host = v
	}

	if v := os.Getenv("TODOCTL_API_KEYS"); v != "" {
		keys := strings.Split(v, ",")
		for i, k := range keys {
			keys[i] = strings.TrimSpace(k)
		}
		c.APIKeys = keys
	}

	if v := os.Getenv("TODOCTL_RATE_LIMIT"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			c.RateLimit = limit
		}
	}

	if v := os.Getenv("TODOCTL_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	if v := os.Getenv("TODOCTL_DEBUG"); v == "true" || v == "1" {
		c.Debug = true
	}
}

// Addr returns the local server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CallbackURL returns the OAuth redirect target served by the local server.
func (c *Config) CallbackURL() string {
	host := c.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d/callback", host, c.Port)
}

// defaultCredentialsDir returns the default credentials directory.
func defaultCredentialsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".todoctl"
	}
	return filepath.Join(home, ".todoctl")
}

// EnsureCredentialsDir creates the credentials directory if it doesn't exist.
func (c *Config) EnsureCredentialsDir() error {
	dir := c.CredentialsDir
	if dir == "" {
		dir = defaultCredentialsDir()
	}
	return os.MkdirAll(dir, 0700)
}
