// ABOUTME: Configuration loading for the wagate service
// ABOUTME: Loads optional TOML config with env expansion plus env overrides

package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full service configuration. Values come from an optional
// TOML file; the JKT48_API_KEY, DATABASE_URL, and PORT environment
// variables override their file counterparts so container deployments work
// without any file at all.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Session  SessionConfig  `toml:"session"`
	Gate     GateConfig     `toml:"gate"`
	Logging  LoggingConfig  `toml:"logging"`
}

type ServerConfig struct {
	Port int `toml:"port"`
}

type DatabaseConfig struct {
	URL string `toml:"url"`
}

type SessionConfig struct {
	ID             string `toml:"id"`
	Transport      string `toml:"transport"`
	ReconnectDelay string `toml:"reconnect_delay"`

	// DisableSelfNotify turns off the diagnostic message the session sends
	// to its own account after connecting. On by default.
	DisableSelfNotify bool `toml:"disable_self_notify"`
}

type GateConfig struct {
	APIKey         string `toml:"api_key"`
	EntitlementURL string `toml:"entitlement_url"`
}

type LoggingConfig struct {
	Level string `toml:"level"`
}

// Load reads the config file at path if it exists, expands ${VAR}
// references, applies environment overrides, fills defaults, and validates.
// An empty path or a missing file yields a pure env/default config.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			expanded := expandEnvVars(string(data))
			if _, err := toml.Decode(expanded, &cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		case os.IsNotExist(err):
			// No file is fine, env and defaults carry the config.
		default:
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("JKT48_API_KEY"); v != "" {
		c.Gate.APIKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT %q is not a number: %w", v, err)
		}
		c.Server.Port = port
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Session.ID == "" {
		c.Session.ID = "default"
	}
	if c.Session.Transport == "" {
		c.Session.Transport = "memory"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks that required config fields are present and valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required (set DATABASE_URL)")
	}
	if c.Gate.APIKey == "" {
		return fmt.Errorf("gate.api_key is required (set JKT48_API_KEY)")
	}
	if c.Gate.EntitlementURL != "" {
		u, err := url.Parse(c.Gate.EntitlementURL)
		if err != nil {
			return fmt.Errorf("gate.entitlement_url is not a valid URL: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("gate.entitlement_url must use http or https scheme")
		}
	}
	if c.Session.ReconnectDelay != "" {
		if _, err := time.ParseDuration(c.Session.ReconnectDelay); err != nil {
			return fmt.Errorf("session.reconnect_delay is not a duration: %w", err)
		}
	}
	return nil
}

// ReconnectDelay returns the parsed reconnect delay, or zero if unset so
// the session layer applies its own default.
func (c *Config) ReconnectDelay() time.Duration {
	if c.Session.ReconnectDelay == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Session.ReconnectDelay)
	if err != nil {
		return 0
	}
	return d
}

// ListenAddr returns the HTTP listen address for the configured port.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
