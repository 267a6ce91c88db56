package core

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ParleSec/openid-provider/internal/sessionstore"
	"github.com/ParleSec/openid-provider/pkg/models"
)

// Config holds the application configuration
type Config struct {
	// Environment (development, demo, production)
	Environment string `yaml:"environment"`

	// Server listening address
	ListenAddr string `yaml:"listen_addr"`

	// Base URL for constructing absolute URLs; identity URLs derive
	// from it, so it must be absolute
	BaseURL string `yaml:"base_url"`

	// CORS allowed origins
	CORSOrigins []string `yaml:"cors_origins"`

	// Enable debug logging
	Debug bool `yaml:"debug"`

	// Log output format: json or text
	LogFormat string `yaml:"log_format"`

	// Name of the browser session cookie
	CookieName string `yaml:"cookie_name"`

	Sessions     SessionConfig     `yaml:"sessions"`
	Associations AssociationConfig `yaml:"associations"`
	Verifier     VerifierConfig    `yaml:"verifier"`
	Attributes   AttributeConfig   `yaml:"attributes"`
}

// SessionConfig selects the session store backend and lifetimes.
type SessionConfig struct {
	// Store backend: memory or redis
	Store string `yaml:"store"`

	Redis sessionstore.RedisConfig `yaml:"redis"`

	// Lifetime of a session before the user logs in
	AnonymousTTL time.Duration `yaml:"anonymous_ttl"`

	// Lifetime after a successful login
	AuthenticatedTTL time.Duration `yaml:"authenticated_ttl"`
}

// AssociationConfig selects the association store backend.
type AssociationConfig struct {
	// Store backend: memory or sqlite
	Store string `yaml:"store"`

	// Directory for the sqlite database file
	DataDir string `yaml:"data_dir"`

	// Association lifetime advertised to relying parties
	TTL time.Duration `yaml:"ttl"`
}

// VerifierConfig selects the identity verifier implementation.
type VerifierConfig struct {
	// Mode: static (fixed user list) or remote (SSO cookie probe)
	Mode string `yaml:"mode"`

	// Users for static mode
	Users []models.User `yaml:"users"`

	// Remote mode: URL probed with the forwarded SSO cookie
	ProbeURL string `yaml:"probe_url"`

	// Remote mode: name of the SSO cookie to forward
	CookieName string `yaml:"cookie_name"`
}

// AttributeConfig controls attribute exchange values.
type AttributeConfig struct {
	// Domain suffix for derived email addresses
	EmailDomain string `yaml:"email_domain"`
}

// LoadConfig loads configuration from an optional YAML file, then applies
// environment variable overrides and defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Environment = getEnv("OPENID_ENV", c.Environment)
	c.ListenAddr = getEnv("OPENID_LISTEN_ADDR", c.ListenAddr)
	c.BaseURL = getEnv("OPENID_BASE_URL", c.BaseURL)
	c.Debug = getEnvBool("OPENID_DEBUG", c.Debug)
	c.LogFormat = getEnv("OPENID_LOG_FORMAT", c.LogFormat)
	c.CORSOrigins = getEnvList("OPENID_CORS_ORIGINS", c.CORSOrigins)
	c.Sessions.Redis.Address = getEnv("OPENID_REDIS_ADDR", c.Sessions.Redis.Address)
	c.Sessions.Redis.Password = getEnv("OPENID_REDIS_PASSWORD", c.Sessions.Redis.Password)
}

func (c *Config) setDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.BaseURL == "" {
		c.BaseURL = "http://localhost:8080/"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.CookieName == "" {
		c.CookieName = "openid_session"
	}
	if c.Sessions.Store == "" {
		c.Sessions.Store = "memory"
	}
	if c.Sessions.AnonymousTTL == 0 {
		c.Sessions.AnonymousTTL = time.Hour
	}
	if c.Sessions.AuthenticatedTTL == 0 {
		c.Sessions.AuthenticatedTTL = 30 * 24 * time.Hour
	}
	if c.Associations.Store == "" {
		c.Associations.Store = "memory"
	}
	if c.Associations.DataDir == "" {
		c.Associations.DataDir = "./data"
	}
	if c.Associations.TTL == 0 {
		c.Associations.TTL = 14 * 24 * time.Hour
	}
	if c.Verifier.Mode == "" {
		c.Verifier.Mode = "static"
	}
	if c.Verifier.CookieName == "" {
		c.Verifier.CookieName = "sso_session"
	}
	if c.Attributes.EmailDomain == "" {
		u, err := url.Parse(c.BaseURL)
		if err == nil && u.Hostname() != "" {
			c.Attributes.EmailDomain = u.Hostname()
		} else {
			c.Attributes.EmailDomain = "localhost"
		}
	}
}

// Validate checks settings a running server cannot do without.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || !u.IsAbs() {
		return fmt.Errorf("base_url must be an absolute URL, got %q", c.BaseURL)
	}
	switch c.Sessions.Store {
	case "memory":
	case "redis":
		if c.Sessions.Redis.Address == "" {
			return fmt.Errorf("sessions.redis.address is required for the redis store")
		}
	default:
		return fmt.Errorf("unknown session store %q", c.Sessions.Store)
	}
	switch c.Associations.Store {
	case "memory", "sqlite":
	default:
		return fmt.Errorf("unknown association store %q", c.Associations.Store)
	}
	switch c.Verifier.Mode {
	case "static":
		if len(c.Verifier.Users) == 0 && c.Environment == "production" {
			return fmt.Errorf("verifier.users must not be empty in production")
		}
	case "remote":
		if c.Verifier.ProbeURL == "" {
			return fmt.Errorf("verifier.probe_url is required for the remote verifier")
		}
	default:
		return fmt.Errorf("unknown verifier mode %q", c.Verifier.Mode)
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsDemo returns true if running in demo mode
func (c *Config) IsDemo() bool {
	return c.Environment == "demo"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return strings.ToLower(value) == "true" || value == "1"
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return strings.Split(value, ",")
}
