// ABOUTME: Configuration loading and parsing for reading-club
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for auth durations when the config leaves them unset.
const (
	DefaultSessionTTL   = 7 * 24 * time.Hour
	DefaultLoginCodeTTL = 10 * time.Minute
	DefaultInviteTTL    = 24 * time.Hour
)

// Config represents the complete reading-club configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Site      SiteConfig      `yaml:"site"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds server address configuration.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration.
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
	HTTPS     bool   `yaml:"https"`  // Serve over tailnet HTTPS (tailscale cert)
	Funnel    bool   `yaml:"funnel"` // Enable public Funnel (implies HTTPS)
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`

	SessionTTL   time.Duration `yaml:"-"`
	LoginCodeTTL time.Duration `yaml:"-"`
	InviteTTL    time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	SessionTTLRaw   string `yaml:"session_ttl"`
	LoginCodeTTLRaw string `yaml:"login_code_ttl"`
	InviteTTLRaw    string `yaml:"invite_ttl"`
}

// SiteConfig holds site presentation configuration.
type SiteConfig struct {
	// Title is shown in page headers; defaults to the club name.
	Title string `yaml:"title"`
	// BaseURL is the external URL for invite links and passkey origins.
	// If not set, it's derived from server.http_addr or the tailscale hostname.
	BaseURL string `yaml:"base_url"`
	// CatalogPath optionally overrides the built-in bookcase catalog.
	CatalogPath string `yaml:"catalog_path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// The HTTP address is required unless Tailscale provides the listener
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 bytes")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values,
// applying defaults where the config is silent.
func parseDurations(cfg *Config) error {
	var err error

	cfg.Auth.SessionTTL = DefaultSessionTTL
	if cfg.Auth.SessionTTLRaw != "" {
		cfg.Auth.SessionTTL, err = time.ParseDuration(cfg.Auth.SessionTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing session_ttl %q: %w", cfg.Auth.SessionTTLRaw, err)
		}
	}

	cfg.Auth.LoginCodeTTL = DefaultLoginCodeTTL
	if cfg.Auth.LoginCodeTTLRaw != "" {
		cfg.Auth.LoginCodeTTL, err = time.ParseDuration(cfg.Auth.LoginCodeTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing login_code_ttl %q: %w", cfg.Auth.LoginCodeTTLRaw, err)
		}
	}

	cfg.Auth.InviteTTL = DefaultInviteTTL
	if cfg.Auth.InviteTTLRaw != "" {
		cfg.Auth.InviteTTL, err = time.ParseDuration(cfg.Auth.InviteTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing invite_ttl %q: %w", cfg.Auth.InviteTTLRaw, err)
		}
	}

	return nil
}
