// ABOUTME: Configuration loading and parsing for folio
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Auth modes
const (
	AuthModeRequired = "required" // mutations need a signed-in user
	AuthModeDisabled = "disabled" // every visitor may mutate documents
)

// Extension policies
const (
	ExtensionPolicyStrict = "strict" // only .txt and .md
	ExtensionPolicyAny    = "any"    // any non-empty extension
)

// MinSessionSecretLength is the minimum number of bytes for auth.session_secret.
const MinSessionSecretLength = 32

// Config represents the complete folio configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Storage   StorageConfig   `yaml:"storage" toml:"storage"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Documents DocumentsConfig `yaml:"documents" toml:"documents"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// StorageConfig holds the on-disk locations of documents and credentials
type StorageConfig struct {
	DocumentsDir    string `yaml:"documents_dir" toml:"documents_dir"`
	CredentialsPath string `yaml:"credentials_path" toml:"credentials_path"`
}

// DatabaseConfig holds the session database configuration.
// Path ":memory:" keeps sessions in process memory.
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// AuthConfig holds authentication and session configuration
type AuthConfig struct {
	Mode          string `yaml:"mode" toml:"mode"`
	SessionSecret string `yaml:"session_secret" toml:"session_secret"`
	BcryptCost    int    `yaml:"bcrypt_cost" toml:"bcrypt_cost"`

	SessionTTL           time.Duration `yaml:"-" toml:"-"`
	SessionSweepInterval time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	SessionTTLRaw           string `yaml:"session_ttl" toml:"session_ttl"`
	SessionSweepIntervalRaw string `yaml:"session_sweep_interval" toml:"session_sweep_interval"`
}

// DocumentsConfig holds document validation and rendering options
type DocumentsConfig struct {
	ExtensionPolicy    string `yaml:"extension_policy" toml:"extension_policy"`
	SanitizeHTML       *bool  `yaml:"sanitize_html" toml:"sanitize_html"`
	RenderCacheEntries int    `yaml:"render_cache_entries" toml:"render_cache_entries"`

	RenderCacheTTL    time.Duration `yaml:"-" toml:"-"`
	RenderCacheTTLRaw string        `yaml:"render_cache_ttl" toml:"render_cache_ttl"`
}

// Sanitize reports whether rendered markdown should be sanitized. Defaults to true.
func (d DocumentsConfig) Sanitize() bool {
	if d.SanitizeHTML == nil {
		return true
	}
	return *d.SanitizeHTML
}

// RateLimitConfig limits login and signup attempts per client address
type RateLimitConfig struct {
	LoginPerMinute int `yaml:"login_per_minute" toml:"login_per_minute"`
	Burst          int `yaml:"burst" toml:"burst"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

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

// applyDefaults fills in optional fields that were left empty.
func (c *Config) applyDefaults() {
	if c.Auth.Mode == "" {
		c.Auth.Mode = AuthModeRequired
	}
	if c.Auth.SessionTTL == 0 {
		c.Auth.SessionTTL = 7 * 24 * time.Hour
	}
	if c.Auth.SessionSweepInterval == 0 {
		c.Auth.SessionSweepInterval = 10 * time.Minute
	}
	if c.Auth.BcryptCost == 0 {
		c.Auth.BcryptCost = 10
	}
	if c.Documents.ExtensionPolicy == "" {
		c.Documents.ExtensionPolicy = ExtensionPolicyStrict
	}
	if c.Documents.RenderCacheEntries == 0 {
		c.Documents.RenderCacheEntries = 256
	}
	if c.Documents.RenderCacheTTL == 0 {
		c.Documents.RenderCacheTTL = 10 * time.Minute
	}
	if c.Database.Path == "" {
		c.Database.Path = ":memory:"
	}
	if c.RateLimit.LoginPerMinute == 0 {
		c.RateLimit.LoginPerMinute = 10
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 5
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
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

	if c.Storage.DocumentsDir == "" {
		return fmt.Errorf("storage.documents_dir is required")
	}
	if c.Storage.CredentialsPath == "" {
		return fmt.Errorf("storage.credentials_path is required")
	}

	switch c.Auth.Mode {
	case AuthModeRequired, AuthModeDisabled:
	default:
		return fmt.Errorf("auth.mode must be %q or %q, got %q", AuthModeRequired, AuthModeDisabled, c.Auth.Mode)
	}

	if len(c.Auth.SessionSecret) < MinSessionSecretLength {
		return fmt.Errorf("auth.session_secret must be at least %d bytes", MinSessionSecretLength)
	}

	if c.Auth.SessionTTL < 0 || c.Auth.SessionSweepInterval < 0 {
		return fmt.Errorf("auth durations must not be negative")
	}

	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("auth.bcrypt_cost must be between 4 and 31, got %d", c.Auth.BcryptCost)
	}

	switch c.Documents.ExtensionPolicy {
	case ExtensionPolicyStrict, ExtensionPolicyAny:
	default:
		return fmt.Errorf("documents.extension_policy must be %q or %q, got %q",
			ExtensionPolicyStrict, ExtensionPolicyAny, c.Documents.ExtensionPolicy)
	}

	if c.Documents.RenderCacheEntries < 0 || c.Documents.RenderCacheTTL < 0 {
		return fmt.Errorf("documents render cache settings must not be negative")
	}

	if c.RateLimit.LoginPerMinute < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit values must not be negative")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Auth.SessionTTLRaw != "" {
		cfg.Auth.SessionTTL, err = time.ParseDuration(cfg.Auth.SessionTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing session_ttl %q: %w", cfg.Auth.SessionTTLRaw, err)
		}
	}

	if cfg.Auth.SessionSweepIntervalRaw != "" {
		cfg.Auth.SessionSweepInterval, err = time.ParseDuration(cfg.Auth.SessionSweepIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing session_sweep_interval %q: %w", cfg.Auth.SessionSweepIntervalRaw, err)
		}
	}

	if cfg.Documents.RenderCacheTTLRaw != "" {
		cfg.Documents.RenderCacheTTL, err = time.ParseDuration(cfg.Documents.RenderCacheTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing render_cache_ttl %q: %w", cfg.Documents.RenderCacheTTLRaw, err)
		}
	}

	return nil
}

// ResolvePath picks the configuration file location.
// An explicit path wins, then FOLIO_CONFIG, then $XDG_CONFIG_HOME/folio/folio.yaml
// (falling back to ~/.config when XDG_CONFIG_HOME is unset).
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if env := os.Getenv("FOLIO_CONFIG"); env != "" {
		return env
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".", "folio.yaml")
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "folio", "folio.yaml")
}
