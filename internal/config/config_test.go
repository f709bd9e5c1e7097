// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, defaults, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

// validConfig returns a Config that passes Validate.
func validConfig() Config {
	return Config{
		Server:    ServerConfig{HTTPAddr: "localhost:4567"},
		Storage:   StorageConfig{DocumentsDir: "./data", CredentialsPath: "./users.yml"},
		Auth:      AuthConfig{Mode: AuthModeRequired, SessionSecret: testSecret, BcryptCost: 10},
		Documents: DocumentsConfig{ExtensionPolicy: ExtensionPolicyStrict},
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
server:
  http_addr: "0.0.0.0:4567"

storage:
  documents_dir: "./data"
  credentials_path: "./users.yml"

database:
  path: "./sessions.db"

auth:
  mode: "disabled"
  session_secret: "`+testSecret+`"
  session_ttl: "2h"
  bcrypt_cost: 4

documents:
  extension_policy: "any"
  sanitize_html: false

rate_limit:
  login_per_minute: 20
  burst: 2

logging:
  level: "debug"
  format: "json"

metrics:
  enabled: true
  path: "/internal/metrics"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:4567" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:4567")
	}
	if cfg.Storage.DocumentsDir != "./data" {
		t.Errorf("Storage.DocumentsDir = %q, want %q", cfg.Storage.DocumentsDir, "./data")
	}
	if cfg.Storage.CredentialsPath != "./users.yml" {
		t.Errorf("Storage.CredentialsPath = %q, want %q", cfg.Storage.CredentialsPath, "./users.yml")
	}
	if cfg.Database.Path != "./sessions.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./sessions.db")
	}
	if cfg.Auth.Mode != AuthModeDisabled {
		t.Errorf("Auth.Mode = %q, want %q", cfg.Auth.Mode, AuthModeDisabled)
	}
	if cfg.Auth.SessionTTL != 2*time.Hour {
		t.Errorf("Auth.SessionTTL = %v, want %v", cfg.Auth.SessionTTL, 2*time.Hour)
	}
	if cfg.Auth.BcryptCost != 4 {
		t.Errorf("Auth.BcryptCost = %d, want 4", cfg.Auth.BcryptCost)
	}
	if cfg.Documents.ExtensionPolicy != ExtensionPolicyAny {
		t.Errorf("Documents.ExtensionPolicy = %q, want %q", cfg.Documents.ExtensionPolicy, ExtensionPolicyAny)
	}
	if cfg.Documents.Sanitize() {
		t.Error("Documents.Sanitize() = true, want false")
	}
	if cfg.RateLimit.LoginPerMinute != 20 || cfg.RateLimit.Burst != 2 {
		t.Errorf("RateLimit = %+v, want {20 2}", cfg.RateLimit)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled = false, want true")
	}
	if cfg.Metrics.Path != "/internal/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/internal/metrics")
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
server:
  http_addr: "localhost:4567"
storage:
  documents_dir: "./data"
  credentials_path: "./users.yml"
auth:
  session_secret: "`+testSecret+`"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Auth.Mode != AuthModeRequired {
		t.Errorf("Auth.Mode = %q, want %q", cfg.Auth.Mode, AuthModeRequired)
	}
	if cfg.Auth.SessionTTL != 7*24*time.Hour {
		t.Errorf("Auth.SessionTTL = %v, want %v", cfg.Auth.SessionTTL, 7*24*time.Hour)
	}
	if cfg.Auth.BcryptCost != 10 {
		t.Errorf("Auth.BcryptCost = %d, want 10", cfg.Auth.BcryptCost)
	}
	if cfg.Documents.ExtensionPolicy != ExtensionPolicyStrict {
		t.Errorf("Documents.ExtensionPolicy = %q, want %q", cfg.Documents.ExtensionPolicy, ExtensionPolicyStrict)
	}
	if !cfg.Documents.Sanitize() {
		t.Error("Documents.Sanitize() = false, want true by default")
	}
	if cfg.Documents.RenderCacheEntries != 256 || cfg.Documents.RenderCacheTTL != 10*time.Minute {
		t.Errorf("render cache = %d/%v, want 256/10m", cfg.Documents.RenderCacheEntries, cfg.Documents.RenderCacheTTL)
	}
	if cfg.Database.Path != ":memory:" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, ":memory:")
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v, want {info text}", cfg.Logging)
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "folio.toml", `
[server]
http_addr = "localhost:9000"

[storage]
documents_dir = "./docs"
credentials_path = "./users.yml"

[auth]
session_secret = "`+testSecret+`"
session_ttl = "30m"

[documents]
extension_policy = "any"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "localhost:9000" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "localhost:9000")
	}
	if cfg.Storage.DocumentsDir != "./docs" {
		t.Errorf("Storage.DocumentsDir = %q, want %q", cfg.Storage.DocumentsDir, "./docs")
	}
	if cfg.Auth.SessionTTL != 30*time.Minute {
		t.Errorf("Auth.SessionTTL = %v, want %v", cfg.Auth.SessionTTL, 30*time.Minute)
	}
	if cfg.Documents.ExtensionPolicy != ExtensionPolicyAny {
		t.Errorf("Documents.ExtensionPolicy = %q, want %q", cfg.Documents.ExtensionPolicy, ExtensionPolicyAny)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_FOLIO_SECRET", testSecret)
	t.Setenv("TEST_FOLIO_DATA", "/srv/folio/data")

	configPath := writeConfig(t, "config.yaml", `
server:
  http_addr: "localhost:4567"
storage:
  documents_dir: "${TEST_FOLIO_DATA}"
  credentials_path: "./users.yml"
auth:
  session_secret: "${TEST_FOLIO_SECRET}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Auth.SessionSecret != testSecret {
		t.Errorf("Auth.SessionSecret = %q, want %q", cfg.Auth.SessionSecret, testSecret)
	}
	if cfg.Storage.DocumentsDir != "/srv/folio/data" {
		t.Errorf("Storage.DocumentsDir = %q, want %q", cfg.Storage.DocumentsDir, "/srv/folio/data")
	}
}

func TestLoad_EnvVarExpansion_UnsetVar(t *testing.T) {
	os.Unsetenv("TEST_FOLIO_UNSET_SECRET")

	configPath := writeConfig(t, "config.yaml", `
server:
  http_addr: "localhost:4567"
storage:
  documents_dir: "./data"
  credentials_path: "./users.yml"
auth:
  session_secret: "${TEST_FOLIO_UNSET_SECRET}"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for empty session secret, got nil")
	}
	if !strings.Contains(err.Error(), "auth.session_secret") {
		t.Errorf("Load() error = %q, want mention of auth.session_secret", err.Error())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
server:
  http_addr: [unclosed
`)

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
server:
  http_addr: "localhost:4567"
storage:
  documents_dir: "./data"
  credentials_path: "./users.yml"
auth:
  session_secret: "`+testSecret+`"
  session_ttl: "a week"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid duration, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*Config)
		wantErrSubstr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:          "missing http_addr",
			mutate:        func(c *Config) { c.Server.HTTPAddr = "" },
			wantErrSubstr: "server.http_addr is required",
		},
		{
			name:          "missing documents dir",
			mutate:        func(c *Config) { c.Storage.DocumentsDir = "" },
			wantErrSubstr: "storage.documents_dir is required",
		},
		{
			name:          "missing credentials path",
			mutate:        func(c *Config) { c.Storage.CredentialsPath = "" },
			wantErrSubstr: "storage.credentials_path is required",
		},
		{
			name:          "unknown auth mode",
			mutate:        func(c *Config) { c.Auth.Mode = "sometimes" },
			wantErrSubstr: "auth.mode",
		},
		{
			name:          "short session secret",
			mutate:        func(c *Config) { c.Auth.SessionSecret = "too-short" },
			wantErrSubstr: "auth.session_secret must be at least 32 bytes",
		},
		{
			name:          "negative render cache",
			mutate:        func(c *Config) { c.Documents.RenderCacheEntries = -1 },
			wantErrSubstr: "render cache",
		},
		{
			name:          "negative session ttl",
			mutate:        func(c *Config) { c.Auth.SessionTTL = -time.Hour },
			wantErrSubstr: "auth durations must not be negative",
		},
		{
			name:          "bcrypt cost out of range",
			mutate:        func(c *Config) { c.Auth.BcryptCost = 40 },
			wantErrSubstr: "auth.bcrypt_cost",
		},
		{
			name:          "unknown extension policy",
			mutate:        func(c *Config) { c.Documents.ExtensionPolicy = "loose" },
			wantErrSubstr: "documents.extension_policy",
		},
		{
			name:          "negative rate limit",
			mutate:        func(c *Config) { c.RateLimit.Burst = -1 },
			wantErrSubstr: "rate_limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErrSubstr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Errorf("Validate() expected error containing %q, got nil", tt.wantErrSubstr)
				return
			}
			if !strings.Contains(err.Error(), tt.wantErrSubstr) {
				t.Errorf("Validate() error = %q, want error containing %q", err.Error(), tt.wantErrSubstr)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("FOO", "bar")
	t.Setenv("BAZ", "qux")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "single env var", input: "${FOO}", expected: "bar"},
		{name: "env var with surrounding text", input: "prefix-${FOO}-suffix", expected: "prefix-bar-suffix"},
		{name: "multiple env vars", input: "${FOO}/${BAZ}", expected: "bar/qux"},
		{name: "no env vars", input: "no-vars-here", expected: "no-vars-here"},
		{name: "unset env var", input: "${UNSET_VAR}", expected: ""},
		{name: "empty string", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandEnvVars(tt.input)
			if result != tt.expected {
				t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestValidate_TailscaleConfig(t *testing.T) {
	tests := []struct {
		name          string
		server        ServerConfig
		tailscale     TailscaleConfig
		wantErrSubstr string
	}{
		{
			name:      "tailscale enabled allows empty server address",
			tailscale: TailscaleConfig{Enabled: true, Hostname: "folio"},
		},
		{
			name:          "tailscale enabled requires hostname",
			tailscale:     TailscaleConfig{Enabled: true},
			wantErrSubstr: "tailscale.hostname is required",
		},
		{
			name:          "tailscale disabled requires server address",
			tailscale:     TailscaleConfig{Enabled: false, Hostname: "folio"},
			wantErrSubstr: "server.http_addr is required",
		},
		{
			name: "tailscale with all options set",
			tailscale: TailscaleConfig{
				Enabled:   true,
				Hostname:  "folio",
				AuthKey:   "tskey-auth-xxx",
				StateDir:  "/tmp/ts-state",
				Ephemeral: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Server = tt.server
			cfg.Tailscale = tt.tailscale
			err := cfg.Validate()
			if tt.wantErrSubstr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Errorf("Validate() expected error containing %q, got nil", tt.wantErrSubstr)
				return
			}
			if !strings.Contains(err.Error(), tt.wantErrSubstr) {
				t.Errorf("Validate() error = %q, want error containing %q", err.Error(), tt.wantErrSubstr)
			}
		})
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv("FOLIO_CONFIG", "/etc/folio/from-env.yaml")
	t.Setenv("XDG_CONFIG_HOME", "/home/test/.config")

	if got := ResolvePath("/explicit.toml"); got != "/explicit.toml" {
		t.Errorf("ResolvePath(explicit) = %q, want %q", got, "/explicit.toml")
	}
	if got := ResolvePath(""); got != "/etc/folio/from-env.yaml" {
		t.Errorf("ResolvePath(env) = %q, want %q", got, "/etc/folio/from-env.yaml")
	}

	t.Setenv("FOLIO_CONFIG", "")
	want := filepath.Join("/home/test/.config", "folio", "folio.yaml")
	if got := ResolvePath(""); got != want {
		t.Errorf("ResolvePath(xdg) = %q, want %q", got, want)
	}
}
