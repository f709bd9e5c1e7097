// Package config handles configuration loading for folio.
//
// # Overview
//
// Configuration is loaded from YAML or TOML files with environment variable
// expansion. The package provides validation and sensible defaults.
//
// # Configuration File
//
// Locations (in order):
//
//  1. Path given with --config
//  2. Path from FOLIO_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/folio/folio.yaml (or ~/.config/folio/folio.yaml)
//
// Files ending in .toml are decoded as TOML; anything else is YAML.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  session_secret: "${FOLIO_SESSION_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "localhost:4567"
//
//	storage:
//	  documents_dir: "/var/lib/folio/data"
//	  credentials_path: "/var/lib/folio/users.yml"
//
//	database:
//	  path: "/var/lib/folio/sessions.db"   # ":memory:" keeps sessions in memory
//
//	auth:
//	  mode: "required"                      # required, disabled
//	  session_secret: "${FOLIO_SESSION_SECRET}"
//	  session_ttl: "168h"
//	  session_sweep_interval: "10m"
//	  bcrypt_cost: 10
//
//	documents:
//	  extension_policy: "strict"            # strict (.txt/.md), any
//	  sanitize_html: true
//
//	rate_limit:
//	  login_per_minute: 10
//	  burst: 5
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
//	tailscale:
//	  enabled: false
//	  hostname: "folio"
//	  auth_key: "${TS_AUTHKEY}"
//
// # Validation
//
// Load() validates:
//
//   - Session secret minimum length (32 bytes)
//   - Duration format validity
//   - Auth mode and extension policy values
//   - Storage locations are present
//
// # Usage
//
//	cfg, err := config.Load(config.ResolvePath(flagPath))
//	if err != nil {
//	    return err
//	}
package config
