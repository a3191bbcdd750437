// Package config handles configuration loading for the ubwiyunge server.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// Unset values fall back to defaults, then the result is validated.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from UBWIYUNGE_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/ubwiyunge/config.yaml
//  3. ~/.config/ubwiyunge/config.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	database:
//	  dsn: "${UBWIYUNGE_DATABASE_DSN}"
//
// Syntax: ${VAR_NAME}. Unset variables expand to the empty string. The CLI
// loads a .env file before reading the config, so its values are visible here.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "0.0.0.0:3000"
//
//	tailscale:
//	  enabled: false
//	  hostname: "ubwiyunge"
//	  auth_key: "${TS_AUTHKEY}"
//	  state_dir: ""          # defaults to ~/.local/share/ubwiyunge/tailscale/<hostname>
//	  ephemeral: false
//	  funnel: false
//
//	database:
//	  driver: "sqlite"       # sqlite, sqlite3, pgx, memory
//	  path: "~/.local/share/ubwiyunge/ubwiyunge.db"
//	  dsn: ""                # pgx only
//
//	logging:
//	  level: "info"          # debug, info, warn, error
//	  format: "text"         # text, json
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
//	rate_limit:
//	  requests: 100
//	  window: "15m"
//
//	idempotency:
//	  ttl: "5m"
//	  max_entries: 100000
//
//	seed:
//	  file: "leaders.toml"
//
// # Usage
//
//	cfg, err := config.Load("/etc/ubwiyunge/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
