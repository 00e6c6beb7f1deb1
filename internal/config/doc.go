// Package config handles configuration loading for airway-api.
//
// # Configuration File
//
// Locations, first match wins:
//
//  1. --config flag
//  2. Path from AIRWAY_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/airway/config.yaml (default ~/.config/airway/config.yaml)
//
// A missing file at the default location is not an error: Default() is used.
// Files ending in .toml are read as TOML, anything else as YAML. Keys absent
// from the file keep their default values.
//
// # Environment Variable Expansion
//
//	auth:
//	  jwt_secret: "${AIRWAY_JWT_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Configuration Sections
//
//	server:
//	  http_addr: "0.0.0.0:8000"
//	  grpc_addr: ""                # set to serve grpc.health.v1
//	  read_header_timeout: "10s"
//	  shutdown_timeout: "5s"
//	  timezone: "Local"            # decides what "today" is for the overview
//	  max_body_bytes: 1048576
//
//	database:
//	  backend: "memory"            # memory, sqlite
//	  driver: "sqlite"             # sqlite (pure Go), sqlite3 (cgo)
//	  path: ":memory:"
//
//	auth:
//	  jwt_secret: ""               # empty leaves write routes open
//
//	cors:
//	  allowed_origins: ["*"]
//	  allow_credentials: true
//
//	idempotency:
//	  ttl: "24h"
//	  max_entries: 10000
//
//	tailscale:
//	  enabled: false
//	  hostname: "airway"
//	  auth_key: "${TS_AUTHKEY}"
//	  https: false
//	  funnel: false
//
//	logging:
//	  level: "info"                # debug, info, warn, error
//	  format: "text"               # text, json
package config
