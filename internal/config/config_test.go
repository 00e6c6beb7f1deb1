// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, defaults, env var expansion, and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, BackendMemory, cfg.Database.Backend)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.CORS.AllowCredentials)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Empty(t, cfg.Server.GRPCAddr)
	assert.Empty(t, cfg.Auth.JWTSecret)
}

func TestLoad_ValidYAML(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
server:
  http_addr: "127.0.0.1:9000"
  grpc_addr: "127.0.0.1:9001"
  read_header_timeout: "3s"
  shutdown_timeout: "15s"
  timezone: "UTC"
  max_body_bytes: 4096

database:
  backend: "sqlite"
  driver: "sqlite3"
  path: "/var/lib/airway/airway.db"

cors:
  allowed_origins:
    - "https://app.example.com"
  allow_credentials: false

idempotency:
  ttl: "1h"
  max_entries: 50

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "127.0.0.1:9000" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "127.0.0.1:9000")
	}
	if cfg.Server.GRPCAddr != "127.0.0.1:9001" {
		t.Errorf("Server.GRPCAddr = %q, want %q", cfg.Server.GRPCAddr, "127.0.0.1:9001")
	}
	assert.Equal(t, 3*time.Second, cfg.Server.ReadHeaderTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, int64(4096), cfg.Server.MaxBodyBytes)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	assert.Equal(t, BackendSQLite, cfg.Database.Backend)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "/var/lib/airway/airway.db", cfg.Database.Path)

	assert.Equal(t, []string{"https://app.example.com"}, cfg.CORS.AllowedOrigins)
	assert.False(t, cfg.CORS.AllowCredentials)

	assert.Equal(t, time.Hour, cfg.Idempotency.TTL)
	assert.Equal(t, 50, cfg.Idempotency.MaxEntries)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
logging:
  level: "warn"
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, def.Server.HTTPAddr, cfg.Server.HTTPAddr)
	assert.Equal(t, def.Server.ShutdownTimeout, cfg.Server.ShutdownTimeout)
	assert.Equal(t, def.Idempotency.TTL, cfg.Idempotency.TTL)
	assert.Equal(t, def.Database, cfg.Database)
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "config.toml", `
[server]
http_addr = "0.0.0.0:8080"
shutdown_timeout = "2s"

[database]
backend = "sqlite"
path = "./airway.db"

[auth]
jwt_secret = "0123456789abcdef0123456789abcdef"

[logging]
format = "json"
`)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.HTTPAddr)
	assert.Equal(t, 2*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, BackendSQLite, cfg.Database.Backend)
	assert.Equal(t, "sqlite", cfg.Database.Driver, "driver keeps its default")
	assert.Equal(t, "./airway.db", cfg.Database.Path)
	assert.Len(t, cfg.Auth.JWTSecret, 32)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_AIRWAY_SECRET", "env-secret-env-secret-env-secret")
	t.Setenv("TEST_AIRWAY_ADDR", "0.0.0.0:7000")

	configPath := writeConfig(t, "config.yaml", `
server:
  http_addr: "${TEST_AIRWAY_ADDR}"
auth:
  jwt_secret: "${TEST_AIRWAY_SECRET}"
tailscale:
  auth_key: "${TEST_AIRWAY_UNSET_VAR}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:7000" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:7000")
	}
	if cfg.Auth.JWTSecret != "env-secret-env-secret-env-secret" {
		t.Errorf("Auth.JWTSecret = %q, want expanded value", cfg.Auth.JWTSecret)
	}
	if cfg.Tailscale.AuthKey != "" {
		t.Errorf("Tailscale.AuthKey = %q, want empty string for unset var", cfg.Tailscale.AuthKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() should return error for missing file")
	}
}

func TestLoad_InvalidSyntax(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"yaml", "config.yaml", "server:\n  http_addr: [unclosed\n"},
		{"toml", "config.toml", "[server\nhttp_addr = 1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "parsing config file")
		})
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"read_header_timeout", "server:\n  read_header_timeout: \"soon\"\n", "server.read_header_timeout"},
		{"shutdown_timeout", "server:\n  shutdown_timeout: \"5\"\n", "server.shutdown_timeout"},
		{"idempotency ttl", "idempotency:\n  ttl: \"a day\"\n", "idempotency.ttl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "config.yaml", tt.content))
			if err == nil {
				t.Fatal("Load() should return error for invalid duration")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q should mention %s", err, tt.field)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"missing http addr", func(c *Config) { c.Server.HTTPAddr = "" }, "server.http_addr"},
		{"tailscale replaces http addr", func(c *Config) { c.Server.HTTPAddr = ""; c.Tailscale.Enabled = true }, ""},
		{"tailscale without hostname", func(c *Config) { c.Tailscale.Enabled = true; c.Tailscale.Hostname = "" }, "tailscale.hostname"},
		{"zero body limit", func(c *Config) { c.Server.MaxBodyBytes = 0 }, "server.max_body_bytes"},
		{"bad timezone", func(c *Config) { c.Server.Timezone = "Mars/Olympus_Mons" }, "server.timezone"},
		{"unknown backend", func(c *Config) { c.Database.Backend = "postgres" }, "database.backend"},
		{"unknown driver", func(c *Config) { c.Database.Backend = BackendSQLite; c.Database.Driver = "pgx" }, "database.driver"},
		{"sqlite without path", func(c *Config) { c.Database.Backend = BackendSQLite; c.Database.Path = "" }, "database.path"},
		{"driver ignored for memory", func(c *Config) { c.Database.Driver = "pgx" }, ""},
		{"short jwt secret", func(c *Config) { c.Auth.JWTSecret = "short" }, "auth.jwt_secret"},
		{"zero idempotency entries", func(c *Config) { c.Idempotency.MaxEntries = 0 }, "idempotency.max_entries"},
		{"zero idempotency ttl", func(c *Config) { c.Idempotency.TTL = 0 }, "idempotency.ttl"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"uppercase log level", func(c *Config) { c.Logging.Level = "DEBUG" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolvePath(t *testing.T) {
	t.Run("flag wins", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "/from/env.yaml")
		path, explicit := ResolvePath("/from/flag.yaml")
		assert.Equal(t, "/from/flag.yaml", path)
		assert.True(t, explicit)
	})

	t.Run("env before default", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "/from/env.yaml")
		path, explicit := ResolvePath("")
		assert.Equal(t, "/from/env.yaml", path)
		assert.True(t, explicit)
	})

	t.Run("xdg default", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "")
		t.Setenv("XDG_CONFIG_HOME", "/xdg")
		path, explicit := ResolvePath("")
		assert.Equal(t, filepath.Join("/xdg", "airway", "config.yaml"), path)
		assert.False(t, explicit)
	})
}

func TestLoadOrDefault(t *testing.T) {
	t.Run("missing default file uses defaults", func(t *testing.T) {
		t.Setenv(EnvConfigPath, "")
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())

		cfg, path, err := LoadOrDefault("")
		require.NoError(t, err)
		assert.Empty(t, path)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("missing explicit file fails", func(t *testing.T) {
		_, _, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("default file is loaded", func(t *testing.T) {
		xdg := t.TempDir()
		t.Setenv(EnvConfigPath, "")
		t.Setenv("XDG_CONFIG_HOME", xdg)
		require.NoError(t, os.MkdirAll(filepath.Join(xdg, "airway"), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(xdg, "airway", "config.yaml"),
			[]byte("logging:\n  level: error\n"), 0644))

		cfg, path, err := LoadOrDefault("")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(xdg, "airway", "config.yaml"), path)
		assert.Equal(t, "error", cfg.Logging.Level)
	})
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR_ONE", "value1")
	t.Setenv("TEST_VAR_TWO", "value2")

	tests := []struct {
		input string
		want  string
	}{
		{"${TEST_VAR_ONE}", "value1"},
		{"prefix-${TEST_VAR_ONE}-suffix", "prefix-value1-suffix"},
		{"${TEST_VAR_ONE} and ${TEST_VAR_TWO}", "value1 and value2"},
		{"${TEST_UNSET_VAR_XYZ}", ""},
		{"no vars here", "no vars here"},
		{"$TEST_VAR_ONE", "$TEST_VAR_ONE"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := expandEnvVars(tt.input); got != tt.want {
				t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
