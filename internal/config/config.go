// ABOUTME: Configuration loading and parsing for airway-api
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/2389/airway-api/internal/auth"
)

// EnvConfigPath names the environment variable consulted when no --config flag is given.
const EnvConfigPath = "AIRWAY_CONFIG"

// Storage backends
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Config represents the complete airway-api configuration
type Config struct {
	Server      ServerConfig      `yaml:"server" toml:"server"`
	Tailscale   TailscaleConfig   `yaml:"tailscale" toml:"tailscale"`
	Database    DatabaseConfig    `yaml:"database" toml:"database"`
	Auth        AuthConfig        `yaml:"auth" toml:"auth"`
	CORS        CORSConfig        `yaml:"cors" toml:"cors"`
	Idempotency IdempotencyConfig `yaml:"idempotency" toml:"idempotency"`
	Logging     LoggingConfig     `yaml:"logging" toml:"logging"`
}

// ServerConfig holds listener and request handling configuration
type ServerConfig struct {
	HTTPAddr     string `yaml:"http_addr" toml:"http_addr"`
	GRPCAddr     string `yaml:"grpc_addr" toml:"grpc_addr"` // empty disables the gRPC health server
	Timezone     string `yaml:"timezone" toml:"timezone"`   // IANA name or "Local"
	MaxBodyBytes int64  `yaml:"max_body_bytes" toml:"max_body_bytes"`

	ReadHeaderTimeout time.Duration `yaml:"-" toml:"-"`
	ShutdownTimeout   time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	ReadHeaderTimeoutRaw string `yaml:"read_header_timeout" toml:"read_header_timeout"`
	ShutdownTimeoutRaw   string `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https" toml:"https"`   // serve on :443 with a tailnet certificate
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // expose publicly via Funnel (implies HTTPS)
}

// DatabaseConfig selects and configures the record store
type DatabaseConfig struct {
	Backend string `yaml:"backend" toml:"backend"` // memory | sqlite
	Driver  string `yaml:"driver" toml:"driver"`   // sqlite (modernc) | sqlite3 (mattn)
	Path    string `yaml:"path" toml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"` // empty disables auth
}

// CORSConfig holds cross-origin configuration
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins" toml:"allowed_origins"`
	AllowCredentials bool     `yaml:"allow_credentials" toml:"allow_credentials"`
}

// IdempotencyConfig controls replay of POST responses keyed by Idempotency-Key
type IdempotencyConfig struct {
	MaxEntries int           `yaml:"max_entries" toml:"max_entries"`
	TTL        time.Duration `yaml:"-" toml:"-"`
	TTLRaw     string        `yaml:"ttl" toml:"ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // text | json
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:             "0.0.0.0:8000",
			Timezone:             "Local",
			MaxBodyBytes:         1 << 20,
			ReadHeaderTimeout:    10 * time.Second,
			ShutdownTimeout:      5 * time.Second,
			ReadHeaderTimeoutRaw: "10s",
			ShutdownTimeoutRaw:   "5s",
		},
		Tailscale: TailscaleConfig{
			Hostname: "airway",
		},
		Database: DatabaseConfig{
			Backend: BackendMemory,
			Driver:  "sqlite",
			Path:    ":memory:",
		},
		CORS: CORSConfig{
			AllowedOrigins:   []string{"*"},
			AllowCredentials: true,
		},
		Idempotency: IdempotencyConfig{
			MaxEntries: 10_000,
			TTL:        24 * time.Hour,
			TTLRaw:     "24h",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, everything else as YAML. Values
// missing from the file keep their Default. Environment variables in the
// format ${VAR_NAME} are expanded before decoding.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// ResolvePath picks the configuration file: the flag value, then
// $AIRWAY_CONFIG, then the XDG default. explicit reports whether the path was
// requested by the user rather than defaulted.
func ResolvePath(flagPath string) (path string, explicit bool) {
	if flagPath != "" {
		return flagPath, true
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env, true
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", false
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "airway", "config.yaml"), false
}

// LoadOrDefault loads the file chosen by ResolvePath. A missing default file
// yields Default(); a missing explicit file is an error.
func LoadOrDefault(flagPath string) (*Config, string, error) {
	path, explicit := ResolvePath(flagPath)
	if path == "" {
		return Default(), "", nil
	}

	cfg, err := Load(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Default(), "", nil
		}
		return nil, path, err
	}
	return cfg, path, nil
}

// envVarPattern matches ${VAR_NAME}
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// Location returns the timezone used to decide what "today" is.
func (c *Config) Location() (*time.Location, error) {
	switch c.Server.Timezone {
	case "", "Local":
		return time.Local, nil
	default:
		return time.LoadLocation(c.Server.Timezone)
	}
}

var (
	validBackends = []string{BackendMemory, BackendSQLite}
	validDrivers  = []string{"sqlite", "sqlite3"}
	validLevels   = []string{"debug", "info", "warn", "error"}
	validFormats  = []string{"text", "json"}
)

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

	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("server.timezone %q: %w", c.Server.Timezone, err)
	}

	if !slices.Contains(validBackends, c.Database.Backend) {
		return fmt.Errorf("database.backend must be one of %v, got %q", validBackends, c.Database.Backend)
	}
	if c.Database.Backend == BackendSQLite {
		if !slices.Contains(validDrivers, c.Database.Driver) {
			return fmt.Errorf("database.driver must be one of %v, got %q", validDrivers, c.Database.Driver)
		}
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite backend")
		}
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < auth.MinSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", auth.MinSecretLength)
	}

	if c.Idempotency.MaxEntries <= 0 {
		return fmt.Errorf("idempotency.max_entries must be positive")
	}
	if c.Idempotency.TTL <= 0 {
		return fmt.Errorf("idempotency.ttl must be positive")
	}

	if !slices.Contains(validLevels, strings.ToLower(c.Logging.Level)) {
		return fmt.Errorf("logging.level must be one of %v, got %q", validLevels, c.Logging.Level)
	}
	if !slices.Contains(validFormats, strings.ToLower(c.Logging.Format)) {
		return fmt.Errorf("logging.format must be one of %v, got %q", validFormats, c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.read_header_timeout", cfg.Server.ReadHeaderTimeoutRaw, &cfg.Server.ReadHeaderTimeout},
		{"server.shutdown_timeout", cfg.Server.ShutdownTimeoutRaw, &cfg.Server.ShutdownTimeout},
		{"idempotency.ttl", cfg.Idempotency.TTLRaw, &cfg.Idempotency.TTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
