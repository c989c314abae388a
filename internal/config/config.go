// Package config loads service settings from an optional YAML file and
// environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Stream  StreamConfig  `yaml:"stream"`
	Auth    AuthConfig    `yaml:"auth"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port int `yaml:"port"`
	// Env is reported by /health, e.g. development or production.
	Env               string        `yaml:"env"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig locates persistent state.
type StorageConfig struct {
	// DatabasePath is the SQLite file. Empty means an in-memory database
	// and a disabled live-store tier.
	DatabasePath string `yaml:"database_path"`
	SnapshotPath string `yaml:"snapshot_path"`
}

// StreamConfig tunes delivery sessions.
type StreamConfig struct {
	KeepAlive     time.Duration `yaml:"keep_alive"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	ToolCallRate  float64       `yaml:"tool_call_rate"`
	ToolCallBurst int           `yaml:"tool_call_burst"`
}

// AuthConfig configures accounts and login tokens.
type AuthConfig struct {
	AdminUsername string        `yaml:"admin_username"`
	AdminPassword string        `yaml:"admin_password"`
	AdminEmail    string        `yaml:"admin_email"`
	TokenTTL      time.Duration `yaml:"token_ttl"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a Config with every default filled in.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              3000,
			Env:               "development",
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Storage: StorageConfig{
			SnapshotPath: "bc-rules.json",
		},
		Stream: StreamConfig{
			KeepAlive:     30 * time.Second,
			WriteTimeout:  10 * time.Second,
			ToolCallRate:  10,
			ToolCallBurst: 20,
		},
		Auth: AuthConfig{
			AdminEmail: "admin@example.com",
			TokenTTL:   24 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults, when path is non-empty, then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
// PORT wins over MCP_SERVER_PORT; APP_ENV wins over NODE_ENV.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := lookup(k); ok && v != "" {
				*dst = v
				return
			}
		}
	}

	for _, k := range []string{"PORT", "MCP_SERVER_PORT"} {
		v, ok := lookup(k)
		if !ok || v == "" {
			continue
		}
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid port %q", k, v)
		}
		c.Server.Port = port
		break
	}

	str(&c.Server.Env, "APP_ENV", "NODE_ENV")
	str(&c.Storage.DatabasePath, "DATABASE_PATH")
	str(&c.Storage.SnapshotPath, "SNAPSHOT_PATH")
	str(&c.Auth.AdminUsername, "ADMIN_USERNAME")
	str(&c.Auth.AdminPassword, "ADMIN_PASSWORD")
	str(&c.Auth.AdminEmail, "ADMIN_EMAIL")
	str(&c.Log.Level, "LOG_LEVEL")
	str(&c.Log.Format, "LOG_FORMAT")

	if v, ok := lookup("KEEP_ALIVE_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("KEEP_ALIVE_INTERVAL: %w", err)
		}
		c.Stream.KeepAlive = d
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Storage.SnapshotPath == "" {
		return fmt.Errorf("storage.snapshot_path is required")
	}
	if c.Stream.KeepAlive <= 0 {
		return fmt.Errorf("stream.keep_alive must be positive")
	}
	if c.Stream.WriteTimeout <= 0 {
		return fmt.Errorf("stream.write_timeout must be positive")
	}
	if c.Stream.ToolCallRate < 0 {
		return fmt.Errorf("stream.tool_call_rate must not be negative")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if (c.Auth.AdminUsername == "") != (c.Auth.AdminPassword == "") {
		return fmt.Errorf("auth.admin_username and auth.admin_password must be set together")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Server.Port)
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}
