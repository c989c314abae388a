package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ":3000", cfg.Addr())
	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, "bc-rules.json", cfg.Storage.SnapshotPath)
	assert.Empty(t, cfg.Storage.DatabasePath)
	assert.Equal(t, 30*time.Second, cfg.Stream.KeepAlive)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bc-mcp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 8080
  env: production
storage:
  database_path: /var/lib/bc-mcp/rules.db
stream:
  keep_alive: 15s
log:
  level: debug
  format: json
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "production", cfg.Server.Env)
	assert.Equal(t, "/var/lib/bc-mcp/rules.db", cfg.Storage.DatabasePath)
	assert.Equal(t, "bc-rules.json", cfg.Storage.SnapshotPath, "unset keys keep defaults")
	assert.Equal(t, 15*time.Second, cfg.Stream.KeepAlive)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{
		"MCP_SERVER_PORT":     "4000",
		"NODE_ENV":            "production",
		"DATABASE_PATH":       "rules.db",
		"SNAPSHOT_PATH":       "out/snap.json",
		"ADMIN_USERNAME":      "root",
		"ADMIN_PASSWORD":      "hunter22",
		"LOG_LEVEL":           "warn",
		"KEEP_ALIVE_INTERVAL": "5s",
	})))

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "production", cfg.Server.Env)
	assert.Equal(t, "rules.db", cfg.Storage.DatabasePath)
	assert.Equal(t, "out/snap.json", cfg.Storage.SnapshotPath)
	assert.Equal(t, "root", cfg.Auth.AdminUsername)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 5*time.Second, cfg.Stream.KeepAlive)
	require.NoError(t, cfg.Validate())
}

func TestApplyEnvPrecedence(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{
		"PORT":            "5000",
		"MCP_SERVER_PORT": "4000",
		"APP_ENV":         "staging",
		"NODE_ENV":        "production",
	})))
	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, "staging", cfg.Server.Env)
}

func TestApplyEnvInvalid(t *testing.T) {
	assert.Error(t, Default().ApplyEnv(envMap(map[string]string{"PORT": "http"})))
	assert.Error(t, Default().ApplyEnv(envMap(map[string]string{"KEEP_ALIVE_INTERVAL": "soon"})))
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"port":          func(c *Config) { c.Server.Port = 70000 },
		"snapshot":      func(c *Config) { c.Storage.SnapshotPath = "" },
		"keep alive":    func(c *Config) { c.Stream.KeepAlive = 0 },
		"write timeout": func(c *Config) { c.Stream.WriteTimeout = -time.Second },
		"rate":          func(c *Config) { c.Stream.ToolCallRate = -1 },
		"token ttl":     func(c *Config) { c.Auth.TokenTTL = 0 },
		"half admin":    func(c *Config) { c.Auth.AdminUsername = "root" },
		"log level":     func(c *Config) { c.Log.Level = "loud" },
		"log format":    func(c *Config) { c.Log.Format = "xml" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)
}
