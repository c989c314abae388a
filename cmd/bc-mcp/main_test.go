package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanachterjacob/BC-MCP/internal/auth"
	"github.com/vanachterjacob/BC-MCP/internal/models"
	"github.com/vanachterjacob/BC-MCP/internal/resolver"
	"github.com/vanachterjacob/BC-MCP/internal/storage"
)

// isolateEnv clears the variables config.Load reads from the host.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "MCP_SERVER_PORT", "APP_ENV", "NODE_ENV", "DATABASE_PATH", "SNAPSHOT_PATH",
		"ADMIN_USERNAME", "ADMIN_PASSWORD", "ADMIN_EMAIL", "LOG_LEVEL", "LOG_FORMAT", "KEEP_ALIVE_INTERVAL",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestNewAppInMemorySeedsSamples(t *testing.T) {
	isolateEnv(t)
	t.Setenv("SNAPSHOT_PATH", filepath.Join(t.TempDir(), "bc-rules.json"))
	t.Setenv("ADMIN_USERNAME", "admin")
	t.Setenv("ADMIN_PASSWORD", "admin123")

	ctx := context.Background()
	a, err := newApp(ctx, "", io.Discard)
	require.NoError(t, err)
	defer a.Close()

	assert.True(t, a.db.InMemory())
	assert.Nil(t, a.resolver.Store, "ephemeral database must not feed the resolver")

	n, err := a.db.Rules().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, tier := a.resolver.ResolveTier(ctx)
	assert.Equal(t, resolver.TierDefault, tier)

	_, err = a.db.Users().GetByUsername(ctx, "admin")
	assert.ErrorIs(t, err, storage.ErrNotFound, "newApp itself creates no accounts")

	require.NoError(t, a.bootstrapAdmin(ctx))
	admin, err := a.db.Users().GetByUsername(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.True(t, auth.CheckPassword(admin.PasswordHash, "admin123"))

	// a second bootstrap leaves the existing account alone
	require.NoError(t, a.bootstrapAdmin(ctx))
	users, err := a.db.Users().List(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestNewAppFileDatabaseFeedsResolver(t *testing.T) {
	isolateEnv(t)
	dir := t.TempDir()
	cfg := writeConfig(t, "storage:\n  database_path: "+filepath.Join(dir, "rules.db")+
		"\n  snapshot_path: "+filepath.Join(dir, "bc-rules.json")+"\n")

	a, err := newApp(context.Background(), cfg, io.Discard)
	require.NoError(t, err)
	defer a.Close()

	assert.False(t, a.db.InMemory())
	assert.NotNil(t, a.resolver.Store)

	n, err := a.db.Rules().Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "file databases are never seeded")
}

func TestNewAppRejectsBadConfig(t *testing.T) {
	isolateEnv(t)
	t.Setenv("LOG_LEVEL", "loud")
	_, err := newApp(context.Background(), "", io.Discard)
	assert.Error(t, err)
}

func TestRegenerateCommand(t *testing.T) {
	isolateEnv(t)
	snap := filepath.Join(t.TempDir(), "out", "bc-rules.json")
	cfg := writeConfig(t, "storage:\n  snapshot_path: "+snap+"\nlog:\n  level: error\n")

	rootCmd.SetArgs([]string{"regenerate", "--config", cfg})
	require.NoError(t, rootCmd.Execute())

	data, err := os.ReadFile(snap)
	require.NoError(t, err)
	var doc struct {
		BusinessCentralRules models.RulePayload `json:"businessCentralRules"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, resolver.Default(), doc.BusinessCentralRules)
}

func TestRegenerateSkipsAdminBootstrap(t *testing.T) {
	isolateEnv(t)
	t.Setenv("ADMIN_USERNAME", "admin")
	t.Setenv("ADMIN_PASSWORD", "admin123")
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "rules.db")
	cfg := writeConfig(t, "storage:\n  database_path: "+dbPath+
		"\n  snapshot_path: "+filepath.Join(dir, "bc-rules.json")+"\nlog:\n  level: error\n")

	rootCmd.SetArgs([]string{"regenerate", "--config", cfg})
	require.NoError(t, rootCmd.Execute())

	db, err := storage.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()
	users, err := db.Users().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	t.Cleanup(func() { rootCmd.SetOut(nil) })
	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, version+"\n", out.String())
}
