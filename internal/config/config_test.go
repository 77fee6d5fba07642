package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, doc map[string]any) string {
	t.Helper()
	data, err := yaml.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"database": map[string]any{"driver": "sqlite", "path": "file::memory:"},
		"save":     map[string]any{"persist_timeout": "2s", "max_attempts": 5},
	})

	cfg, err := Load("test", path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file::memory:", cfg.Database.GetDSN())
	assert.Equal(t, 2*time.Second, cfg.Save.PersistTimeout)
	assert.Equal(t, 5, cfg.Save.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Save.LookupTimeout)
	assert.Equal(t, 30*time.Minute, cfg.Save.SessionTTL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 1024, cfg.Cache.Capacity)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.InDelta(t, 5.0, cfg.RateLimit.RequestsPerSecond, 0.001)
	assert.Same(t, cfg, Get())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"server": map[string]any{"port": 9000},
	})
	t.Setenv("APP_SERVER_PORT", "9100")

	cfg, err := Load("test", path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
}

func TestLoad_InvalidDriver(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"database": map[string]any{"driver": "oracle"},
	})

	_, err := Load("test", path)
	assert.ErrorContains(t, err, "oracle")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load("test", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestGetDSN_Postgres(t *testing.T) {
	db := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", DBName: "prompts", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=prompts sslmode=disable", db.GetDSN())
}
