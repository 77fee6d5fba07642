package infra

import (
	"fmt"
	"testing"
	"time"

	"promptlib/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDatabase_SQLite(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver:      "sqlite",
		Path:        fmt.Sprintf("file:infra_%d?mode=memory&cache=shared", time.Now().UnixNano()),
		AutoMigrate: true,
		LogLevel:    "silent",
	}

	db, err := InitDatabase(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = CloseDatabase() })

	assert.Same(t, db, GetDB())
	assert.True(t, db.Migrator().HasTable("prompts"))
	assert.True(t, db.Migrator().HasTable("prompt_versions"))
	assert.NoError(t, HealthCheck())
}

func TestInitDatabase_UnknownDriver(t *testing.T) {
	_, err := InitDatabase(&config.DatabaseConfig{Driver: "oracle"})
	assert.ErrorContains(t, err, "oracle")
}

func TestNewRedisClient_Validation(t *testing.T) {
	_, _, err := newRedisClient(&config.RedisConfig{Mode: "sentinel"})
	assert.Error(t, err)

	_, _, err = newRedisClient(&config.RedisConfig{Mode: "cluster"})
	assert.Error(t, err)

	_, _, err = newRedisClient(&config.RedisConfig{Mode: "ring"})
	assert.Error(t, err)

	client, mode, err := newRedisClient(&config.RedisConfig{Host: "localhost", Port: 6379})
	require.NoError(t, err)
	assert.Equal(t, "standalone", mode)
	assert.NoError(t, client.Close())
}
