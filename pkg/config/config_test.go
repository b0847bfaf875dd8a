package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, StoragePostgres, cfg.Storage.Driver)
	assert.Equal(t, 5*time.Second, cfg.Storage.Postgres.ConnectTimeout)
	assert.True(t, cfg.Rollup.Enabled)
	assert.Equal(t, "02:00", cfg.Rollup.RunAt)
	assert.Equal(t, "America/Los_Angeles", cfg.Rollup.Timezone)
	assert.Equal(t, 60*24*time.Hour, cfg.Rollup.Retention)
	assert.Equal(t, 1000, cfg.Rollup.BatchSize)
	assert.Equal(t, DriverLocal, cfg.Rollup.Scheduler)
	assert.Equal(t, DriverLocal, cfg.Rollup.Lock)
	assert.True(t, cfg.Monitoring.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestParse_OverridesAndEnvExpansion(t *testing.T) {
	t.Setenv("CHECKIN_DB_PASSWORD", "s3cret")

	raw := []byte(`
server:
  port: 9090
storage:
  driver: postgres
  postgres:
    host: db
    password: ${CHECKIN_DB_PASSWORD}
rollup:
  enabled: false
  run_at: "23:45"
  timezone: UTC
  retention: 720h
  batch_size: 50
  scheduler: asynq
  lock: redis
logging:
  level: debug
  format: console
`)
	cfg, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db", cfg.Storage.Postgres.Host)
	assert.Equal(t, "s3cret", cfg.Storage.Postgres.Password)
	assert.Equal(t, "checkin", cfg.Storage.Postgres.Database)
	assert.False(t, cfg.Rollup.Enabled)
	assert.Equal(t, "23:45", cfg.Rollup.RunAt)
	assert.Equal(t, 30*24*time.Hour, cfg.Rollup.Retention)
	assert.Equal(t, 50, cfg.Rollup.BatchSize)
	assert.Equal(t, DriverAsynq, cfg.Rollup.Scheduler)

	loc, err := cfg.Rollup.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "bad yaml", raw: "server: [port"},
		{name: "unknown driver", raw: "storage:\n  driver: sqlite"},
		{name: "bad timezone", raw: "rollup:\n  timezone: Mars/Olympus"},
		{name: "run_at format", raw: "rollup:\n  run_at: \"2am\""},
		{name: "run_at hour", raw: "rollup:\n  run_at: \"24:00\""},
		{name: "run_at minute", raw: "rollup:\n  run_at: \"02:60\""},
		{name: "zero batch", raw: "rollup:\n  batch_size: 0"},
		{name: "negative retention", raw: "rollup:\n  retention: -1h"},
		{name: "asynq without redis lock", raw: "rollup:\n  scheduler: asynq\n  lock: local"},
		{name: "redis lock without addr", raw: "redis:\n  addr: \"\"\nrollup:\n  lock: redis"},
		{name: "mongo without uri", raw: "storage:\n  driver: mongo\n  mongo:\n    uri: \"\""},
		{name: "bad log level", raw: "logging:\n  level: verbose"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			require.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  driver: memory\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestParse_EnvironmentOverrides(t *testing.T) {
	t.Setenv("CHECKIN_ROLLUP_STORAGE_DRIVER", "memory")
	t.Setenv("CHECKIN_ROLLUP_SERVER_PORT", "9191")
	t.Setenv("CHECKIN_ROLLUP_ROLLUP_CYCLE_TIMEOUT", "5m")

	cfg, err := Parse([]byte("storage:\n  driver: postgres\n"))
	require.NoError(t, err)

	assert.Equal(t, StorageMemory, cfg.Storage.Driver, "environment wins over the file")
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Rollup.CycleTimeout)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout, "unset keys keep their defaults")
}

func TestParse_EnvironmentOverrideValidated(t *testing.T) {
	t.Setenv("CHECKIN_ROLLUP_ROLLUP_BATCH_SIZE", "0")

	_, err := Parse([]byte("{}"))
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LoggingConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = NewLogger(LoggingConfig{Level: "loud", Format: "console"})
	require.Error(t, err)
}
