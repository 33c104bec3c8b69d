package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/weft/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte(`
capacity: 50
history: true
history_limit: "8"
log_level: debug
diagnostics:
  addr: 127.0.0.1:9470
redis:
  addr: localhost:6379
  db: 2
  ttl: 90m
pump:
  workers: 2
`))
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Capacity)
	assert.Equal(t, config.Default().Shards, cfg.Shards, "unset keys keep their default")
	assert.True(t, cfg.History)
	assert.Equal(t, 8, cfg.HistoryLimit, "numbers may be quoted")
	assert.Equal(t, 8, cfg.HistoryDepth())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:9470", cfg.Diagnostics.Addr)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, 90*time.Minute, cfg.Redis.TTL)
	assert.Equal(t, "weft:history:", cfg.Redis.Prefix)
	assert.Equal(t, 2, cfg.Pump.Workers)
	assert.Equal(t, 1024, cfg.Pump.Backlog)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := config.Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, 0, cfg.HistoryDepth(), "history is off by default")
}

func TestParse_JSON(t *testing.T) {
	cfg, err := config.Parse([]byte(`{"capacity": 7, "redis": {"ttl": "1s"}}`))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Capacity)
	assert.Equal(t, time.Second, cfg.Redis.TTL)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"unknown key", "capacityy: 3", "capacityy"},
		{"bad yaml", "capacity: [", "failed to parse config"},
		{"bad duration", "redis: {ttl: soon}", "failed to decode config"},
		{"negative capacity", "capacity: -1", "capacity must not be negative"},
		{"zero shards", "shards: 0", "shards must be at least 1"},
		{"history without limit", "history: true\nhistory_limit: 0", "history_limit"},
		{"log level", "log_level: loud", "unknown log level"},
		{"workers", "pump: {workers: 0}", "pump.workers"},
		{"redact pattern", "archive: {redact: ['(']}", "archive.redact"},
		{"short key", "archive: {key: c2hvcnQ=}", "must decode to 32 bytes"},
		{"key not base64", "archive: {key: '!!'}", "not valid base64"},
		{"fallback without key", "archive: {fallback_keys: [AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8=]}", "requires archive.key"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_Archive(t *testing.T) {
	cfg, err := config.Parse([]byte(`
archive:
  redact: ['\d+\.\d+\.\d+\.\d+']
  key: AAECAwQFBgcICQoLDA0ODxAREhMUFRYXGBkaGxwdHh8=
`))
	require.NoError(t, err)
	assert.Len(t, cfg.Archive.Redact, 1)

	active, fallback, err := cfg.Archive.Keys()
	require.NoError(t, err)
	assert.Len(t, active, 32)
	assert.Equal(t, byte(31), active[31])
	assert.Empty(t, fallback)
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg := config.Default()
	cfg.Capacity = -1
	cfg.Shards = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capacity")
	assert.Contains(t, err.Error(), "shards")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weft.yaml")
	require.NoError(t, os.WriteFile(path, []byte("shards: 16\n"), 0644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Shards)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
