package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/laraflow/laraflow/internal/errors"
	"github.com/laraflow/laraflow/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// =============================================================================
// Load Tests
// =============================================================================

func TestDefaults(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, DriverBadger, cfg.Storage.Driver)
	assert.Equal(t, 7, cfg.Retention.Days)
	assert.Equal(t, 100, cfg.Retention.BatchSize)
	assert.Equal(t, []string{"tasks", "lists", "projects"}, cfg.Retention.EntityTypes)
	assert.Equal(t, "0 3 * * *", cfg.Retention.Schedule)
	assert.Equal(t, []int{24}, cfg.Deadlines.DueSoonOffsets)
	assert.Equal(t, []int{1, 24}, cfg.Deadlines.OverdueOffsets)
	assert.Equal(t, "0 * * * *", cfg.Deadlines.Schedule)
	assert.Equal(t, "UTC", cfg.Deadlines.Timezone)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, []time.Duration{0, 5 * time.Second, 30 * time.Second}, cfg.HTTP.RetryDelays)
	assert.Equal(t, 5*time.Second, cfg.Daemon.KillTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileWithEnvOverride(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: sqlite
  dsn: /tmp/laraflow.db
retention:
  days: 30
  entity_types: [tasks]
deadlines:
  overdue_offsets: [2]
  timezone: Europe/Berlin
`)
	t.Setenv("LARAFLOW_RETENTION_BATCH_SIZE", "25")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "/tmp/laraflow.db", cfg.Storage.DSN)
	assert.Equal(t, 30, cfg.Retention.Days)
	assert.Equal(t, 25, cfg.Retention.BatchSize)
	assert.Equal(t, []model.EntityType{model.EntityTasks}, cfg.EntityTypes())
	assert.Equal(t, []int{2}, cfg.Deadlines.OverdueOffsets)
	assert.Equal(t, []int{24}, cfg.Deadlines.DueSoonOffsets, "missing keys keep defaults")
	assert.Equal(t, "Europe/Berlin", cfg.Location().String())
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsUserError(err))
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "retention: [oops")
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}

// =============================================================================
// Validate Tests
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative_days", func(c *Config) { c.Retention.Days = -1 }, "retention.days"},
		{"zero_batch", func(c *Config) { c.Retention.BatchSize = 0 }, "retention.batch_size"},
		{"bad_driver", func(c *Config) { c.Storage.Driver = "mysql" }, "storage.driver"},
		{"postgres_without_dsn", func(c *Config) { c.Storage.Driver = DriverPostgres }, "storage.dsn"},
		{"bad_offset", func(c *Config) { c.Deadlines.OverdueOffsets = []int{0} }, "overdue_offsets"},
		{"bad_timezone", func(c *Config) { c.Deadlines.Timezone = "Mars/Base" }, "timezone"},
		{"bad_schedule", func(c *Config) { c.Retention.Schedule = "every day" }, "retention.schedule"},
		{"bad_level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Default()
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
		})
	}
}

func TestEntityTypesKeepsUnknownNames(t *testing.T) {
	cfg := &Config{Retention: RetentionConfig{EntityTypes: []string{"task", " comments ", ""}}}
	assert.Equal(t, []model.EntityType{model.EntityTasks, "comments"}, cfg.EntityTypes())
}

func TestYAMLRedactsDSN(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)
	cfg.Storage.Driver = DriverPostgres
	cfg.Storage.DSN = "postgres://app:s3cret@db/laraflow"

	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.NotContains(t, string(out), "s3cret")
	assert.Contains(t, string(out), "timeout: 30s")
	assert.Equal(t, "postgres://app:s3cret@db/laraflow", cfg.Storage.DSN, "original is untouched")

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(out, &doc))
	assert.Contains(t, doc, "retention")
}

// =============================================================================
// Watcher Tests
// =============================================================================

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "retention:\n  days: 7\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	holder := NewHolder(cfg)

	reloaded := make(chan *Config, 1)
	w := &Watcher{
		Path:     path,
		Holder:   holder,
		Debounce: 20 * time.Millisecond,
		OnReload: func(c *Config) { reloaded <- c },
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("retention:\n  days: 14\n"), 0o600))

	select {
	case c := <-reloaded:
		assert.Equal(t, 14, c.Retention.Days)
		assert.Equal(t, 14, holder.Get().Retention.Days)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestWatcherKeepsLastGoodConfig(t *testing.T) {
	path := writeConfig(t, "retention:\n  days: 7\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	holder := NewHolder(cfg)

	w := &Watcher{Path: path, Holder: holder}
	require.NoError(t, os.WriteFile(path, []byte("retention:\n  days: -3\n"), 0o600))
	w.reload(slog.Default())

	assert.Equal(t, 7, holder.Get().Retention.Days)
}
