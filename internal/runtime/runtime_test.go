package runtime

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laraflow/laraflow/internal/config"
	"github.com/laraflow/laraflow/internal/deadline"
	lferrors "github.com/laraflow/laraflow/internal/errors"
	"github.com/laraflow/laraflow/internal/model"
	"github.com/laraflow/laraflow/internal/output"
	"github.com/laraflow/laraflow/internal/retention"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// =============================================================================
// Config Tests
// =============================================================================

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: badger\n")

	cfg, err := LoadConfig(Options{ConfigPath: path, Driver: config.DriverSQLite, DSN: InMemory, Debug: true})
	require.NoError(t, err)
	assert.Equal(t, config.DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, InMemory, cfg.Storage.DSN)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigBadgerDSNIsPath(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: badger\n")
	cfg, err := LoadConfig(Options{ConfigPath: path, DSN: "/tmp/db"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/db", cfg.Storage.Path)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: oracle\n")
	_, err := LoadConfig(Options{ConfigPath: path})
	require.Error(t, err)
	assert.True(t, lferrors.IsUserError(err))
}

// =============================================================================
// Store Tests
// =============================================================================

func TestOpenStoreDrivers(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name string
		sc   config.StorageConfig
	}{
		{"badger_memory", config.StorageConfig{Driver: config.DriverBadger, Path: InMemory}},
		{"badger_disk", config.StorageConfig{Driver: config.DriverBadger, Path: filepath.Join(dir, "badger")}},
		{"sqlite_memory", config.StorageConfig{Driver: config.DriverSQLite, DSN: InMemory}},
		{"sqlite_file", config.StorageConfig{Driver: config.DriverSQLite, DSN: filepath.Join(dir, "nested", "lf.db")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := OpenStore(ctx, tt.sc)
			require.NoError(t, err)
			defer s.Close()

			require.NoError(t, s.Ping(ctx))
			u := model.NewUser("Ada", "ada@example.com")
			require.NoError(t, s.CreateUser(ctx, u))
		})
	}
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), config.StorageConfig{Driver: "oracle"})
	require.Error(t, err)
	assert.True(t, lferrors.IsUserError(err))
}

func TestOpenStorePostgresWithoutDSN(t *testing.T) {
	_, err := OpenStore(context.Background(), config.StorageConfig{Driver: config.DriverPostgres})
	require.Error(t, err)
	assert.True(t, errors.Is(err, lferrors.ErrStoreUnavailable) || lferrors.IsUserError(err))
}

// =============================================================================
// Context Tests
// =============================================================================

func TestNewWithConfigWiresJobs(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Storage.Path = InMemory

	rc, err := NewWithConfig(context.Background(), cfg, Options{Format: output.FormatJSON, ColorMode: output.ColorNever})
	require.NoError(t, err)
	defer rc.Close()

	assert.True(t, rc.IsJSON())
	assert.False(t, rc.IsCLI())

	fixed := time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)
	rc.Now = func() time.Time { return fixed }

	report, err := rc.Sweeper().Run(context.Background(), retentionOpts(cfg))
	require.NoError(t, err)
	assert.Equal(t, fixed.AddDate(0, 0, -7), report.Cutoff)

	dr, err := rc.Notifier().Run(context.Background(), deadlineOpts(cfg))
	require.NoError(t, err)
	assert.Equal(t, fixed, dr.Now)
	assert.Equal(t, 0, rc.Dispatcher().CountEnabledWebhooks(context.Background()))
}

func TestNewWithoutStoreLeavesStoreClosed(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Deadlines.Timezone = "Europe/Berlin"

	cfg.Storage.Path = InMemory

	rc := NewWithoutStore(cfg, Options{Format: output.FormatPlain})
	assert.Nil(t, rc.Store)
	assert.NoError(t, rc.Close())
	assert.Equal(t, "Europe/Berlin", rc.Printer.Location.String())

	require.NoError(t, rc.Open(context.Background()))
	require.NotNil(t, rc.Store)
	store := rc.Store
	require.NoError(t, rc.Open(context.Background()))
	assert.Same(t, store, rc.Store, "a second Open keeps the store")
	assert.NoError(t, rc.Close())
}

// =============================================================================
// Error Tests
// =============================================================================

func TestIsDiskFullError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("boom"), false},
		{syscall.ENOSPC, true},
		{fmt.Errorf("write: %w", syscall.ENOSPC), true},
		{errors.New("database or disk is full"), true},
		{NewDiskFullError("write", "", errors.New("x")), true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsDiskFullError(tt.err), "%v", tt.err)
	}
}

func TestStoreOpenError(t *testing.T) {
	assert.NoError(t, StoreOpenError("p", nil))

	err := StoreOpenError("/data", syscall.ENOSPC)
	assert.True(t, lferrors.IsSystemError(err))
	assert.ErrorIs(t, err, lferrors.ErrStoreUnavailable)
	assert.ErrorIs(t, err, ErrDiskFull)
	assert.Equal(t, 1, lferrors.ExitCode(err))

	ue := lferrors.NewUserError("bad", "")
	assert.Same(t, ue, StoreOpenError("p", ue))
}

func retentionOpts(cfg *config.Config) retention.Options {
	return retention.OptionsFromConfig(cfg)
}

func deadlineOpts(cfg *config.Config) deadline.Options {
	return deadline.OptionsFromConfig(cfg)
}
