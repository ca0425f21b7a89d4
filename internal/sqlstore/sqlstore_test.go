package sqlstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laraflow/laraflow/internal/model"
	"github.com/laraflow/laraflow/internal/repo"
	"github.com/laraflow/laraflow/internal/repo/repotest"
)

func setupSQLite(t *testing.T) *Store {
	s, err := Open(context.Background(), DriverSQLite, "")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// =============================================================================
// Open Tests
// =============================================================================

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "dsn")
	assert.Error(t, err)
}

func TestOpenPostgresRequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), DriverPostgres, "")
	assert.Error(t, err)
}

func TestOpenSQLiteFileMigratesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "laraflow.db")
	ctx := context.Background()

	s, err := Open(ctx, DriverSQLite, path)
	require.NoError(t, err)
	require.NoError(t, s.CreateUser(ctx, model.NewUser("Ada", "ada@example.com")))
	require.NoError(t, s.Close())

	// Reopening must not re-run migrations or lose data.
	s, err = Open(ctx, DriverSQLite, path)
	require.NoError(t, err)
	defer s.Close()
	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

// =============================================================================
// Query Helper Tests
// =============================================================================

func TestRebind(t *testing.T) {
	sqlite := &Store{driver: DriverSQLite}
	pg := &Store{driver: DriverPostgres}
	q := `SELECT id FROM tasks WHERE deleted_at < ? AND id IN (?, ?)`

	assert.Equal(t, q, sqlite.rebind(q))
	assert.Equal(t, `SELECT id FROM tasks WHERE deleted_at < $1 AND id IN ($2, $3)`, pg.rebind(q))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}

func TestEventsRoundTrip(t *testing.T) {
	events := []model.NotificationType{model.NotifyDueSoon, model.NotifyOverdue}
	assert.Equal(t, "task_due_soon,task_overdue", joinEvents(events))
	assert.Equal(t, events, splitEvents(joinEvents(events)))
	assert.Nil(t, splitEvents(""))
}

func TestEraseLargeBatch(t *testing.T) {
	s := setupSQLite(t)
	ctx := context.Background()
	f := repotest.Seed(t, s)

	var ids []string
	for i := 0; i < 250; i++ {
		task := f.TrashTask(t, s, "bulk", repotest.Base.AddDate(0, 0, -30))
		ids = append(ids, task.ID)
	}

	n, err := s.EraseEntities(ctx, model.EntityTasks, ids)
	require.NoError(t, err)
	assert.Equal(t, 250, n)
}

// =============================================================================
// Store Contract
// =============================================================================

func TestSQLiteContract(t *testing.T) {
	repotest.Run(t, func(t *testing.T) repo.Store {
		return setupSQLite(t)
	})
}

func TestPostgresContract(t *testing.T) {
	dsn := os.Getenv("LARAFLOW_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("LARAFLOW_TEST_PG_DSN not set")
	}

	repotest.Run(t, func(t *testing.T) repo.Store {
		ctx := context.Background()
		s, err := Open(ctx, DriverPostgres, dsn)
		require.NoError(t, err)
		_, err = s.exec(ctx, `TRUNCATE users, projects, task_lists, tasks, notifications, webhooks`)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}
