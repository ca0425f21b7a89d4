package retention

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laraflow/laraflow/internal/config"
	"github.com/laraflow/laraflow/internal/metrics"
	"github.com/laraflow/laraflow/internal/model"
	"github.com/laraflow/laraflow/internal/repo"
	"github.com/laraflow/laraflow/internal/repo/repotest"
	"github.com/laraflow/laraflow/internal/sqlstore"
	"github.com/laraflow/laraflow/internal/storage"
)

var now = time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)

func setupStore(t *testing.T) *storage.Store {
	s, err := storage.OpenStore(storage.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sqliteStore(t *testing.T) *sqlstore.Store {
	s, err := sqlstore.Open(context.Background(), sqlstore.DriverSQLite, "")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newSweeper(s Store) *Sweeper {
	sw := NewSweeper(s, nil)
	sw.Now = func() time.Time { return now }
	return sw
}

// faultyStore fails erasing a single entity type.
type faultyStore struct {
	repo.Store
	failErase model.EntityType
	pingErr   error
}

func (f *faultyStore) EraseEntities(ctx context.Context, entity model.EntityType, ids []string) (int, error) {
	if entity == f.failErase {
		return 0, errors.New("disk on fire")
	}
	return f.Store.EraseEntities(ctx, entity, ids)
}

func (f *faultyStore) Ping(ctx context.Context) error {
	if f.pingErr != nil {
		return f.pingErr
	}
	return f.Store.Ping(ctx)
}

func resultFor(t *testing.T, r *Report, entity string) TypeResult {
	t.Helper()
	for _, res := range r.Results {
		if res.Entity == entity {
			return res
		}
	}
	t.Fatalf("no result for %s", entity)
	return TypeResult{}
}

func TestCutoff(t *testing.T) {
	assert.Equal(t, time.Date(2024, 1, 13, 12, 0, 0, 0, time.UTC), Cutoff(now, 7))
	assert.Equal(t, now, Cutoff(now, 0))
	assert.Equal(t, now, Cutoff(now.Add(700*time.Millisecond), 0), "whole seconds")
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{RetentionDays: -1}.withDefaults()
	assert.Equal(t, DefaultRetentionDays, o.RetentionDays)
	assert.Equal(t, DefaultBatchSize, o.BatchSize)
	assert.Equal(t, model.DefaultSweepOrder(), o.EntityTypes)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Retention.Days = 30
	cfg.Retention.EntityTypes = []string{"tasks", "comments"}

	o := OptionsFromConfig(cfg)
	assert.Equal(t, 30, o.RetentionDays)
	assert.Equal(t, 100, o.BatchSize)
	assert.Equal(t, []model.EntityType{model.EntityTasks, "comments"}, o.EntityTypes)
}

func TestSweepErasesOnlyExpired(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	f := repotest.Seed(t, s)

	old := f.TrashTask(t, s, "old", now.AddDate(0, 0, -8))
	fresh := f.TrashTask(t, s, "fresh", now.AddDate(0, 0, -6))
	live := f.AddTask(t, s, "live", nil)

	restored := f.TrashTask(t, s, "restored", now.AddDate(0, 0, -30))
	require.NoError(t, s.RestoreEntity(ctx, model.EntityTasks, restored.ID))

	report, err := newSweeper(s).Run(ctx, Options{RetentionDays: 7})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Total)
	assert.False(t, report.HasFailures())
	assert.Equal(t, now.AddDate(0, 0, -7), report.Cutoff)

	_, err = s.GetTask(ctx, old.ID)
	assert.True(t, repo.IsNotFound(err))
	for _, id := range []string{fresh.ID, live.ID, restored.ID} {
		_, err := s.GetTask(ctx, id)
		assert.NoError(t, err)
	}

	again, err := newSweeper(s).Run(ctx, Options{RetentionDays: 7})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Total, "a second pass finds nothing")
}

func TestSweepEntityOrderAndUnknownTypes(t *testing.T) {
	s := setupStore(t)
	report, err := newSweeper(s).Run(context.Background(), Options{
		EntityTypes: []model.EntityType{model.EntityTasks, "comments", model.EntityLists, model.EntityProjects},
	})
	require.NoError(t, err)

	require.Len(t, report.Results, 4)
	assert.Equal(t, "tasks", report.Results[0].Entity)
	assert.Equal(t, "comments", report.Results[1].Entity)
	assert.Equal(t, StatusSkipped, report.Results[1].Status)
	assert.Equal(t, "lists", report.Results[2].Entity)
	assert.Equal(t, "projects", report.Results[3].Entity)
	assert.False(t, report.HasFailures(), "skipped is not a failure")
}

func TestSweepBatches(t *testing.T) {
	s := setupStore(t)
	f := repotest.Seed(t, s)
	for i := 0; i < 25; i++ {
		f.TrashTask(t, s, fmt.Sprintf("task %02d", i), now.AddDate(0, 0, -10).Add(time.Duration(i)*time.Minute))
	}

	report, err := newSweeper(s).Run(context.Background(), Options{
		BatchSize:   10,
		EntityTypes: []model.EntityType{model.EntityTasks},
	})
	require.NoError(t, err)

	res := resultFor(t, report, "tasks")
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, 25, res.Count)
	assert.Equal(t, 3, res.Batches)

	remaining, err := s.ListTrashed(context.Background(), model.EntityTasks)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestDryRunMatchesRealRun(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	f := repotest.Seed(t, s)
	for i := 0; i < 3; i++ {
		f.TrashTask(t, s, fmt.Sprintf("t%d", i), now.AddDate(0, 0, -9))
	}
	require.NoError(t, s.TrashEntity(ctx, model.EntityLists, f.List.ID, now.AddDate(0, 0, -9)))

	dry, err := newSweeper(s).Run(ctx, Options{DryRun: true})
	require.NoError(t, err)
	assert.True(t, dry.DryRun)
	assert.Equal(t, 4, dry.Total)

	trashed, err := s.ListTrashed(ctx, model.EntityTasks)
	require.NoError(t, err)
	assert.Len(t, trashed, 3, "dry run never deletes")

	wet, err := newSweeper(s).Run(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, dry.Total, wet.Total)
}

func TestFailingTypeDoesNotStopOthers(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	f := repotest.Seed(t, s)
	f.TrashTask(t, s, "old", now.AddDate(0, 0, -9))
	require.NoError(t, s.TrashEntity(ctx, model.EntityProjects, f.Project.ID, now.AddDate(0, 0, -9)))

	m := metrics.NewCollector()
	sw := NewSweeper(&faultyStore{Store: s, failErase: model.EntityTasks}, m)
	sw.Now = func() time.Time { return now }

	report, err := sw.Run(ctx, Options{})
	require.NoError(t, err)
	require.True(t, report.HasFailures())

	tasks := resultFor(t, report, "tasks")
	assert.Equal(t, StatusFailed, tasks.Status)
	assert.Contains(t, tasks.Error, "disk on fire")
	assert.Len(t, report.Failed(), 1)

	projects := resultFor(t, report, "projects")
	assert.Equal(t, StatusOK, projects.Status)
	assert.Equal(t, 1, projects.Count)

	n, err := testutil.GatherAndCount(m.Registry(), "laraflow_retention_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFractionalCutoffAgreesAcrossBackends(t *testing.T) {
	stores := map[string]repo.Store{
		"badger": setupStore(t),
		"sqlite": sqliteStore(t),
	}
	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			f := repotest.Seed(t, s)
			f.TrashTask(t, s, "same second", now.Add(300*time.Millisecond))
			f.TrashTask(t, s, "second before", now.Add(-time.Second))

			sw := NewSweeper(s, nil)
			sw.Now = func() time.Time { return now.Add(700 * time.Millisecond) }
			report, err := sw.Run(context.Background(), Options{RetentionDays: 0, EntityTypes: []string{"tasks"}})
			require.NoError(t, err)
			assert.Equal(t, 1, report.Total)
		})
	}
}

func TestSweepTakesChildrenWithProject(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	f := repotest.Seed(t, s)
	task := f.AddTask(t, s, "child", func(task *model.Task) {
		task.DueDate = "2024-01-10"
		task.AssignedTo = f.User.ID
	})
	require.NoError(t, s.TrashEntity(ctx, model.EntityProjects, f.Project.ID, now.AddDate(0, 0, -30)))

	report, err := newSweeper(s).Run(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, resultFor(t, report, "tasks").Count)
	assert.Equal(t, 1, resultFor(t, report, "lists").Count)
	assert.Equal(t, 1, resultFor(t, report, "projects").Count)

	_, err = s.GetTask(ctx, task.ID)
	assert.True(t, repo.IsNotFound(err))
	_, err = s.GetList(ctx, f.List.ID)
	assert.True(t, repo.IsNotFound(err))
}

func TestPingFailureFailsRun(t *testing.T) {
	s := setupStore(t)
	sw := newSweeper(&faultyStore{Store: s, pingErr: errors.New("gone")})

	report, err := sw.Run(context.Background(), Options{})
	assert.Nil(t, report)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newSweeper(setupStore(t)).Run(ctx, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}
