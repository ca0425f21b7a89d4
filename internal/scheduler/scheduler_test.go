package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laraflow/laraflow/internal/config"
	"github.com/laraflow/laraflow/internal/deadline"
	"github.com/laraflow/laraflow/internal/metrics"
	"github.com/laraflow/laraflow/internal/model"
	"github.com/laraflow/laraflow/internal/repo/repotest"
	"github.com/laraflow/laraflow/internal/retention"
	"github.com/laraflow/laraflow/internal/storage"
)

func TestAddRejectsInvalidSchedule(t *testing.T) {
	s := NewScheduler(time.UTC)
	err := s.Add("every tuesday", JobFunc{JobName: "bad", Fn: func(context.Context) error { return nil }})
	assert.Error(t, err)
	assert.Empty(t, s.Status())
}

func TestAddRejectsDuplicateName(t *testing.T) {
	s := NewScheduler(time.UTC)
	job := JobFunc{JobName: "dup", Fn: func(context.Context) error { return nil }}
	require.NoError(t, s.Add("0 * * * *", job))
	assert.Error(t, s.Add("0 3 * * *", job))
}

func TestRunNowTracksStatus(t *testing.T) {
	s := NewScheduler(time.UTC)
	var calls atomic.Int32
	fail := errors.New("store gone")

	require.NoError(t, s.Add("0 * * * *", JobFunc{JobName: "ok", Fn: func(context.Context) error {
		calls.Add(1)
		return nil
	}}))
	require.NoError(t, s.Add("0 3 * * *", JobFunc{JobName: "broken", Fn: func(context.Context) error {
		return fail
	}}))

	require.NoError(t, s.RunNow(context.Background(), "ok"))
	assert.ErrorIs(t, s.RunNow(context.Background(), "broken"), fail)
	assert.Error(t, s.RunNow(context.Background(), "missing"))

	status := s.Status()
	require.Len(t, status, 2)
	assert.Equal(t, "broken", status[0].Name)
	assert.Equal(t, 1, status[0].Failures)
	assert.Equal(t, "store gone", status[0].LastError)
	assert.Equal(t, "ok", status[1].Name)
	assert.Equal(t, 1, status[1].Runs)
	assert.Empty(t, status[1].LastError)
	assert.EqualValues(t, 1, calls.Load())
}

func TestRunNowRefusesOverlap(t *testing.T) {
	s := NewScheduler(time.UTC)
	started := make(chan struct{})
	release := make(chan struct{})

	require.NoError(t, s.Add("0 * * * *", JobFunc{JobName: "slow", Fn: func(context.Context) error {
		close(started)
		<-release
		return nil
	}}))

	done := make(chan error, 1)
	go func() { done <- s.RunNow(context.Background(), "slow") }()
	<-started

	assert.Error(t, s.RunNow(context.Background(), "slow"))
	close(release)
	assert.NoError(t, <-done)
}

func TestRescheduleAndNextRun(t *testing.T) {
	s := NewScheduler(time.UTC)
	job := JobFunc{JobName: "tick", Fn: func(context.Context) error { return nil }}
	require.NoError(t, s.Add("0 3 * * *", job))

	s.Start()
	defer s.Stop()

	assert.False(t, s.NextRun().IsZero())

	require.NoError(t, s.Reschedule("tick", "30 4 * * *"))
	status := s.Status()
	require.Len(t, status, 1)
	assert.Equal(t, "30 4 * * *", status[0].Schedule)
	assert.Equal(t, 30, status[0].Next.Minute())
	assert.Equal(t, 4, status[0].Next.Hour())

	assert.Error(t, s.Reschedule("tick", "nope"))
	assert.Error(t, s.Reschedule("other", "0 * * * *"))
}

func TestStopCancelsRunningJob(t *testing.T) {
	s := NewScheduler(time.UTC)
	require.NoError(t, s.Add("0 * * * *", JobFunc{JobName: "wait", Fn: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}))

	s.Start()
	done := make(chan struct{})
	go func() {
		s.run(s.entries["wait"])
		close(done)
	}()

	require.Eventually(t, func() bool { return s.Status()[0].Running }, time.Second, 5*time.Millisecond)
	s.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job did not observe cancellation")
	}
	assert.Equal(t, "context canceled", s.Status()[0].LastError)
}

func TestRegisterWiresMaintenanceJobs(t *testing.T) {
	store, err := storage.OpenStore(storage.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	now := time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC)
	f := repotest.Seed(t, store)
	f.TrashTask(t, store, "old", now.AddDate(0, 0, -30))

	cfg, err := config.Default()
	require.NoError(t, err)
	holder := config.NewHolder(cfg)

	m := metrics.NewCollector()
	sweeper := retention.NewSweeper(store, m)
	sweeper.Now = func() time.Time { return now }
	var delivered atomic.Int32
	notifier := deadline.NewNotifier(store, deadline.SenderFunc(func(context.Context, *model.Notification) error {
		delivered.Add(1)
		return nil
	}), m)
	notifier.Now = func() time.Time { return now }

	s := NewScheduler(cfg.Location())
	require.NoError(t, Register(s, holder, sweeper, notifier))

	status := s.Status()
	require.Len(t, status, 2)
	assert.Equal(t, metrics.JobDeadlines, status[0].Name)
	assert.Equal(t, cfg.Deadlines.Schedule, status[0].Schedule)
	assert.Equal(t, metrics.JobSweep, status[1].Name)
	assert.Equal(t, cfg.Retention.Schedule, status[1].Schedule)

	require.NoError(t, s.RunNow(context.Background(), metrics.JobSweep))
	trashed, err := store.ListTrashed(context.Background(), model.EntityTasks)
	require.NoError(t, err)
	assert.Empty(t, trashed)

	require.NoError(t, s.RunNow(context.Background(), metrics.JobDeadlines))
	assert.Zero(t, delivered.Load())

	next := *cfg
	next.Retention.Schedule = "15 2 * * *"
	holder.Set(&next)
	require.NoError(t, ApplyConfig(s, &next))
	assert.Equal(t, "15 2 * * *", s.Status()[1].Schedule)
}
