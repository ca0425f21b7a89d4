package deadline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laraflow/laraflow/internal/config"
	"github.com/laraflow/laraflow/internal/model"
	"github.com/laraflow/laraflow/internal/repo"
	"github.com/laraflow/laraflow/internal/repo/repotest"
	"github.com/laraflow/laraflow/internal/sqlstore"
	"github.com/laraflow/laraflow/internal/storage"
)

// fakeSender records deliveries and can be told to fail.
type fakeSender struct {
	mu   sync.Mutex
	sent []*model.Notification
	err  error
}

func (f *fakeSender) Deliver(_ context.Context, n *model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// clock is a settable fake clock.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func badgerStore(t *testing.T) repo.Store {
	s, err := storage.OpenStore(storage.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sqliteStore(t *testing.T) repo.Store {
	s, err := sqlstore.Open(context.Background(), sqlstore.DriverSQLite, "")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var backends = map[string]func(t *testing.T) repo.Store{
	"badger": badgerStore,
	"sqlite": sqliteStore,
}

func at(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		panic(err)
	}
	return t
}

func newNotifier(s Store, sender Sender, c *clock) *Notifier {
	n := NewNotifier(s, sender, nil)
	n.Now = c.Now
	return n
}

func dueAt(date, clockTime, assignee string) func(*model.Task) {
	return func(t *model.Task) {
		t.DueDate = date
		t.DueTime = clockTime
		t.AssignedTo = assignee
	}
}

// =============================================================================
// Window Tests
// =============================================================================

func TestWindowFor(t *testing.T) {
	now := at("2024-01-09 10:30:00")

	soon := WindowFor(now, model.NotifyDueSoon, 24, time.UTC)
	assert.Equal(t, at("2024-01-10 10:00:00"), soon.Start)
	assert.Equal(t, at("2024-01-10 10:59:59"), soon.End)

	overdue := WindowFor(now, model.NotifyOverdue, 1, time.UTC)
	assert.Equal(t, at("2024-01-09 09:00:00"), overdue.Start)
	assert.Equal(t, at("2024-01-09 09:59:59"), overdue.End)

	assert.True(t, soon.Contains(soon.Start))
	assert.True(t, soon.Contains(soon.End))
	assert.False(t, soon.Contains(soon.End.Add(time.Second)))
	assert.Equal(t, "[2024-01-10 10:00:00, 2024-01-10 10:59:59]", soon.String())
}

func TestWindowStableWithinHour(t *testing.T) {
	a := WindowFor(at("2024-01-09 10:00:00"), model.NotifyDueSoon, 24, time.UTC)
	b := WindowFor(at("2024-01-09 10:59:59"), model.NotifyDueSoon, 24, time.UTC)
	assert.Equal(t, a, b)
}

func TestHourWindowHalfHourZone(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	w := HourWindow(at("2024-01-09 10:10:00"), loc)
	assert.Equal(t, "2024-01-09 15:00:00", w.Start.Format("2006-01-02 15:04:05"))
	assert.Equal(t, at("2024-01-09 09:30:00"), w.Start.UTC())
}

func TestOptionsFromConfig(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	o := OptionsFromConfig(cfg)
	assert.Equal(t, []int{24}, o.DueSoonOffsets)
	assert.Equal(t, []int{1, 24}, o.OverdueOffsets)
	assert.Equal(t, time.UTC, o.Location)
}

// =============================================================================
// Notifier Tests
// =============================================================================

func TestNotifier(t *testing.T) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			t.Run("scenario_due_soon_once", func(t *testing.T) { testScenario(t, open(t)) })
			t.Run("independent_offsets", func(t *testing.T) { testIndependentOffsets(t, open(t)) })
			t.Run("ineligible_tasks", func(t *testing.T) { testIneligible(t, open(t)) })
			t.Run("send_failure_retried", func(t *testing.T) { testSendFailure(t, open(t)) })
		})
	}
}

func testScenario(t *testing.T, s repo.Store) {
	ctx := context.Background()
	f := repotest.Seed(t, s)
	task := f.AddTask(t, s, "Ship release", dueAt("2024-01-10", "10:00:00", f.User.ID))

	c := &clock{t: at("2024-01-09 10:30:00")}
	sender := &fakeSender{}
	n := newNotifier(s, sender, c)
	opts := Options{DueSoonOffsets: []int{24}, OverdueOffsets: []int{}}

	report, err := n.Run(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
	require.Len(t, report.PerOffset, 1)
	assert.Equal(t, at("2024-01-10 10:00:00"), report.PerOffset[0].Window.Start)
	require.Equal(t, 1, sender.count())
	assert.Equal(t, model.NotifyDueSoon, sender.sent[0].Type)

	c.Set(at("2024-01-09 10:45:00"))
	again, err := n.Run(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Sent)
	assert.Equal(t, 1, again.Skipped)
	assert.Equal(t, 1, sender.count())

	inbox, err := s.ListNotifications(ctx, f.User.ID, true)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, task.ID, inbox[0].TaskID)
	assert.Equal(t, 24, inbox[0].OffsetHours)
}

func testIndependentOffsets(t *testing.T, s repo.Store) {
	ctx := context.Background()
	f := repotest.Seed(t, s)
	f.AddTask(t, s, "Deploy", dueAt("2024-01-10", "10:15:00", f.User.ID))

	c := &clock{}
	sender := &fakeSender{}
	n := newNotifier(s, sender, c)
	opts := Options{DueSoonOffsets: []int{24, 1}, OverdueOffsets: []int{1}}

	for _, now := range []string{
		"2024-01-09 10:05:00", // 24h before
		"2024-01-09 10:50:00",
		"2024-01-10 09:20:00", // 1h before
		"2024-01-10 11:40:00", // 1h overdue
		"2024-01-10 11:55:00",
	} {
		c.Set(at(now))
		_, err := n.Run(ctx, opts)
		require.NoError(t, err)
	}

	require.Equal(t, 3, sender.count())
	inbox, err := s.ListNotifications(ctx, f.User.ID, false)
	require.NoError(t, err)

	keys := map[string]bool{}
	for _, r := range inbox {
		keys[r.NotificationKey.String()] = true
	}
	assert.Len(t, keys, 3)
}

func testIneligible(t *testing.T, s repo.Store) {
	ctx := context.Background()
	f := repotest.Seed(t, s)
	now := at("2024-01-09 10:30:00")

	f.AddTask(t, s, "unassigned", dueAt("2024-01-10", "10:00:00", ""))
	f.AddTask(t, s, "done", func(task *model.Task) {
		dueAt("2024-01-10", "10:00:00", f.User.ID)(task)
		task.Complete(now.Add(-time.Hour))
	})
	trashed := f.AddTask(t, s, "trashed", dueAt("2024-01-10", "10:00:00", f.User.ID))
	require.NoError(t, s.TrashEntity(ctx, model.EntityTasks, trashed.ID, now.Add(-time.Hour)))
	f.AddTask(t, s, "no date", dueAt("", "", f.User.ID))

	sender := &fakeSender{}
	report, err := newNotifier(s, sender, &clock{t: now}).Run(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, report.Sent)
	assert.Equal(t, 0, sender.count())
}

func testSendFailure(t *testing.T, s repo.Store) {
	ctx := context.Background()
	f := repotest.Seed(t, s)
	f.AddTask(t, s, "Flaky", dueAt("2024-01-10", "10:00:00", f.User.ID))

	c := &clock{t: at("2024-01-09 10:30:00")}
	sender := &fakeSender{err: errors.New("webhook down")}
	n := newNotifier(s, sender, c)
	opts := Options{OverdueOffsets: []int{}}

	report, err := n.Run(ctx, opts)
	require.NoError(t, err, "delivery failures are reported, not returned")
	assert.Equal(t, 1, report.Failed)

	inbox, err := s.ListNotifications(ctx, f.User.ID, false)
	require.NoError(t, err)
	assert.Empty(t, inbox, "nothing recorded on failure")

	sender.err = nil
	c.Set(at("2024-01-09 10:45:00"))
	report, err = n.Run(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
}

func TestEndOfDayDefault(t *testing.T) {
	s := badgerStore(t)
	f := repotest.Seed(t, s)
	f.AddTask(t, s, "EOD", dueAt("2024-01-10", "", f.User.ID))

	sender := &fakeSender{}
	report, err := newNotifier(s, sender, &clock{t: at("2024-01-09 23:10:00")}).
		Run(context.Background(), Options{OverdueOffsets: []int{}})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
}

func TestEndOfDayAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name string
		date string
		now  time.Time
		opts Options
	}{
		// 23h day: overdue 1h, run at 00:30 EDT the next day.
		{"spring_forward", "2024-03-10", time.Date(2024, 3, 11, 0, 30, 0, 0, ny),
			Options{DueSoonOffsets: []int{}, OverdueOffsets: []int{1}, Location: ny}},
		// 25h day: due soon 1h, run at 22:10 EST.
		{"fall_back", "2024-11-03", time.Date(2024, 11, 3, 22, 10, 0, 0, ny),
			Options{DueSoonOffsets: []int{1}, OverdueOffsets: []int{}, Location: ny}},
	}
	for _, tt := range tests {
		for name, open := range backends {
			t.Run(tt.name+"/"+name, func(t *testing.T) {
				s := open(t)
				f := repotest.Seed(t, s)
				f.AddTask(t, s, "EOD", dueAt(tt.date, "", f.User.ID))

				report, err := newNotifier(s, &fakeSender{}, &clock{t: tt.now}).
					Run(context.Background(), tt.opts)
				require.NoError(t, err)
				assert.Equal(t, 1, report.Sent)
			})
		}
	}
}

func TestHourWindowRepeatedHour(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 01:30 EST, the second 01:30 of 2024-11-03.
	second := time.Date(2024, 11, 3, 6, 30, 0, 0, time.UTC)
	w := HourWindow(second, ny)
	assert.True(t, w.Contains(second))
	assert.Equal(t, time.Date(2024, 11, 3, 6, 0, 0, 0, time.UTC), w.Start.UTC())
}

func TestNilSenderRecordsInboxOnly(t *testing.T) {
	s := badgerStore(t)
	f := repotest.Seed(t, s)
	f.AddTask(t, s, "Inbox", dueAt("2024-01-10", "10:00:00", f.User.ID))

	report, err := newNotifier(s, nil, &clock{t: at("2024-01-09 10:30:00")}).
		Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
}

func TestClockReadOncePerRun(t *testing.T) {
	s := badgerStore(t)
	start := at("2024-01-09 10:59:00")
	calls := 0
	n := NewNotifier(s, nil, nil)
	n.Now = func() time.Time {
		calls++
		return start.Add(time.Duration(calls-1) * time.Hour)
	}

	report, err := n.Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, start, report.Now)
}

// brokenStore fails candidate queries or pings.
type brokenStore struct {
	repo.Store
	queryErr error
	pingErr  error
}

func (b *brokenStore) FindTasksDueBetween(ctx context.Context, start, end time.Time, loc *time.Location) ([]*model.Task, error) {
	if b.queryErr != nil {
		return nil, b.queryErr
	}
	return b.Store.FindTasksDueBetween(ctx, start, end, loc)
}

func (b *brokenStore) Ping(ctx context.Context) error {
	if b.pingErr != nil {
		return b.pingErr
	}
	return b.Store.Ping(ctx)
}

func TestRunLevelFailures(t *testing.T) {
	c := &clock{t: at("2024-01-09 10:30:00")}

	t.Run("ping", func(t *testing.T) {
		s := &brokenStore{Store: badgerStore(t), pingErr: errors.New("down")}
		_, err := newNotifier(s, nil, c).Run(context.Background(), Options{})
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	})

	t.Run("every_query", func(t *testing.T) {
		s := &brokenStore{Store: badgerStore(t), queryErr: errors.New("bad query")}
		report, err := newNotifier(s, nil, c).Run(context.Background(), Options{})
		assert.ErrorIs(t, err, ErrAllQueriesFailed)
		require.NotNil(t, report)
		assert.Len(t, report.PerOffset, 3)
	})
}

func TestMessage(t *testing.T) {
	task := &model.Task{ID: "t1", Title: "Write report", DueDate: "2024-01-10", DueTime: "10:00:00"}
	now := at("2024-01-10 11:30:00")
	key := model.NotificationKey{RecipientID: "u1", Kind: model.NotifyOverdue, TaskID: "t1", OffsetHours: 1}

	n := Message(key, task, now, time.UTC)
	assert.Equal(t, "Task overdue", n.Title)
	assert.Contains(t, n.Message, `"Write report" was due`)
	assert.Equal(t, "1h", n.Fields["Offset"])
	assert.Equal(t, now, n.Timestamp)
}
