// Package repotest is a contract test suite run against every repo.Store
// backend so they stay interchangeable.
package repotest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laraflow/laraflow/internal/model"
	"github.com/laraflow/laraflow/internal/repo"
)

// Factory returns a fresh, empty store. It should register cleanup with t.
type Factory func(t *testing.T) repo.Store

// Base is the reference instant used by the suite.
var Base = time.Date(2024, 1, 9, 10, 30, 0, 0, time.UTC)

// Run executes the contract suite.
func Run(t *testing.T, newStore Factory) {
	t.Run("users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("projects", func(t *testing.T) { testProjects(t, newStore(t)) })
	t.Run("lists", func(t *testing.T) { testLists(t, newStore(t)) })
	t.Run("tasks", func(t *testing.T) { testTasks(t, newStore(t)) })
	t.Run("tasks_due_between", func(t *testing.T) { testTasksDueBetween(t, newStore(t)) })
	t.Run("trash_lifecycle", func(t *testing.T) { testTrashLifecycle(t, newStore(t)) })
	t.Run("trash_cascade", func(t *testing.T) { testTrashCascade(t, newStore(t)) })
	t.Run("trashed_before", func(t *testing.T) { testTrashedBefore(t, newStore(t)) })
	t.Run("erase", func(t *testing.T) { testErase(t, newStore(t)) })
	t.Run("unknown_entity", func(t *testing.T) { testUnknownEntity(t, newStore(t)) })
	t.Run("notifications", func(t *testing.T) { testNotifications(t, newStore(t)) })
	t.Run("webhooks", func(t *testing.T) { testWebhooks(t, newStore(t)) })
	t.Run("ping", func(t *testing.T) {
		require.NoError(t, newStore(t).Ping(context.Background()))
	})
}

// Fixture is a project with one list, ready for tasks.
type Fixture struct {
	User    *model.User
	Project *model.Project
	List    *model.TaskList
}

// Seed creates a user, a project and a list.
func Seed(t *testing.T, s repo.Store) Fixture {
	t.Helper()
	ctx := context.Background()

	u := model.NewUser("Ada", "ada@example.com")
	require.NoError(t, s.CreateUser(ctx, u))
	p := model.NewProject("Launch", u.ID)
	require.NoError(t, s.CreateProject(ctx, p))
	l := model.NewTaskList(p.ID, "Todo", 0)
	require.NoError(t, s.CreateList(ctx, l))

	return Fixture{User: u, Project: p, List: l}
}

// AddTask creates a task in the fixture's list.
func (f Fixture) AddTask(t *testing.T, s repo.Store, title string, mutate func(*model.Task)) *model.Task {
	t.Helper()
	task := model.NewTask(f.Project.ID, f.List.ID, title)
	if mutate != nil {
		mutate(task)
	}
	require.NoError(t, s.CreateTask(context.Background(), task))
	return task
}

// TrashTask creates a task and trashes it at the given time.
func (f Fixture) TrashTask(t *testing.T, s repo.Store, title string, at time.Time) *model.Task {
	t.Helper()
	task := f.AddTask(t, s, title, nil)
	require.NoError(t, s.TrashEntity(context.Background(), model.EntityTasks, task.ID, at))
	return task
}

func testUsers(t *testing.T, s repo.Store) {
	ctx := context.Background()

	u := model.NewUser("Grace", "grace@example.com")
	require.NoError(t, s.CreateUser(ctx, u))
	assert.NotEmpty(t, u.ID)

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Grace", got.Name)
	assert.Equal(t, "grace@example.com", got.Email)

	_, err = s.GetUser(ctx, "missing")
	assert.True(t, repo.IsNotFound(err))

	require.NoError(t, s.CreateUser(ctx, model.NewUser("Alan", "alan@example.com")))
	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Alan", users[0].Name)
}

func testProjects(t *testing.T, s repo.Store) {
	ctx := context.Background()

	live := model.NewProject("Live", "")
	require.NoError(t, s.CreateProject(ctx, live))
	gone := model.NewProject("Gone", "")
	require.NoError(t, s.CreateProject(ctx, gone))
	require.NoError(t, s.TrashEntity(ctx, model.EntityProjects, gone.ID, Base))

	projects, err := s.ListProjects(ctx, false)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, live.ID, projects[0].ID)

	all, err := s.ListProjects(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	got, err := s.GetProject(ctx, gone.ID)
	require.NoError(t, err)
	assert.True(t, got.IsTrashed(), "get returns trashed records")
}

func testLists(t *testing.T, s repo.Store) {
	ctx := context.Background()
	f := Seed(t, s)

	second := model.NewTaskList(f.Project.ID, "Done", 2)
	require.NoError(t, s.CreateList(ctx, second))
	first := model.NewTaskList(f.Project.ID, "Doing", 1)
	require.NoError(t, s.CreateList(ctx, first))
	other := model.NewTaskList("other-project", "Elsewhere", 0)
	require.NoError(t, s.CreateList(ctx, other))

	lists, err := s.ListLists(ctx, f.Project.ID, false)
	require.NoError(t, err)
	require.Len(t, lists, 3)
	assert.Equal(t, []string{"Todo", "Doing", "Done"}, []string{lists[0].Name, lists[1].Name, lists[2].Name})

	got, err := s.GetList(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Position)
}

func testTasks(t *testing.T, s repo.Store) {
	ctx := context.Background()
	f := Seed(t, s)

	task := f.AddTask(t, s, "Write copy", func(task *model.Task) {
		task.DueDate = "2024-01-10"
		task.DueTime = "10:00:00"
		task.AssignedTo = f.User.ID
	})

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Write copy", got.Title)
	assert.Equal(t, "2024-01-10", got.DueDate)
	assert.Equal(t, "10:00:00", got.DueTime)
	assert.Equal(t, f.User.ID, got.AssignedTo)
	assert.True(t, got.IsOpen())

	got.Complete(Base)
	require.NoError(t, s.UpdateTask(ctx, got))
	got, err = s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, Base.Equal(*got.CompletedAt))

	missing := model.NewTask(f.Project.ID, f.List.ID, "Ghost")
	missing.ID = "missing"
	assert.True(t, repo.IsNotFound(s.UpdateTask(ctx, missing)))

	f.TrashTask(t, s, "Trashed", Base)
	tasks, err := s.ListTasks(ctx, f.Project.ID, false)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
	tasks, err = s.ListTasks(ctx, "", true)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
}

func testTasksDueBetween(t *testing.T, s repo.Store) {
	ctx := context.Background()
	f := Seed(t, s)
	due := func(date, clock string, assignee string) func(*model.Task) {
		return func(task *model.Task) {
			task.DueDate = date
			task.DueTime = clock
			task.AssignedTo = assignee
		}
	}

	inWindow := f.AddTask(t, s, "in window", due("2024-01-10", "10:00:00", f.User.ID))
	edge := f.AddTask(t, s, "window edge", due("2024-01-10", "10:59:59", f.User.ID))
	f.AddTask(t, s, "after window", due("2024-01-10", "11:00:00", f.User.ID))
	f.AddTask(t, s, "unassigned", due("2024-01-10", "10:15:00", ""))
	f.AddTask(t, s, "completed", func(task *model.Task) {
		due("2024-01-10", "10:20:00", f.User.ID)(task)
		task.Complete(Base)
	})
	trashed := f.AddTask(t, s, "trashed", due("2024-01-10", "10:30:00", f.User.ID))
	require.NoError(t, s.TrashEntity(ctx, model.EntityTasks, trashed.ID, Base))
	f.AddTask(t, s, "no due date", due("", "", f.User.ID))

	start := time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)
	end := start.Add(59*time.Minute + 59*time.Second)
	tasks, err := s.FindTasksDueBetween(ctx, start, end, time.UTC)
	require.NoError(t, err)

	var ids []string
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	assert.ElementsMatch(t, []string{inWindow.ID, edge.ID}, ids)

	endOfDay := f.AddTask(t, s, "end of day", due("2024-01-11", "", f.User.ID))
	start = time.Date(2024, 1, 11, 23, 0, 0, 0, time.UTC)
	tasks, err = s.FindTasksDueBetween(ctx, start, start.Add(59*time.Minute+59*time.Second), time.UTC)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, endOfDay.ID, tasks[0].ID)
}

func testTrashLifecycle(t *testing.T, s repo.Store) {
	ctx := context.Background()
	f := Seed(t, s)

	task := f.TrashTask(t, s, "Draft", Base)
	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	require.True(t, got.IsTrashed())
	assert.True(t, Base.Equal(*got.DeletedAt))

	// Trashing again keeps the original deletion time.
	require.NoError(t, s.TrashEntity(ctx, model.EntityTasks, task.ID, Base.Add(time.Hour)))
	records, err := s.ListTrashed(ctx, model.EntityTasks)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, task.ID, records[0].ID)
	assert.Equal(t, "Draft", records[0].Label)
	assert.True(t, Base.Equal(records[0].DeletedAt))

	require.NoError(t, s.RestoreEntity(ctx, model.EntityTasks, task.ID))
	got, err = s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, got.IsTrashed())

	assert.True(t, repo.IsNotFound(s.TrashEntity(ctx, model.EntityTasks, "missing", Base)))
	assert.True(t, repo.IsNotFound(s.RestoreEntity(ctx, model.EntityLists, "missing")))

	require.NoError(t, s.TrashEntity(ctx, model.EntityLists, f.List.ID, Base))
	lists, err := s.ListTrashed(ctx, model.EntityLists)
	require.NoError(t, err)
	require.Len(t, lists, 1)
	assert.Equal(t, "Todo", lists[0].Label)
}

func testTrashCascade(t *testing.T, s repo.Store) {
	ctx := context.Background()
	f := Seed(t, s)
	due := func(task *model.Task) {
		task.DueDate = "2024-01-10"
		task.DueTime = "10:00:00"
		task.AssignedTo = f.User.ID
	}
	start := time.Date(2024, 1, 10, 10, 0, 0, 0, time.UTC)
	end := start.Add(59*time.Minute + 59*time.Second)
	candidates := func() int {
		t.Helper()
		tasks, err := s.FindTasksDueBetween(ctx, start, end, time.UTC)
		require.NoError(t, err)
		return len(tasks)
	}
	deletedAt := func(id string) *time.Time {
		t.Helper()
		task, err := s.GetTask(ctx, id)
		require.NoError(t, err)
		return task.DeletedAt
	}

	live := f.AddTask(t, s, "live", due)
	earlier := f.TrashTask(t, s, "trashed earlier", Base.Add(-48*time.Hour))
	require.Equal(t, 1, candidates())

	require.NoError(t, s.TrashEntity(ctx, model.EntityProjects, f.Project.ID, Base))
	list, err := s.GetList(ctx, f.List.ID)
	require.NoError(t, err)
	require.True(t, list.IsTrashed(), "lists go to the trash with their project")
	assert.True(t, Base.Equal(*list.DeletedAt))
	require.NotNil(t, deletedAt(live.ID))
	assert.True(t, Base.Equal(*deletedAt(live.ID)))
	assert.True(t, Base.Add(-48*time.Hour).Equal(*deletedAt(earlier.ID)), "earlier deletion time kept")
	assert.Zero(t, candidates())

	require.NoError(t, s.RestoreEntity(ctx, model.EntityProjects, f.Project.ID))
	list, err = s.GetList(ctx, f.List.ID)
	require.NoError(t, err)
	assert.False(t, list.IsTrashed())
	assert.Nil(t, deletedAt(live.ID))
	assert.NotNil(t, deletedAt(earlier.ID), "children trashed on their own stay trashed")
	assert.Equal(t, 1, candidates())

	// A live task inside a trashed list never comes due.
	require.NoError(t, s.TrashEntity(ctx, model.EntityLists, f.List.ID, Base))
	f.AddTask(t, s, "added to trashed list", due)
	assert.Zero(t, candidates())
}

func testTrashedBefore(t *testing.T, s repo.Store) {
	ctx := context.Background()
	f := Seed(t, s)
	cutoff := Base.AddDate(0, 0, -7)

	oldest := f.TrashTask(t, s, "oldest", cutoff.Add(-72*time.Hour))
	older := f.TrashTask(t, s, "older", cutoff.Add(-48*time.Hour))
	old := f.TrashTask(t, s, "old", cutoff.Add(-time.Second))
	f.TrashTask(t, s, "at cutoff", cutoff)
	f.TrashTask(t, s, "recent", Base.Add(-time.Hour))
	f.AddTask(t, s, "live", nil)

	n, err := s.CountTrashedBefore(ctx, model.EntityTasks, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	ids, err := s.FindTrashedBefore(ctx, model.EntityTasks, cutoff, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{oldest.ID, older.ID}, ids)

	ids, err = s.FindTrashedBefore(ctx, model.EntityTasks, cutoff, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{oldest.ID, older.ID, old.ID}, ids)
}

func testErase(t *testing.T, s repo.Store) {
	ctx := context.Background()
	f := Seed(t, s)

	a := f.TrashTask(t, s, "a", Base.AddDate(0, 0, -30))
	b := f.TrashTask(t, s, "b", Base.AddDate(0, 0, -30))
	restored := f.TrashTask(t, s, "restored", Base.AddDate(0, 0, -30))
	require.NoError(t, s.RestoreEntity(ctx, model.EntityTasks, restored.ID))
	live := f.AddTask(t, s, "live", nil)

	n, err := s.EraseEntities(ctx, model.EntityTasks, []string{a.ID, b.ID, restored.ID, live.ID, "missing"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = s.GetTask(ctx, a.ID)
	assert.True(t, repo.IsNotFound(err))
	_, err = s.GetTask(ctx, restored.ID)
	assert.NoError(t, err, "restored records survive")
	_, err = s.GetTask(ctx, live.ID)
	assert.NoError(t, err)

	n, err = s.EraseEntities(ctx, model.EntityTasks, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testUnknownEntity(t *testing.T, s repo.Store) {
	ctx := context.Background()
	bogus := model.EntityType("comments")

	_, err := s.CountTrashedBefore(ctx, bogus, Base)
	assert.True(t, errors.Is(err, repo.ErrUnknownEntity))
	_, err = s.FindTrashedBefore(ctx, bogus, Base, 10)
	assert.True(t, errors.Is(err, repo.ErrUnknownEntity))
	_, err = s.EraseEntities(ctx, bogus, []string{"x"})
	assert.True(t, errors.Is(err, repo.ErrUnknownEntity))
	assert.True(t, errors.Is(s.TrashEntity(ctx, bogus, "x", Base), repo.ErrUnknownEntity))
}

func testNotifications(t *testing.T, s repo.Store) {
	ctx := context.Background()
	key := model.NotificationKey{RecipientID: "u1", Kind: model.NotifyDueSoon, TaskID: "t1", OffsetHours: 24}

	has, err := s.HasNotification(ctx, key)
	require.NoError(t, err)
	assert.False(t, has)

	n := model.NewNotification(model.NotifyDueSoon, "Task due soon", "Write copy").WithField("Task", "Write copy")
	rec := model.NewNotificationRecord(key, n, Base)
	require.NoError(t, s.RecordNotification(ctx, rec))
	assert.NotEmpty(t, rec.ID)

	has, err = s.HasNotification(ctx, key)
	require.NoError(t, err)
	assert.True(t, has)

	dup := model.NewNotificationRecord(key, n, Base.Add(time.Hour))
	assert.True(t, errors.Is(s.RecordNotification(ctx, dup), repo.ErrConflict))

	otherOffset := key
	otherOffset.OffsetHours = 1
	has, err = s.HasNotification(ctx, otherOffset)
	require.NoError(t, err)
	assert.False(t, has, "offsets are distinct keys")
	later := model.NewNotificationRecord(otherOffset, n, Base.Add(time.Hour))
	require.NoError(t, s.RecordNotification(ctx, later))

	records, err := s.ListNotifications(ctx, "u1", false)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, later.ID, records[0].ID, "newest first")
	assert.Equal(t, "Write copy", records[1].Data["Task"])
	assert.Equal(t, key, records[1].NotificationKey)

	require.NoError(t, s.MarkNotificationRead(ctx, rec.ID, Base.Add(2*time.Hour)))
	unread, err := s.ListNotifications(ctx, "u1", true)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, later.ID, unread[0].ID)

	assert.True(t, repo.IsNotFound(s.MarkNotificationRead(ctx, "missing", Base)))

	none, err := s.ListNotifications(ctx, "u2", false)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testWebhooks(t *testing.T, s repo.Store) {
	ctx := context.Background()

	team := model.NewWebhook("team", model.WebhookTypeSlack, "https://hooks.slack.com/services/T/B/X")
	team.Events = []model.NotificationType{model.NotifyOverdue}
	require.NoError(t, s.CreateWebhook(ctx, team))
	assert.True(t, errors.Is(s.CreateWebhook(ctx, model.NewWebhook("team", model.WebhookTypeGeneric, "https://example.com")), repo.ErrConflict))

	ops := model.NewWebhook("ops", model.WebhookTypeGeneric, "https://example.com/hook")
	require.NoError(t, s.CreateWebhook(ctx, ops))
	require.NoError(t, s.SetWebhookEnabled(ctx, "ops", false))

	all, err := s.ListWebhooks(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "ops", all[0].Name)

	enabled, err := s.ListEnabledWebhooks(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "team", enabled[0].Name)
	assert.Equal(t, []model.NotificationType{model.NotifyOverdue}, enabled[0].Events)

	require.NoError(t, s.UpdateWebhookLastUsed(ctx, "team", Base, errors.New("HTTP 500")))
	got, err := s.GetWebhook(ctx, "team")
	require.NoError(t, err)
	require.NotNil(t, got.LastUsed)
	assert.True(t, Base.Equal(*got.LastUsed))
	assert.Equal(t, "HTTP 500", got.LastError)

	require.NoError(t, s.UpdateWebhookLastUsed(ctx, "team", Base, nil))
	got, err = s.GetWebhook(ctx, "team")
	require.NoError(t, err)
	assert.Empty(t, got.LastError)

	require.NoError(t, s.DeleteWebhook(ctx, "team"))
	_, err = s.GetWebhook(ctx, "team")
	assert.True(t, repo.IsNotFound(err))
	assert.True(t, repo.IsNotFound(s.DeleteWebhook(ctx, "team")))
}
