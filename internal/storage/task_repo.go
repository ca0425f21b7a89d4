package storage

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/laraflow/laraflow/internal/model"
)

// CreateTask stores a new task, assigning an ID if needed.
func (s *Store) CreateTask(_ context.Context, t *model.Task) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	t.Key = model.GenerateTaskKey(t.ID)
	return s.db.Set(t)
}

// GetTask retrieves a task by ID, trashed or not.
func (s *Store) GetTask(_ context.Context, id string) (*model.Task, error) {
	t := &model.Task{}
	if err := s.db.Get(model.GenerateTaskKey(id), t); err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateTask overwrites an existing task.
func (s *Store) UpdateTask(_ context.Context, t *model.Task) error {
	key := model.GenerateTaskKey(t.ID)
	exists, err := s.db.Exists(key)
	if err != nil {
		return err
	}
	if !exists {
		return ErrKeyNotFound
	}
	t.Key = key
	return s.db.Set(t)
}

// ListTasks retrieves tasks ordered by creation time. An empty projectID
// returns tasks of every project.
func (s *Store) ListTasks(_ context.Context, projectID string, withTrashed bool) ([]*model.Task, error) {
	all, err := s.allTasks()
	if err != nil {
		return nil, err
	}

	var tasks []*model.Task
	for _, t := range all {
		if projectID != "" && t.ProjectID != projectID {
			continue
		}
		if withTrashed || !t.IsTrashed() {
			tasks = append(tasks, t)
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

// FindTasksDueBetween returns open, assigned, untrashed tasks due in
// [start, end] whose list and project are not trashed.
func (s *Store) FindTasksDueBetween(_ context.Context, start, end time.Time, loc *time.Location) ([]*model.Task, error) {
	all, err := s.allTasks()
	if err != nil {
		return nil, err
	}
	trashedLists, err := s.trashedIDs(model.EntityLists)
	if err != nil {
		return nil, err
	}
	trashedProjects, err := s.trashedIDs(model.EntityProjects)
	if err != nil {
		return nil, err
	}

	var due []*model.Task
	for _, t := range all {
		if t.IsTrashed() || !t.IsOpen() || !t.HasAssignee() {
			continue
		}
		if trashedLists[t.ListID] || trashedProjects[t.ProjectID] {
			continue
		}
		if t.IsDueBetween(start, end, loc) {
			due = append(due, t)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].ID < due[j].ID
	})
	return due, nil
}

func (s *Store) allTasks() ([]*model.Task, error) {
	return GetAllByPrefix(s.db, model.PrefixTask+":", func() *model.Task {
		return &model.Task{}
	})
}
