package storage

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/laraflow/laraflow/internal/model"
)

// CreateList stores a new task list, assigning an ID if needed.
func (s *Store) CreateList(_ context.Context, l *model.TaskList) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	l.Key = model.GenerateListKey(l.ID)
	return s.db.Set(l)
}

// GetList retrieves a task list by ID, trashed or not.
func (s *Store) GetList(_ context.Context, id string) (*model.TaskList, error) {
	l := &model.TaskList{}
	if err := s.db.Get(model.GenerateListKey(id), l); err != nil {
		return nil, err
	}
	return l, nil
}

// ListLists retrieves the lists of a project ordered by position.
// An empty projectID returns lists of every project.
func (s *Store) ListLists(_ context.Context, projectID string, withTrashed bool) ([]*model.TaskList, error) {
	all, err := GetAllByPrefix(s.db, model.PrefixList+":", func() *model.TaskList {
		return &model.TaskList{}
	})
	if err != nil {
		return nil, err
	}

	var lists []*model.TaskList
	for _, l := range all {
		if projectID != "" && l.ProjectID != projectID {
			continue
		}
		if withTrashed || !l.IsTrashed() {
			lists = append(lists, l)
		}
	}
	sort.SliceStable(lists, func(i, j int) bool {
		if lists[i].Position != lists[j].Position {
			return lists[i].Position < lists[j].Position
		}
		return lists[i].CreatedAt.Before(lists[j].CreatedAt)
	})
	return lists, nil
}
