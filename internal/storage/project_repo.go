package storage

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/laraflow/laraflow/internal/model"
)

// CreateProject stores a new project, assigning an ID if needed.
func (s *Store) CreateProject(_ context.Context, p *model.Project) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	p.Key = model.GenerateProjectKey(p.ID)
	return s.db.Set(p)
}

// GetProject retrieves a project by ID, trashed or not.
func (s *Store) GetProject(_ context.Context, id string) (*model.Project, error) {
	p := &model.Project{}
	if err := s.db.Get(model.GenerateProjectKey(id), p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListProjects retrieves projects ordered by creation time.
func (s *Store) ListProjects(_ context.Context, withTrashed bool) ([]*model.Project, error) {
	all, err := GetAllByPrefix(s.db, model.PrefixProject+":", func() *model.Project {
		return &model.Project{}
	})
	if err != nil {
		return nil, err
	}

	var projects []*model.Project
	for _, p := range all {
		if withTrashed || !p.IsTrashed() {
			projects = append(projects, p)
		}
	}
	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].CreatedAt.Before(projects[j].CreatedAt)
	})
	return projects, nil
}
