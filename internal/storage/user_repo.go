package storage

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/laraflow/laraflow/internal/model"
)

// CreateUser stores a new user, assigning an ID if needed.
func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	u.Key = model.GenerateUserKey(u.ID)
	return s.db.Set(u)
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(_ context.Context, id string) (*model.User, error) {
	u := &model.User{}
	if err := s.db.Get(model.GenerateUserKey(id), u); err != nil {
		return nil, err
	}
	return u, nil
}

// ListUsers retrieves all users ordered by name.
func (s *Store) ListUsers(_ context.Context) ([]*model.User, error) {
	users, err := GetAllByPrefix(s.db, model.PrefixUser+":", func() *model.User {
		return &model.User{}
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(users, func(i, j int) bool {
		return users[i].Name < users[j].Name
	})
	return users, nil
}
