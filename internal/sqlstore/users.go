package sqlstore

import (
	"context"

	"github.com/google/uuid"

	"github.com/laraflow/laraflow/internal/model"
)

// CreateUser inserts a user, assigning an ID if needed.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now()
	}
	u.Key = model.GenerateUserKey(u.ID)
	_, err := s.exec(ctx,
		`INSERT INTO users (id, name, email, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, toUnix(u.CreatedAt))
	return err
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	u := &model.User{}
	var created int64
	err := s.queryRow(ctx,
		`SELECT id, name, email, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.Email, &created)
	if err != nil {
		return nil, notFound(err)
	}
	u.CreatedAt = fromUnix(created)
	u.Key = model.GenerateUserKey(u.ID)
	return u, nil
}

// ListUsers retrieves all users ordered by name.
func (s *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	rows, err := s.query(ctx, `SELECT id, name, email, created_at FROM users ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u := &model.User{}
		var created int64
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &created); err != nil {
			return nil, err
		}
		u.CreatedAt = fromUnix(created)
		u.Key = model.GenerateUserKey(u.ID)
		users = append(users, u)
	}
	return users, rows.Err()
}
