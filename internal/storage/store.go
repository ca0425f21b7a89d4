package storage

import (
	"context"

	"github.com/laraflow/laraflow/internal/repo"
)

// Store implements repo.Store on top of Badger.
type Store struct {
	db *DB
}

var _ repo.Store = (*Store)(nil)

// NewStore wraps an open database.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// OpenStore opens a database and wraps it in a Store.
func OpenStore(opts Options) (*Store, error) {
	db, err := Open(opts)
	if err != nil {
		return nil, err
	}
	return NewStore(db), nil
}

// DB returns the underlying database.
func (s *Store) DB() *DB {
	return s.db
}

// Ping reports whether the database is usable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
