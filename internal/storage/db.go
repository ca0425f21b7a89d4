// Package storage provides the embedded Badger backend for Laraflow.
package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	badger "github.com/dgraph-io/badger/v4"

	"github.com/laraflow/laraflow/internal/model"
)

// ErrClosed is returned by Ping after the database has been closed.
var ErrClosed = errors.New("database is closed")

// DB wraps a Badger database connection.
type DB struct {
	db   *badger.DB
	path string
}

// Options configures the database connection.
type Options struct {
	// Path is the database directory path. Empty string uses in-memory mode.
	Path string
	// InMemory forces in-memory mode regardless of Path.
	InMemory bool
}

// DefaultPath returns the default database path following XDG spec.
func DefaultPath() string {
	return filepath.Join(xdg.DataHome, model.AppName, "db")
}

// Open opens or creates a database at the given path.
func Open(opts Options) (*DB, error) {
	var badgerOpts badger.Options

	if opts.InMemory || opts.Path == "" {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Path, 0755); err != nil {
			return nil, err
		}
		badgerOpts = badger.DefaultOptions(opts.Path)
	}

	badgerOpts = badgerOpts.WithLoggingLevel(badger.ERROR)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, err
	}

	return &DB{db: db, path: badgerOpts.Dir}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping reports whether the database is still open.
func (d *DB) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.db.IsClosed() {
		return ErrClosed
	}
	return nil
}

// Path returns the database directory, or "" for an in-memory database.
func (d *DB) Path() string {
	return d.path
}

// Badger returns the underlying Badger database for advanced operations.
func (d *DB) Badger() *badger.DB {
	return d.db
}
