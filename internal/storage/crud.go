package storage

import (
	"encoding/json"
	"errors"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/laraflow/laraflow/internal/model"
	"github.com/laraflow/laraflow/internal/repo"
)

// ErrKeyNotFound is returned when a key is not found in the database.
// It wraps repo.ErrNotFound so callers can test either.
var ErrKeyNotFound = repo.ErrNotFound

// IsErrKeyNotFound returns true if the error is a key not found error.
func IsErrKeyNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound) || errors.Is(err, badger.ErrKeyNotFound)
}

// Get retrieves a value by key and unmarshals it into v.
func (d *DB) Get(key string, v model.Model) error {
	return d.db.View(func(txn *badger.Txn) error {
		return getInTxn(txn, key, v)
	})
}

func getInTxn(txn *badger.Txn, key string, v model.Model) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrKeyNotFound
		}
		return err
	}

	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, v); err != nil {
			return err
		}
		v.SetKey(key)
		return nil
	})
}

func setInTxn(txn *badger.Txn, v model.Model) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set([]byte(v.GetKey()), data)
}

// Set stores a model in the database.
func (d *DB) Set(v model.Model) error {
	return d.db.Update(func(txn *badger.Txn) error {
		return setInTxn(txn, v)
	})
}

// Mutate loads the model at key into v, applies fn and stores the result in
// a single transaction.
func (d *DB) Mutate(key string, v model.Model, fn func() error) error {
	return d.db.Update(func(txn *badger.Txn) error {
		if err := getInTxn(txn, key, v); err != nil {
			return err
		}
		if err := fn(); err != nil {
			return err
		}
		return setInTxn(txn, v)
	})
}

// Delete removes a key from the database.
func (d *DB) Delete(key string) error {
	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Exists checks if a key exists in the database.
func (d *DB) Exists(key string) (bool, error) {
	var exists bool
	err := d.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				exists = false
				return nil
			}
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

// GetAllByPrefix retrieves all values with the given prefix.
func GetAllByPrefix[T model.Model](d *DB, prefix string, newFunc func() T) ([]T, error) {
	var results []T
	err := d.db.View(func(txn *badger.Txn) error {
		var err error
		results, err = scanInTxn(txn, prefix, newFunc)
		return err
	})
	return results, err
}

func scanInTxn[T model.Model](txn *badger.Txn, prefix string, newFunc func() T) ([]T, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchSize = 100
	it := txn.NewIterator(opts)
	defer it.Close()

	var results []T
	prefixBytes := []byte(prefix)
	for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
		item := it.Item()
		err := item.Value(func(val []byte) error {
			v := newFunc()
			if err := json.Unmarshal(val, v); err != nil {
				return err
			}
			v.SetKey(string(item.KeyCopy(nil)))
			results = append(results, v)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
