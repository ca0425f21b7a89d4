package storage

import (
	"context"
	"errors"
	"sort"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/laraflow/laraflow/internal/model"
	"github.com/laraflow/laraflow/internal/repo"
)

// HasNotification reports whether a record with the given key exists.
func (s *Store) HasNotification(_ context.Context, key model.NotificationKey) (bool, error) {
	return s.db.Exists(model.GenerateNotifyIndexKey(key))
}

// RecordNotification stores the record and its dedup index entry atomically.
func (s *Store) RecordNotification(_ context.Context, rec *model.NotificationRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	rec.Key = model.GenerateNotificationKey(rec.ID)
	indexKey := []byte(model.GenerateNotifyIndexKey(rec.NotificationKey))

	return s.db.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(indexKey)
		if err == nil {
			return repo.ErrConflict
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(indexKey, []byte(rec.ID)); err != nil {
			return err
		}
		return setInTxn(txn, rec)
	})
}

// ListNotifications returns a recipient's records, newest first.
func (s *Store) ListNotifications(_ context.Context, recipientID string, unreadOnly bool) ([]*model.NotificationRecord, error) {
	all, err := GetAllByPrefix(s.db, model.PrefixNotification+":", func() *model.NotificationRecord {
		return &model.NotificationRecord{}
	})
	if err != nil {
		return nil, err
	}

	var records []*model.NotificationRecord
	for _, r := range all {
		if r.RecipientID != recipientID {
			continue
		}
		if unreadOnly && r.IsRead() {
			continue
		}
		records = append(records, r)
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// MarkNotificationRead sets the read time of a record if it is unread.
func (s *Store) MarkNotificationRead(_ context.Context, id string, at time.Time) error {
	rec := &model.NotificationRecord{}
	return s.db.Mutate(model.GenerateNotificationKey(id), rec, func() error {
		if rec.ReadAt == nil {
			t := at.UTC().Truncate(time.Second)
			rec.ReadAt = &t
		}
		return nil
	})
}
