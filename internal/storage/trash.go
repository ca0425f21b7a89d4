package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/laraflow/laraflow/internal/model"
	"github.com/laraflow/laraflow/internal/repo"
)

// trashable is a model with a soft-delete lifecycle.
type trashable interface {
	model.Model
	IsTrashed() bool
	Trash(at time.Time)
	Restore()
	TrashedBefore(cutoff time.Time) bool
	TrashedAt() time.Time
	Label() string
}

func newTrashable(entity model.EntityType) (func() trashable, error) {
	switch entity {
	case model.EntityTasks:
		return func() trashable { return &model.Task{} }, nil
	case model.EntityLists:
		return func() trashable { return &model.TaskList{} }, nil
	case model.EntityProjects:
		return func() trashable { return &model.Project{} }, nil
	default:
		return nil, fmt.Errorf("%w: %q", repo.ErrUnknownEntity, entity)
	}
}

func entityKey(entity model.EntityType, id string) string {
	return entity.Prefix() + ":" + id
}

func entityID(entity model.EntityType, key string) string {
	return strings.TrimPrefix(key, entity.Prefix()+":")
}

// TrashEntity soft deletes a record and its live children with the same
// deletion time. Trashing an already trashed record keeps its original
// deletion time.
func (s *Store) TrashEntity(_ context.Context, entity model.EntityType, id string, at time.Time) error {
	newFunc, err := newTrashable(entity)
	if err != nil {
		return err
	}
	return s.db.db.Update(func(txn *badger.Txn) error {
		v := newFunc()
		if err := getInTxn(txn, entityKey(entity, id), v); err != nil {
			return err
		}
		if v.IsTrashed() {
			return nil
		}
		v.Trash(at)
		if err := setInTxn(txn, v); err != nil {
			return err
		}
		return cascadeInTxn(txn, entity, id, func(c trashable) bool {
			if c.IsTrashed() {
				return false
			}
			c.Trash(at)
			return true
		})
	})
}

// RestoreEntity clears the deletion time of a record and of the children
// trashed together with it. Children trashed on their own stay trashed.
func (s *Store) RestoreEntity(_ context.Context, entity model.EntityType, id string) error {
	newFunc, err := newTrashable(entity)
	if err != nil {
		return err
	}
	return s.db.db.Update(func(txn *badger.Txn) error {
		v := newFunc()
		if err := getInTxn(txn, entityKey(entity, id), v); err != nil {
			return err
		}
		if !v.IsTrashed() {
			return nil
		}
		at := v.TrashedAt()
		v.Restore()
		if err := setInTxn(txn, v); err != nil {
			return err
		}
		return cascadeInTxn(txn, entity, id, func(c trashable) bool {
			if !c.IsTrashed() || !c.TrashedAt().Equal(at) {
				return false
			}
			c.Restore()
			return true
		})
	})
}

// cascadeInTxn applies fn to the children of a project or list and saves
// those it reports as changed.
func cascadeInTxn(txn *badger.Txn, entity model.EntityType, id string, fn func(trashable) bool) error {
	var changed []trashable

	if entity == model.EntityProjects {
		lists, err := scanInTxn(txn, model.EntityLists.Prefix()+":", func() *model.TaskList {
			return &model.TaskList{}
		})
		if err != nil {
			return err
		}
		for _, l := range lists {
			if l.ProjectID == id && fn(l) {
				changed = append(changed, l)
			}
		}
	}
	if entity == model.EntityProjects || entity == model.EntityLists {
		tasks, err := scanInTxn(txn, model.EntityTasks.Prefix()+":", func() *model.Task {
			return &model.Task{}
		})
		if err != nil {
			return err
		}
		for _, t := range tasks {
			parent := t.ListID
			if entity == model.EntityProjects {
				parent = t.ProjectID
			}
			if parent == id && fn(t) {
				changed = append(changed, t)
			}
		}
	}

	for _, c := range changed {
		if err := setInTxn(txn, c); err != nil {
			return err
		}
	}
	return nil
}

// trashedBefore returns trashed records, oldest first. A zero cutoff matches
// every trashed record.
func (s *Store) trashedBefore(entity model.EntityType, cutoff time.Time) ([]trashable, error) {
	newFunc, err := newTrashable(entity)
	if err != nil {
		return nil, err
	}
	all, err := GetAllByPrefix(s.db, entity.Prefix()+":", newFunc)
	if err != nil {
		return nil, err
	}

	var trashed []trashable
	for _, v := range all {
		if !v.IsTrashed() {
			continue
		}
		if !cutoff.IsZero() && !v.TrashedBefore(cutoff) {
			continue
		}
		trashed = append(trashed, v)
	}
	sort.SliceStable(trashed, func(i, j int) bool {
		ti, tj := trashed[i].TrashedAt(), trashed[j].TrashedAt()
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return trashed[i].GetKey() < trashed[j].GetKey()
	})
	return trashed, nil
}

// trashedIDs returns the IDs of every trashed record of a type.
func (s *Store) trashedIDs(entity model.EntityType) (map[string]bool, error) {
	trashed, err := s.trashedBefore(entity, time.Time{})
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(trashed))
	for _, v := range trashed {
		ids[entityID(entity, v.GetKey())] = true
	}
	return ids, nil
}

// ListTrashed returns every trashed record of a type, oldest first.
func (s *Store) ListTrashed(_ context.Context, entity model.EntityType) ([]repo.TrashedRecord, error) {
	trashed, err := s.trashedBefore(entity, time.Time{})
	if err != nil {
		return nil, err
	}
	records := make([]repo.TrashedRecord, 0, len(trashed))
	for _, v := range trashed {
		records = append(records, repo.TrashedRecord{
			ID:        entityID(entity, v.GetKey()),
			Label:     v.Label(),
			DeletedAt: v.TrashedAt(),
		})
	}
	return records, nil
}

// CountTrashedBefore counts records trashed strictly before cutoff.
func (s *Store) CountTrashedBefore(_ context.Context, entity model.EntityType, cutoff time.Time) (int, error) {
	trashed, err := s.trashedBefore(entity, cutoff)
	if err != nil {
		return 0, err
	}
	return len(trashed), nil
}

// FindTrashedBefore returns up to limit IDs trashed before cutoff, oldest first.
func (s *Store) FindTrashedBefore(_ context.Context, entity model.EntityType, cutoff time.Time, limit int) ([]string, error) {
	trashed, err := s.trashedBefore(entity, cutoff)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(trashed) > limit {
		trashed = trashed[:limit]
	}
	ids := make([]string, 0, len(trashed))
	for _, v := range trashed {
		ids = append(ids, entityID(entity, v.GetKey()))
	}
	return ids, nil
}

// EraseEntities permanently deletes the given records in one transaction.
// Records that are missing or no longer trashed are left alone.
func (s *Store) EraseEntities(_ context.Context, entity model.EntityType, ids []string) (int, error) {
	newFunc, err := newTrashable(entity)
	if err != nil {
		return 0, err
	}

	erased := 0
	err = s.db.db.Update(func(txn *badger.Txn) error {
		for _, id := range ids {
			key := entityKey(entity, id)
			v := newFunc()
			if err := getInTxn(txn, key, v); err != nil {
				if IsErrKeyNotFound(err) {
					continue
				}
				return err
			}
			if !v.IsTrashed() {
				continue
			}
			if err := txn.Delete([]byte(key)); err != nil {
				return err
			}
			erased++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return erased, nil
}
