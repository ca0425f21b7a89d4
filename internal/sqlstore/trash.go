package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/laraflow/laraflow/internal/model"
	"github.com/laraflow/laraflow/internal/repo"
)

// trashTable maps an entity type to its table and display column.
type trashTable struct {
	name  string
	label string
}

func tableFor(entity model.EntityType) (trashTable, error) {
	switch entity {
	case model.EntityTasks:
		return trashTable{name: "tasks", label: "title"}, nil
	case model.EntityLists:
		return trashTable{name: "task_lists", label: "name"}, nil
	case model.EntityProjects:
		return trashTable{name: "projects", label: "name"}, nil
	default:
		return trashTable{}, fmt.Errorf("%w: %q", repo.ErrUnknownEntity, entity)
	}
}

// childTable is a table whose rows are trashed and restored with a parent.
type childTable struct {
	name   string
	column string
}

// cascades lists the children of each entity type.
var cascades = map[model.EntityType][]childTable{
	model.EntityProjects: {{"task_lists", "project_id"}, {"tasks", "project_id"}},
	model.EntityLists:    {{"tasks", "list_id"}},
}

// TrashEntity soft deletes a record and its live children with the same
// deletion time. Trashing an already trashed record keeps its original
// deletion time.
func (s *Store) TrashEntity(ctx context.Context, entity model.EntityType, id string, at time.Time) error {
	tbl, err := tableFor(entity)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		deleted, err := s.deletedAt(ctx, tx, tbl, id)
		if err != nil || deleted.Valid {
			return err
		}
		stamp := toUnix(at)
		if _, err := tx.ExecContext(ctx,
			s.rebind(`UPDATE `+tbl.name+` SET deleted_at = ? WHERE id = ?`), stamp, id); err != nil {
			return err
		}
		for _, c := range cascades[entity] {
			if _, err := tx.ExecContext(ctx,
				s.rebind(`UPDATE `+c.name+` SET deleted_at = ? WHERE `+c.column+` = ? AND deleted_at IS NULL`),
				stamp, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// RestoreEntity clears the deletion time of a record and of the children
// trashed together with it. Children trashed on their own stay trashed.
func (s *Store) RestoreEntity(ctx context.Context, entity model.EntityType, id string) error {
	tbl, err := tableFor(entity)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		deleted, err := s.deletedAt(ctx, tx, tbl, id)
		if err != nil || !deleted.Valid {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			s.rebind(`UPDATE `+tbl.name+` SET deleted_at = NULL WHERE id = ?`), id); err != nil {
			return err
		}
		for _, c := range cascades[entity] {
			if _, err := tx.ExecContext(ctx,
				s.rebind(`UPDATE `+c.name+` SET deleted_at = NULL WHERE `+c.column+` = ? AND deleted_at = ?`),
				id, deleted.Int64); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) deletedAt(ctx context.Context, tx *sql.Tx, tbl trashTable, id string) (sql.NullInt64, error) {
	var deleted sql.NullInt64
	err := tx.QueryRowContext(ctx,
		s.rebind(`SELECT deleted_at FROM `+tbl.name+` WHERE id = ?`), id).Scan(&deleted)
	return deleted, notFound(err)
}

// ListTrashed returns every trashed record of a type, oldest first.
func (s *Store) ListTrashed(ctx context.Context, entity model.EntityType) ([]repo.TrashedRecord, error) {
	tbl, err := tableFor(entity)
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx,
		`SELECT id, `+tbl.label+`, deleted_at FROM `+tbl.name+`
		WHERE deleted_at IS NOT NULL
		ORDER BY deleted_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []repo.TrashedRecord
	for rows.Next() {
		var (
			rec     repo.TrashedRecord
			deleted int64
		)
		if err := rows.Scan(&rec.ID, &rec.Label, &deleted); err != nil {
			return nil, err
		}
		rec.DeletedAt = fromUnix(deleted)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountTrashedBefore counts records trashed strictly before cutoff.
func (s *Store) CountTrashedBefore(ctx context.Context, entity model.EntityType, cutoff time.Time) (int, error) {
	tbl, err := tableFor(entity)
	if err != nil {
		return 0, err
	}
	var n int
	err = s.queryRow(ctx,
		`SELECT COUNT(*) FROM `+tbl.name+` WHERE deleted_at IS NOT NULL AND deleted_at < ?`,
		toUnix(cutoff)).Scan(&n)
	return n, err
}

// FindTrashedBefore returns up to limit IDs trashed before cutoff, oldest first.
func (s *Store) FindTrashedBefore(ctx context.Context, entity model.EntityType, cutoff time.Time, limit int) ([]string, error) {
	tbl, err := tableFor(entity)
	if err != nil {
		return nil, err
	}
	q := `SELECT id FROM ` + tbl.name + `
		WHERE deleted_at IS NOT NULL AND deleted_at < ?
		ORDER BY deleted_at, id`
	args := []any{toUnix(cutoff)}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// EraseEntities permanently deletes the given records. Records that are
// missing or no longer trashed are left alone.
func (s *Store) EraseEntities(ctx context.Context, entity model.EntityType, ids []string) (int, error) {
	tbl, err := tableFor(entity)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := s.exec(ctx,
		`DELETE FROM `+tbl.name+` WHERE deleted_at IS NOT NULL AND id IN (`+placeholders(len(ids))+`)`,
		args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
