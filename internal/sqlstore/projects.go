package sqlstore

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/laraflow/laraflow/internal/model"
)

// CreateProject inserts a project, assigning an ID if needed.
func (s *Store) CreateProject(ctx context.Context, p *model.Project) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now()
	}
	p.Key = model.GenerateProjectKey(p.ID)
	_, err := s.exec(ctx,
		`INSERT INTO projects (id, name, owner_id, created_at, deleted_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.OwnerID, toUnix(p.CreatedAt), toNullUnix(p.DeletedAt))
	return err
}

const projectColumns = `id, name, owner_id, created_at, deleted_at`

func scanProject(row interface{ Scan(...any) error }) (*model.Project, error) {
	p := &model.Project{}
	var (
		created int64
		deleted sql.NullInt64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.OwnerID, &created, &deleted); err != nil {
		return nil, err
	}
	p.CreatedAt = fromUnix(created)
	p.DeletedAt = fromNullUnix(deleted)
	p.Key = model.GenerateProjectKey(p.ID)
	return p, nil
}

// GetProject retrieves a project by ID, trashed or not.
func (s *Store) GetProject(ctx context.Context, id string) (*model.Project, error) {
	p, err := scanProject(s.queryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// ListProjects retrieves projects ordered by creation time.
func (s *Store) ListProjects(ctx context.Context, withTrashed bool) ([]*model.Project, error) {
	q := `SELECT ` + projectColumns + ` FROM projects`
	if !withTrashed {
		q += ` WHERE deleted_at IS NULL`
	}
	q += ` ORDER BY created_at, id`

	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// CreateList inserts a task list, assigning an ID if needed.
func (s *Store) CreateList(ctx context.Context, l *model.TaskList) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now()
	}
	l.Key = model.GenerateListKey(l.ID)
	_, err := s.exec(ctx,
		`INSERT INTO task_lists (id, project_id, name, position, created_at, deleted_at) VALUES (?, ?, ?, ?, ?, ?)`,
		l.ID, l.ProjectID, l.Name, l.Position, toUnix(l.CreatedAt), toNullUnix(l.DeletedAt))
	return err
}

const listColumns = `id, project_id, name, position, created_at, deleted_at`

func scanList(row interface{ Scan(...any) error }) (*model.TaskList, error) {
	l := &model.TaskList{}
	var (
		created int64
		deleted sql.NullInt64
	)
	if err := row.Scan(&l.ID, &l.ProjectID, &l.Name, &l.Position, &created, &deleted); err != nil {
		return nil, err
	}
	l.CreatedAt = fromUnix(created)
	l.DeletedAt = fromNullUnix(deleted)
	l.Key = model.GenerateListKey(l.ID)
	return l, nil
}

// GetList retrieves a task list by ID, trashed or not.
func (s *Store) GetList(ctx context.Context, id string) (*model.TaskList, error) {
	l, err := scanList(s.queryRow(ctx, `SELECT `+listColumns+` FROM task_lists WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return l, nil
}

// ListLists retrieves the lists of a project ordered by position. An empty
// projectID returns lists of every project.
func (s *Store) ListLists(ctx context.Context, projectID string, withTrashed bool) ([]*model.TaskList, error) {
	q := `SELECT ` + listColumns + ` FROM task_lists WHERE 1 = 1`
	var args []any
	if projectID != "" {
		q += ` AND project_id = ?`
		args = append(args, projectID)
	}
	if !withTrashed {
		q += ` AND deleted_at IS NULL`
	}
	q += ` ORDER BY position, created_at, id`

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lists []*model.TaskList
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, err
		}
		lists = append(lists, l)
	}
	return lists, rows.Err()
}
