package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/laraflow/laraflow/internal/model"
)

const taskColumns = `id, project_id, list_id, title, due_date, due_time, completed_at, assigned_to, created_at, deleted_at`

func scanTask(row interface{ Scan(...any) error }) (*model.Task, error) {
	t := &model.Task{}
	var (
		created   int64
		completed sql.NullInt64
		deleted   sql.NullInt64
	)
	err := row.Scan(&t.ID, &t.ProjectID, &t.ListID, &t.Title, &t.DueDate, &t.DueTime,
		&completed, &t.AssignedTo, &created, &deleted)
	if err != nil {
		return nil, err
	}
	t.CreatedAt = fromUnix(created)
	t.CompletedAt = fromNullUnix(completed)
	t.DeletedAt = fromNullUnix(deleted)
	t.Key = model.GenerateTaskKey(t.ID)
	return t, nil
}

func (s *Store) scanTasks(rows *sql.Rows) ([]*model.Task, error) {
	defer rows.Close()
	var tasks []*model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CreateTask inserts a task, assigning an ID if needed.
func (s *Store) CreateTask(ctx context.Context, t *model.Task) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now()
	}
	t.Key = model.GenerateTaskKey(t.ID)
	_, err := s.exec(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.ProjectID, t.ListID, t.Title, t.DueDate, t.DueTime,
		toNullUnix(t.CompletedAt), t.AssignedTo, toUnix(t.CreatedAt), toNullUnix(t.DeletedAt))
	return err
}

// GetTask retrieves a task by ID, trashed or not.
func (s *Store) GetTask(ctx context.Context, id string) (*model.Task, error) {
	t, err := scanTask(s.queryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return t, nil
}

// UpdateTask overwrites the mutable fields of a task. The deletion time is
// owned by the trash operations and is left untouched.
func (s *Store) UpdateTask(ctx context.Context, t *model.Task) error {
	res, err := s.exec(ctx,
		`UPDATE tasks SET project_id = ?, list_id = ?, title = ?, due_date = ?, due_time = ?,
			completed_at = ?, assigned_to = ? WHERE id = ?`,
		t.ProjectID, t.ListID, t.Title, t.DueDate, t.DueTime,
		toNullUnix(t.CompletedAt), t.AssignedTo, t.ID)
	if err != nil {
		return err
	}
	if err := expectOne(res); err != nil {
		return err
	}
	t.Key = model.GenerateTaskKey(t.ID)
	return nil
}

// ListTasks retrieves tasks ordered by creation time. An empty projectID
// returns tasks of every project.
func (s *Store) ListTasks(ctx context.Context, projectID string, withTrashed bool) ([]*model.Task, error) {
	q := `SELECT ` + taskColumns + ` FROM tasks WHERE 1 = 1`
	var args []any
	if projectID != "" {
		q += ` AND project_id = ?`
		args = append(args, projectID)
	}
	if !withTrashed {
		q += ` AND deleted_at IS NULL`
	}
	q += ` ORDER BY created_at, id`

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return s.scanTasks(rows)
}

// FindTasksDueBetween returns open, assigned, untrashed tasks due in
// [start, end] whose list and project are not trashed. Candidates are narrowed by due_date in SQL and the exact
// instant is checked in loc afterwards.
func (s *Store) FindTasksDueBetween(ctx context.Context, start, end time.Time, loc *time.Location) ([]*model.Task, error) {
	from, to := model.DueDateRange(start, end, loc)
	rows, err := s.query(ctx,
		`SELECT `+taskColumns+` FROM tasks
		WHERE deleted_at IS NULL
			AND completed_at IS NULL
			AND assigned_to <> ''
			AND due_date >= ? AND due_date <= ?
			AND NOT EXISTS (SELECT 1 FROM task_lists l
				WHERE l.id = tasks.list_id AND l.deleted_at IS NOT NULL)
			AND NOT EXISTS (SELECT 1 FROM projects p
				WHERE p.id = tasks.project_id AND p.deleted_at IS NOT NULL)
		ORDER BY id`,
		from, to)
	if err != nil {
		return nil, err
	}
	candidates, err := s.scanTasks(rows)
	if err != nil {
		return nil, err
	}

	var due []*model.Task
	for _, t := range candidates {
		if t.IsDueBetween(start, end, loc) {
			due = append(due, t)
		}
	}
	return due, nil
}
