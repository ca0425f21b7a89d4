// Package repo defines the persistence contract shared by the Badger and SQL
// backends. Jobs and commands depend on these interfaces, never on a backend.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/laraflow/laraflow/internal/model"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrUnknownEntity is returned for an entity type the store does not know.
	ErrUnknownEntity = errors.New("unknown entity type")
	// ErrConflict is returned when a unique key already exists.
	ErrConflict = errors.New("record already exists")
)

// Users stores members.
type Users interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
}

// Projects stores projects.
type Projects interface {
	CreateProject(ctx context.Context, p *model.Project) error
	GetProject(ctx context.Context, id string) (*model.Project, error)
	ListProjects(ctx context.Context, withTrashed bool) ([]*model.Project, error)
}

// Lists stores task lists.
type Lists interface {
	CreateList(ctx context.Context, l *model.TaskList) error
	GetList(ctx context.Context, id string) (*model.TaskList, error)
	ListLists(ctx context.Context, projectID string, withTrashed bool) ([]*model.TaskList, error)
}

// Tasks stores tasks.
type Tasks interface {
	CreateTask(ctx context.Context, t *model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	UpdateTask(ctx context.Context, t *model.Task) error
	// ListTasks lists tasks of a project, or all tasks when projectID is empty.
	ListTasks(ctx context.Context, projectID string, withTrashed bool) ([]*model.Task, error)
	// FindTasksDueBetween returns tasks that are not trashed, not completed,
	// assigned, and whose due instant in loc lies in [start, end].
	FindTasksDueBetween(ctx context.Context, start, end time.Time, loc *time.Location) ([]*model.Task, error)
}

// Trash manages the soft-delete lifecycle of projects, lists and tasks.
type Trash interface {
	TrashEntity(ctx context.Context, entity model.EntityType, id string, at time.Time) error
	RestoreEntity(ctx context.Context, entity model.EntityType, id string) error
	// ListTrashed returns the IDs and deletion times of trashed records, oldest first.
	ListTrashed(ctx context.Context, entity model.EntityType) ([]TrashedRecord, error)
	CountTrashedBefore(ctx context.Context, entity model.EntityType, cutoff time.Time) (int, error)
	// FindTrashedBefore returns up to limit IDs trashed before cutoff, oldest first.
	FindTrashedBefore(ctx context.Context, entity model.EntityType, cutoff time.Time, limit int) ([]string, error)
	// EraseEntities permanently deletes the given records and returns how many were removed.
	EraseEntities(ctx context.Context, entity model.EntityType, ids []string) (int, error)
}

// TrashedRecord describes one soft-deleted record.
type TrashedRecord struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	DeletedAt time.Time `json:"deleted_at"`
}

// Notifications is the deadline notification ledger and inbox.
type Notifications interface {
	HasNotification(ctx context.Context, key model.NotificationKey) (bool, error)
	// RecordNotification stores a record. A second record with the same key
	// returns ErrConflict.
	RecordNotification(ctx context.Context, rec *model.NotificationRecord) error
	ListNotifications(ctx context.Context, recipientID string, unreadOnly bool) ([]*model.NotificationRecord, error)
	MarkNotificationRead(ctx context.Context, id string, at time.Time) error
}

// Webhooks stores outgoing webhook endpoints.
type Webhooks interface {
	CreateWebhook(ctx context.Context, w *model.Webhook) error
	GetWebhook(ctx context.Context, name string) (*model.Webhook, error)
	ListWebhooks(ctx context.Context) ([]*model.Webhook, error)
	ListEnabledWebhooks(ctx context.Context) ([]*model.Webhook, error)
	SetWebhookEnabled(ctx context.Context, name string, enabled bool) error
	DeleteWebhook(ctx context.Context, name string) error
	UpdateWebhookLastUsed(ctx context.Context, name string, at time.Time, lastErr error) error
}

// Store is the full persistence contract.
type Store interface {
	Users
	Projects
	Lists
	Tasks
	Trash
	Notifications
	Webhooks

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
