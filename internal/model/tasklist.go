package model

import (
	"fmt"
	"time"
)

// TaskList is a Kanban column inside a project.
type TaskList struct {
	SoftDeletes
	Key       string    `json:"key"`
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// SetKey sets the database key for this list.
func (l *TaskList) SetKey(key string) {
	l.Key = key
}

// Label returns a display name for the record.
func (l *TaskList) Label() string {
	return l.Name
}

// GetKey returns the database key for this list.
func (l *TaskList) GetKey() string {
	return l.Key
}

// GenerateListKey generates a database key for a list.
func GenerateListKey(id string) string {
	return fmt.Sprintf("%s:%s", PrefixList, id)
}

// NewTaskList creates a new list in a project.
func NewTaskList(projectID, name string, position int) *TaskList {
	return &TaskList{
		ProjectID: projectID,
		Name:      name,
		Position:  position,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}
