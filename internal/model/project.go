package model

import (
	"fmt"
	"time"
)

// Project groups lists and tasks.
type Project struct {
	SoftDeletes
	Key       string    `json:"key"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SetKey sets the database key for this project.
func (p *Project) SetKey(key string) {
	p.Key = key
}

// Label returns a display name for the record.
func (p *Project) Label() string {
	return p.Name
}

// GetKey returns the database key for this project.
func (p *Project) GetKey() string {
	return p.Key
}

// GenerateProjectKey generates a database key for a project.
func GenerateProjectKey(id string) string {
	return fmt.Sprintf("%s:%s", PrefixProject, id)
}

// NewProject creates a new project.
func NewProject(name, ownerID string) *Project {
	return &Project{
		Name:      name,
		OwnerID:   ownerID,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}
