package model

import (
	"fmt"
	"strings"
)

// EntityType names a soft-deletable entity.
type EntityType string

// Soft-deletable entity types.
const (
	EntityTasks    EntityType = "tasks"
	EntityLists    EntityType = "lists"
	EntityProjects EntityType = "projects"
)

// DefaultSweepOrder returns the entity types ordered children before parents.
func DefaultSweepOrder() []EntityType {
	return []EntityType{EntityTasks, EntityLists, EntityProjects}
}

// ValidEntityTypes returns the names of all soft-deletable entity types.
func ValidEntityTypes() []string {
	return []string{string(EntityTasks), string(EntityLists), string(EntityProjects)}
}

// ParseEntityType resolves an entity name. Singular forms are accepted.
func ParseEntityType(name string) (EntityType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "tasks", "task":
		return EntityTasks, nil
	case "lists", "list":
		return EntityLists, nil
	case "projects", "project":
		return EntityProjects, nil
	default:
		return "", fmt.Errorf("unknown entity type %q", name)
	}
}

// Prefix returns the key prefix used to store the entity type.
func (e EntityType) Prefix() string {
	switch e {
	case EntityTasks:
		return PrefixTask
	case EntityLists:
		return PrefixList
	case EntityProjects:
		return PrefixProject
	default:
		return ""
	}
}

// Singular returns the singular display name.
func (e EntityType) Singular() string {
	return strings.TrimSuffix(string(e), "s")
}
