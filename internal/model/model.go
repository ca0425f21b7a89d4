// Package model defines the domain models for Laraflow.
package model

// AppName is the application name used for data, config and state directories.
const AppName = "laraflow"

// Model is the interface that all database models must implement.
type Model interface {
	// SetKey sets the database key for this model.
	SetKey(key string)
	// GetKey returns the database key for this model.
	GetKey() string
}

// KeyPrefix constants for database key generation.
const (
	PrefixUser         = "user"
	PrefixProject      = "project"
	PrefixList         = "list"
	PrefixTask         = "task"
	PrefixNotification = "notification"
	PrefixNotifyIndex  = "notifykey"
)
