package model

import (
	"fmt"
	"time"
)

// User is a member who can own projects and be assigned tasks.
type User struct {
	Key       string    `json:"key"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// SetKey sets the database key for this user.
func (u *User) SetKey(key string) {
	u.Key = key
}

// GetKey returns the database key for this user.
func (u *User) GetKey() string {
	return u.Key
}

// GenerateUserKey generates a database key for a user.
func GenerateUserKey(id string) string {
	return fmt.Sprintf("%s:%s", PrefixUser, id)
}

// NewUser creates a new user.
func NewUser(name, email string) *User {
	return &User{
		Name:      name,
		Email:     email,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}
