package model

import (
	"fmt"
	"time"
)

// NotificationKey identifies a deadline notification. At most one record
// exists per distinct key.
type NotificationKey struct {
	RecipientID string           `json:"recipient_id"`
	Kind        NotificationType `json:"kind"`
	TaskID      string           `json:"task_id"`
	OffsetHours int              `json:"offset_hours"`
}

// String returns the dedup key.
func (k NotificationKey) String() string {
	return fmt.Sprintf("%s:%s:%s:%d", k.RecipientID, k.Kind, k.TaskID, k.OffsetHours)
}

// NotificationRecord is a sent notification. It is both the idempotency
// ledger entry and the recipient's inbox entry.
type NotificationRecord struct {
	NotificationKey
	Key       string            `json:"key"`
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	ReadAt    *time.Time        `json:"read_at,omitempty"`
}

// SetKey sets the database key for this record.
func (r *NotificationRecord) SetKey(key string) {
	r.Key = key
}

// GetKey returns the database key for this record.
func (r *NotificationRecord) GetKey() string {
	return r.Key
}

// IsRead returns true if the recipient has read the notification.
func (r *NotificationRecord) IsRead() bool {
	return r.ReadAt != nil
}

// GenerateNotificationKey generates a database key for a notification record.
func GenerateNotificationKey(id string) string {
	return fmt.Sprintf("%s:%s", PrefixNotification, id)
}

// GenerateNotifyIndexKey generates the dedup index key for a notification key.
func GenerateNotifyIndexKey(k NotificationKey) string {
	return fmt.Sprintf("%s:%s", PrefixNotifyIndex, k.String())
}

// NewNotificationRecord creates an inbox record from an outgoing notification.
func NewNotificationRecord(key NotificationKey, n *Notification, at time.Time) *NotificationRecord {
	data := make(map[string]string, len(n.Fields))
	for k, v := range n.Fields {
		data[k] = v
	}
	return &NotificationRecord{
		NotificationKey: key,
		Title:           n.Title,
		Message:         n.Message,
		Data:            data,
		CreatedAt:       at.UTC().Truncate(time.Second),
	}
}
