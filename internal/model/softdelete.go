package model

import "time"

// SoftDeletes marks a record as logically deleted without removing it.
// A non-nil DeletedAt means the record is in the trash and will be
// physically erased once it is older than the retention window.
type SoftDeletes struct {
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// IsTrashed returns true if the record has been soft deleted.
func (s *SoftDeletes) IsTrashed() bool {
	return s.DeletedAt != nil
}

// Trash soft deletes the record at the given time.
func (s *SoftDeletes) Trash(at time.Time) {
	t := at.UTC().Truncate(time.Second)
	s.DeletedAt = &t
}

// Restore clears the deletion timestamp.
func (s *SoftDeletes) Restore() {
	s.DeletedAt = nil
}

// TrashedBefore returns true if the record was soft deleted strictly before cutoff.
func (s *SoftDeletes) TrashedBefore(cutoff time.Time) bool {
	return s.DeletedAt != nil && s.DeletedAt.Before(cutoff)
}

// TrashedAt returns the deletion time, or the zero time if not trashed.
func (s *SoftDeletes) TrashedAt() time.Time {
	if s.DeletedAt == nil {
		return time.Time{}
	}
	return *s.DeletedAt
}
