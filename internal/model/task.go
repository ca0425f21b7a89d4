package model

import (
	"fmt"
	"time"
)

// Date and time layouts used for task due fields.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// Task is a card in a list.
type Task struct {
	SoftDeletes
	Key         string     `json:"key"`
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	ListID      string     `json:"list_id"`
	Title       string     `json:"title"`
	DueDate     string     `json:"due_date,omitempty"` // YYYY-MM-DD
	DueTime     string     `json:"due_time,omitempty"` // HH:MM:SS
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	AssignedTo  string     `json:"assigned_to,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// SetKey sets the database key for this task.
func (t *Task) SetKey(key string) {
	t.Key = key
}

// Label returns a display name for the record.
func (t *Task) Label() string {
	return t.Title
}

// GetKey returns the database key for this task.
func (t *Task) GetKey() string {
	return t.Key
}

// GenerateTaskKey generates a database key for a task.
func GenerateTaskKey(id string) string {
	return fmt.Sprintf("%s:%s", PrefixTask, id)
}

// NewTask creates a new open task in a list.
func NewTask(projectID, listID, title string) *Task {
	return &Task{
		ProjectID: projectID,
		ListID:    listID,
		Title:     title,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

// SetDue sets the due date and, when withTime is true, the due time from t.
func (t *Task) SetDue(due time.Time, withTime bool) {
	t.DueDate = due.Format(DateLayout)
	if withTime {
		t.DueTime = due.Format(TimeLayout)
	} else {
		t.DueTime = ""
	}
}

// DueAt returns the instant the task is due, interpreted in loc.
// A task without a due time is due at the end of its due day.
// ok is false if the task has no (valid) due date.
func (t *Task) DueAt(loc *time.Location) (due time.Time, ok bool) {
	if t.DueDate == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation(DateLayout, t.DueDate, loc)
	if err != nil {
		return time.Time{}, false
	}
	if t.DueTime == "" {
		return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, loc), true
	}
	clock, err := ParseDueTime(t.DueTime)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(day.Year(), day.Month(), day.Day(),
		clock.Hour(), clock.Minute(), clock.Second(), 0, loc), true
}

// ParseDueTime parses a due time given as HH:MM:SS or HH:MM.
func ParseDueTime(s string) (time.Time, error) {
	if c, err := time.Parse(TimeLayout, s); err == nil {
		return c, nil
	}
	return time.Parse("15:04", s)
}

// IsOpen returns true if the task has not been completed.
func (t *Task) IsOpen() bool {
	return t.CompletedAt == nil
}

// HasAssignee returns true if the task is assigned to a user.
func (t *Task) HasAssignee() bool {
	return t.AssignedTo != ""
}

// Complete marks the task completed at the given time.
func (t *Task) Complete(at time.Time) {
	c := at.UTC().Truncate(time.Second)
	t.CompletedAt = &c
}

// IsOverdue returns true if the due instant has passed and the task is open.
func (t *Task) IsOverdue(now time.Time, loc *time.Location) bool {
	due, ok := t.DueAt(loc)
	if !ok {
		return false
	}
	return t.IsOpen() && now.After(due)
}

// IsDueBetween returns true if the due instant lies in [start, end].
func (t *Task) IsDueBetween(start, end time.Time, loc *time.Location) bool {
	due, ok := t.DueAt(loc)
	if !ok {
		return false
	}
	return !due.Before(start) && !due.After(end)
}

// DueDateRange returns the due_date strings that can hold an instant in
// [start, end] when interpreted in loc, for coarse date prefiltering.
func DueDateRange(start, end time.Time, loc *time.Location) (from, to string) {
	if loc == nil {
		loc = time.UTC
	}
	return start.In(loc).Format(DateLayout), end.In(loc).Format(DateLayout)
}
