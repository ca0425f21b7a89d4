package output

import (
	"github.com/laraflow/laraflow/internal/deadline"
	"github.com/laraflow/laraflow/internal/model"
	"github.com/laraflow/laraflow/internal/repo"
	"github.com/laraflow/laraflow/internal/retention"
)

// ErrorResponse represents an error in JSON.
type ErrorResponse struct {
	Status     string `json:"status"`
	Error      string `json:"error"`
	Suggestion string `json:"suggestion,omitempty"`
}

// MessageResponse acknowledges a command that has no other output.
type MessageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

// SweepResponse is a retention report in JSON.
type SweepResponse struct {
	DryRun     bool                   `json:"dry_run"`
	Cutoff     string                 `json:"cutoff"`
	StartedAt  string                 `json:"started_at"`
	DurationMs int64                  `json:"duration_ms"`
	Total      int                    `json:"total"`
	Failed     bool                   `json:"failed"`
	Results    []retention.TypeResult `json:"results"`
}

// NewSweepResponse converts a retention report.
func NewSweepResponse(r *retention.Report) *SweepResponse {
	results := r.Results
	if results == nil {
		results = []retention.TypeResult{}
	}
	return &SweepResponse{
		DryRun:     r.DryRun,
		Cutoff:     RFC3339(r.Cutoff),
		StartedAt:  RFC3339(r.StartedAt),
		DurationMs: r.Duration.Milliseconds(),
		Total:      r.Total,
		Failed:     r.HasFailures(),
		Results:    results,
	}
}

// OffsetOutput is one offset pass in JSON.
type OffsetOutput struct {
	Kind        string `json:"kind"`
	OffsetHours int    `json:"offset_hours"`
	WindowStart string `json:"window_start"`
	WindowEnd   string `json:"window_end"`
	Candidates  int    `json:"candidates"`
	Sent        int    `json:"sent"`
	Skipped     int    `json:"skipped"`
	Failed      int    `json:"failed"`
	Error       string `json:"error,omitempty"`
}

// DeadlineResponse is a deadline report in JSON.
type DeadlineResponse struct {
	Now        string         `json:"now"`
	DurationMs int64          `json:"duration_ms"`
	Sent       int            `json:"sent"`
	Skipped    int            `json:"skipped"`
	Failed     int            `json:"failed"`
	Offsets    []OffsetOutput `json:"offsets"`
}

// NewDeadlineResponse converts a deadline report.
func NewDeadlineResponse(r *deadline.Report) *DeadlineResponse {
	out := &DeadlineResponse{
		Now:        RFC3339(r.Now),
		DurationMs: r.Duration.Milliseconds(),
		Sent:       r.Sent,
		Skipped:    r.Skipped,
		Failed:     r.Failed,
		Offsets:    make([]OffsetOutput, 0, len(r.PerOffset)),
	}
	for _, o := range r.PerOffset {
		out.Offsets = append(out.Offsets, OffsetOutput{
			Kind:        string(o.Kind),
			OffsetHours: o.OffsetHours,
			WindowStart: RFC3339(o.Window.Start),
			WindowEnd:   RFC3339(o.Window.End),
			Candidates:  o.Candidates,
			Sent:        o.Sent,
			Skipped:     o.Skipped,
			Failed:      o.Failed,
			Error:       o.Error,
		})
	}
	return out
}

// TrashedOutput is a trashed record in JSON.
type TrashedOutput struct {
	Entity    string `json:"entity"`
	ID        string `json:"id"`
	Label     string `json:"label"`
	DeletedAt string `json:"deleted_at"`
}

// NewTrashedOutputs converts trashed records of one entity type.
func NewTrashedOutputs(entity model.EntityType, recs []repo.TrashedRecord) []TrashedOutput {
	out := make([]TrashedOutput, 0, len(recs))
	for _, r := range recs {
		out = append(out, TrashedOutput{
			Entity:    string(entity),
			ID:        r.ID,
			Label:     r.Label,
			DeletedAt: RFC3339(r.DeletedAt),
		})
	}
	return out
}

// UserOutput represents a user in JSON.
type UserOutput struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

// NewUserOutput converts a user.
func NewUserOutput(u *model.User) UserOutput {
	return UserOutput{ID: u.ID, Name: u.Name, Email: u.Email, CreatedAt: RFC3339(u.CreatedAt)}
}

// ProjectOutput represents a project in JSON.
type ProjectOutput struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	OwnerID   string `json:"owner_id,omitempty"`
	CreatedAt string `json:"created_at"`
	DeletedAt string `json:"deleted_at,omitempty"`
}

// NewProjectOutput converts a project.
func NewProjectOutput(p *model.Project) ProjectOutput {
	return ProjectOutput{
		ID:        p.ID,
		Name:      p.Name,
		OwnerID:   p.OwnerID,
		CreatedAt: RFC3339(p.CreatedAt),
		DeletedAt: OptionalRFC3339(p.DeletedAt),
	}
}

// ListOutput represents a task list in JSON.
type ListOutput struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Position  int    `json:"position"`
	DeletedAt string `json:"deleted_at,omitempty"`
}

// NewListOutput converts a task list.
func NewListOutput(l *model.TaskList) ListOutput {
	return ListOutput{
		ID:        l.ID,
		ProjectID: l.ProjectID,
		Name:      l.Name,
		Position:  l.Position,
		DeletedAt: OptionalRFC3339(l.DeletedAt),
	}
}

// TaskOutput represents a task in JSON.
type TaskOutput struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	ListID      string `json:"list_id"`
	Title       string `json:"title"`
	DueDate     string `json:"due_date,omitempty"`
	DueTime     string `json:"due_time,omitempty"`
	AssignedTo  string `json:"assigned_to,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
	DeletedAt   string `json:"deleted_at,omitempty"`
	Overdue     bool   `json:"overdue"`
}

// NewTaskOutput converts a task.
func NewTaskOutput(t *model.Task) TaskOutput {
	return TaskOutput{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		ListID:      t.ListID,
		Title:       t.Title,
		DueDate:     t.DueDate,
		DueTime:     t.DueTime,
		AssignedTo:  t.AssignedTo,
		CompletedAt: OptionalRFC3339(t.CompletedAt),
		DeletedAt:   OptionalRFC3339(t.DeletedAt),
	}
}

// NotificationOutput represents an inbox entry in JSON.
type NotificationOutput struct {
	ID          string            `json:"id"`
	RecipientID string            `json:"recipient_id"`
	Kind        string            `json:"kind"`
	TaskID      string            `json:"task_id"`
	OffsetHours int               `json:"offset_hours"`
	Title       string            `json:"title"`
	Message     string            `json:"message"`
	Data        map[string]string `json:"data,omitempty"`
	CreatedAt   string            `json:"created_at"`
	ReadAt      string            `json:"read_at,omitempty"`
}

// NewNotificationOutput converts a notification record.
func NewNotificationOutput(r *model.NotificationRecord) NotificationOutput {
	return NotificationOutput{
		ID:          r.ID,
		RecipientID: r.RecipientID,
		Kind:        string(r.Kind),
		TaskID:      r.TaskID,
		OffsetHours: r.OffsetHours,
		Title:       r.Title,
		Message:     r.Message,
		Data:        r.Data,
		CreatedAt:   RFC3339(r.CreatedAt),
		ReadAt:      OptionalRFC3339(r.ReadAt),
	}
}

// WebhookOutput represents a webhook in JSON. The URL is masked.
type WebhookOutput struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	URL       string   `json:"url"`
	Enabled   bool     `json:"enabled"`
	Events    []string `json:"events,omitempty"`
	LastUsed  string   `json:"last_used,omitempty"`
	LastError string   `json:"last_error,omitempty"`
}

// NewWebhookOutput converts a webhook.
func NewWebhookOutput(w *model.Webhook) WebhookOutput {
	events := make([]string, 0, len(w.Events))
	for _, e := range w.Events {
		events = append(events, string(e))
	}
	return WebhookOutput{
		Name:      w.Name,
		Type:      w.Type,
		URL:       w.MaskedURL(),
		Enabled:   w.Enabled,
		Events:    events,
		LastUsed:  OptionalRFC3339(w.LastUsed),
		LastError: w.LastError,
	}
}
