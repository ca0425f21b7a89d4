// Package deadline sends at-most-once due-soon and overdue notifications for
// assigned open tasks.
package deadline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/laraflow/laraflow/internal/config"
	"github.com/laraflow/laraflow/internal/logging"
	"github.com/laraflow/laraflow/internal/metrics"
	"github.com/laraflow/laraflow/internal/model"
	"github.com/laraflow/laraflow/internal/repo"
)

// Default offsets in hours.
var (
	DefaultDueSoonOffsets = []int{24}
	DefaultOverdueOffsets = []int{1, 24}
)

var (
	// ErrStoreUnavailable fails a run whose store cannot be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrAllQueriesFailed fails a run in which no offset could be queried.
	ErrAllQueriesFailed = errors.New("candidate query failed for every offset")
)

// Outcomes recorded in metrics.
const (
	outcomeSent    = "sent"
	outcomeSkipped = "skipped"
	outcomeFailed  = "failed"
)

// Sender delivers a notification outside the inbox.
type Sender interface {
	Deliver(ctx context.Context, n *model.Notification) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, n *model.Notification) error

// Deliver calls f.
func (f SenderFunc) Deliver(ctx context.Context, n *model.Notification) error {
	return f(ctx, n)
}

// Store is the persistence the notifier needs.
type Store interface {
	FindTasksDueBetween(ctx context.Context, start, end time.Time, loc *time.Location) ([]*model.Task, error)
	repo.Notifications
	Ping(ctx context.Context) error
}

// Options configures one run.
type Options struct {
	// DueSoonOffsets are hours before the due instant. Nil means [24].
	DueSoonOffsets []int
	// OverdueOffsets are hours after the due instant. Nil means [1, 24].
	OverdueOffsets []int
	// Location interprets due dates. Nil means UTC.
	Location *time.Location
}

// OptionsFromConfig builds options from the deadlines section.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		DueSoonOffsets: cfg.Deadlines.DueSoonOffsets,
		OverdueOffsets: cfg.Deadlines.OverdueOffsets,
		Location:       cfg.Location(),
	}
}

func (o Options) withDefaults() Options {
	if o.DueSoonOffsets == nil {
		o.DueSoonOffsets = DefaultDueSoonOffsets
	}
	if o.OverdueOffsets == nil {
		o.OverdueOffsets = DefaultOverdueOffsets
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	return o
}

// OffsetResult reports one (kind, offset) pass.
type OffsetResult struct {
	Kind        model.NotificationType `json:"kind"`
	OffsetHours int                    `json:"offset_hours"`
	Window      Window                 `json:"window"`
	Candidates  int                    `json:"candidates"`
	Sent        int                    `json:"sent"`
	Skipped     int                    `json:"skipped"`
	Failed      int                    `json:"failed"`
	Error       string                 `json:"error,omitempty"`
}

// Report summarises a run.
type Report struct {
	Now       time.Time      `json:"now"`
	Sent      int            `json:"sent"`
	Skipped   int            `json:"skipped"`
	Failed    int            `json:"failed"`
	PerOffset []OffsetResult `json:"per_offset"`
	Duration  time.Duration  `json:"duration"`
}

// Notifier emits deadline notifications.
type Notifier struct {
	store   Store
	sender  Sender
	metrics *metrics.Collector
	logger  *slog.Logger

	// Now is the notifier clock. It is read once per run.
	Now func() time.Time
}

// NewNotifier creates a notifier. A nil sender records inbox entries only.
func NewNotifier(store Store, sender Sender, m *metrics.Collector) *Notifier {
	return &Notifier{
		store:   store,
		sender:  sender,
		metrics: m,
		logger:  logging.Component("deadline"),
		Now:     time.Now,
	}
}

// SetLogger replaces the component logger.
func (n *Notifier) SetLogger(l *slog.Logger) {
	n.logger = l
}

type pass struct {
	kind   model.NotificationType
	offset int
}

// Run performs one pass over every configured offset.
func (n *Notifier) Run(ctx context.Context, opts Options) (*Report, error) {
	opts = opts.withDefaults()
	now := n.Now()
	started := time.Now()
	logger := logging.WithContext(ctx, n.logger)

	if err := n.store.Ping(ctx); err != nil {
		n.metrics.JobFailed(metrics.JobDeadlines)
		logger.Error("store unavailable", logging.KeyError, err)
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	passes := make([]pass, 0, len(opts.DueSoonOffsets)+len(opts.OverdueOffsets))
	for _, h := range opts.DueSoonOffsets {
		passes = append(passes, pass{kind: model.NotifyDueSoon, offset: h})
	}
	for _, h := range opts.OverdueOffsets {
		passes = append(passes, pass{kind: model.NotifyOverdue, offset: h})
	}

	report := &Report{Now: now}
	queryFailures := 0

	for _, p := range passes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res := n.runOffset(ctx, logger, now, p, opts.Location)
		if res.Error != "" {
			queryFailures++
		}
		report.Sent += res.Sent
		report.Skipped += res.Skipped
		report.Failed += res.Failed
		report.PerOffset = append(report.PerOffset, res)
	}

	report.Duration = time.Since(started)

	if len(passes) > 0 && queryFailures == len(passes) {
		n.metrics.JobFailed(metrics.JobDeadlines)
		return report, ErrAllQueriesFailed
	}

	n.metrics.JobSucceeded(metrics.JobDeadlines, now)
	logger.Info("deadline run finished",
		"sent", report.Sent,
		"skipped", report.Skipped,
		"failed", report.Failed,
		logging.KeyDuration, report.Duration.Milliseconds(),
	)
	return report, nil
}

func (n *Notifier) runOffset(ctx context.Context, logger *slog.Logger, now time.Time, p pass, loc *time.Location) OffsetResult {
	w := WindowFor(now, p.kind, p.offset, loc)
	res := OffsetResult{Kind: p.kind, OffsetHours: p.offset, Window: w}

	logger = logger.With(
		logging.KeyKind, string(p.kind),
		logging.KeyOffset, p.offset,
		logging.KeyWindow, w.String(),
	)

	tasks, err := n.store.FindTasksDueBetween(ctx, w.Start, w.End, loc)
	if err != nil {
		logger.Error("candidate query failed", logging.KeyError, err)
		res.Error = err.Error()
		return res
	}
	res.Candidates = len(tasks)

	for _, task := range tasks {
		switch n.notifyTask(ctx, logger, now, p, task, loc) {
		case outcomeSent:
			res.Sent++
		case outcomeSkipped:
			res.Skipped++
		case outcomeFailed:
			res.Failed++
		}
	}

	logger.Debug("offset processed",
		logging.KeyCount, res.Candidates,
		"sent", res.Sent,
		"skipped", res.Skipped,
		"failed", res.Failed,
	)
	return res
}

// notifyTask returns the outcome for one candidate, or "" when the task is
// not eligible.
func (n *Notifier) notifyTask(ctx context.Context, logger *slog.Logger, now time.Time, p pass, task *model.Task, loc *time.Location) string {
	if !task.HasAssignee() || !task.IsOpen() || task.IsTrashed() {
		return ""
	}

	key := model.NotificationKey{
		RecipientID: task.AssignedTo,
		Kind:        p.kind,
		TaskID:      task.ID,
		OffsetHours: p.offset,
	}
	logger = logger.With(logging.KeyTask, task.ID, logging.KeyRecipient, task.AssignedTo)

	outcome := n.deliver(ctx, logger, now, key, task, loc)
	n.metrics.Notification(string(p.kind), outcome)
	return outcome
}

func (n *Notifier) deliver(ctx context.Context, logger *slog.Logger, now time.Time, key model.NotificationKey, task *model.Task, loc *time.Location) string {
	seen, err := n.store.HasNotification(ctx, key)
	if err != nil {
		logger.Error("ledger lookup failed", logging.KeyError, err)
		return outcomeFailed
	}
	if seen {
		return outcomeSkipped
	}

	msg := Message(key, task, now, loc)

	if n.sender != nil {
		if err := n.sender.Deliver(ctx, msg); err != nil {
			logger.Warn("delivery failed", logging.KeyError, err)
			return outcomeFailed
		}
	}

	rec := model.NewNotificationRecord(key, msg, now)
	if err := n.store.RecordNotification(ctx, rec); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			// An overlapping run recorded the same key first.
			logger.Debug("already recorded")
			return outcomeSkipped
		}
		logger.Error("recording notification failed", logging.KeyError, err)
		return outcomeFailed
	}

	logger.Info("notification sent")
	return outcomeSent
}

// Message builds the outgoing notification for a task.
func Message(key model.NotificationKey, task *model.Task, now time.Time, loc *time.Location) *model.Notification {
	due, _ := task.DueAt(loc)
	dueText := due.Format("Mon Jan 2, 15:04 MST")

	var title, body string
	switch key.Kind {
	case model.NotifyOverdue:
		title = "Task overdue"
		body = fmt.Sprintf("%q was due %s.", task.Title, dueText)
	default:
		title = "Task due soon"
		body = fmt.Sprintf("%q is due %s.", task.Title, dueText)
	}

	n := model.NewNotification(key.Kind, title, body).
		WithField("Task", task.Title).
		WithField("Due", dueText).
		WithField("Offset", strconv.Itoa(key.OffsetHours)+"h")
	n.Timestamp = now
	return n
}
