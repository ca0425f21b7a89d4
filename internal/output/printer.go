package output

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/laraflow/laraflow/internal/deadline"
	"github.com/laraflow/laraflow/internal/errors"
	"github.com/laraflow/laraflow/internal/model"
	"github.com/laraflow/laraflow/internal/notify"
	"github.com/laraflow/laraflow/internal/retention"
)

// Printer renders command results in the configured format.
type Printer struct {
	*Formatter
	cli   *CLIFormatter
	plain *PlainFormatter
}

// NewPrinter creates a printer over f.
func NewPrinter(f *Formatter) *Printer {
	return &Printer{
		Formatter: f,
		cli:       NewCLIFormatter(f),
		plain:     NewPlainFormatter(f),
	}
}

// CLI returns the styled formatter.
func (p *Printer) CLI() *CLIFormatter {
	return p.cli
}

// Done acknowledges a mutation, with the affected ID if any.
func (p *Printer) Done(message, id string) error {
	switch p.Format {
	case FormatJSON:
		return p.JSON(MessageResponse{Status: "ok", Message: message, ID: id})
	case FormatPlain:
		if id != "" {
			p.plain.Row(id)
		}
		return nil
	default:
		if id != "" {
			message = fmt.Sprintf("%s (%s)", message, id)
		}
		p.cli.Success(message)
		return nil
	}
}

// PrintError reports err. JSON output goes to the formatter's writer, other
// formats print the message and suggestion.
func (p *Printer) PrintError(err error) {
	if err == nil {
		return
	}
	if p.Format == FormatJSON {
		_ = p.JSON(ErrorResponse{
			Status:     "error",
			Error:      err.Error(),
			Suggestion: errors.GetSuggestion(err),
		})
		return
	}
	p.cli.Error(errors.FormatUserError(err))
}

// SweepReport prints a retention report.
func (p *Printer) SweepReport(r *retention.Report) error {
	switch p.Format {
	case FormatJSON:
		return p.JSON(NewSweepResponse(r))
	case FormatPlain:
		for _, res := range r.Results {
			p.plain.Row(res.Entity, string(res.Status), strconv.Itoa(res.Count), res.Error)
		}
		p.plain.Row("total", "", strconv.Itoa(r.Total), "")
		return nil
	}

	title := "Retention sweep"
	verb := "erased"
	if r.DryRun {
		title += " (dry run)"
		verb = "would erase"
	}
	p.cli.Title(title)
	p.cli.KeyValue("Cutoff", p.Time(r.Cutoff))
	p.Println()

	rows := make([]TableRow, 0, len(r.Results))
	for _, res := range r.Results {
		rows = append(rows, TableRow{Columns: []string{
			res.Entity,
			p.cli.Status(string(res.Status)),
			strconv.Itoa(res.Count),
			res.Error,
		}})
	}
	p.cli.PrintTable([]string{"ENTITY", "STATUS", "COUNT", "ERROR"}, rows)
	p.Println()

	summary := fmt.Sprintf("%s %s in %s", strings.ToUpper(verb[:1])+verb[1:], plural(r.Total, "record"), FormatDuration(r.Duration))
	if r.HasFailures() {
		p.cli.Warning(summary + "; some entity types failed")
	} else {
		p.cli.Success(summary)
	}
	return nil
}

// DeadlineReport prints a deadline notifier report.
func (p *Printer) DeadlineReport(r *deadline.Report) error {
	switch p.Format {
	case FormatJSON:
		return p.JSON(NewDeadlineResponse(r))
	case FormatPlain:
		for _, o := range r.PerOffset {
			p.plain.Row(string(o.Kind), strconv.Itoa(o.OffsetHours),
				strconv.Itoa(o.Sent), strconv.Itoa(o.Skipped), strconv.Itoa(o.Failed))
		}
		p.plain.Row("total", "", strconv.Itoa(r.Sent), strconv.Itoa(r.Skipped), strconv.Itoa(r.Failed))
		return nil
	}

	p.cli.Title("Deadline notifications")
	p.cli.KeyValue("Now", p.Time(r.Now))
	p.Println()

	rows := make([]TableRow, 0, len(r.PerOffset))
	for _, o := range r.PerOffset {
		rows = append(rows, TableRow{Columns: []string{
			string(o.Kind),
			fmt.Sprintf("%dh", o.OffsetHours),
			fmt.Sprintf("%s → %s", p.Time(o.Window.Start), p.Time(o.Window.End)),
			strconv.Itoa(o.Sent),
			strconv.Itoa(o.Skipped),
			strconv.Itoa(o.Failed),
		}})
	}
	p.cli.PrintTable([]string{"KIND", "OFFSET", "WINDOW", "SENT", "SKIPPED", "FAILED"}, rows)
	p.Println()

	summary := fmt.Sprintf("Sent %s, skipped %d", plural(r.Sent, "notification"), r.Skipped)
	if r.Failed > 0 {
		p.cli.Warning(fmt.Sprintf("%s, %d failed", summary, r.Failed))
	} else {
		p.cli.Success(summary)
	}
	return nil
}

// Trashed prints trashed records.
func (p *Printer) Trashed(recs []TrashedOutput) error {
	switch p.Format {
	case FormatJSON:
		return p.JSON(recs)
	case FormatPlain:
		for _, r := range recs {
			p.plain.Row(r.Entity, r.ID, r.DeletedAt, r.Label)
		}
		return nil
	}

	if len(recs) == 0 {
		p.cli.Muted("Trash is empty.")
		return nil
	}
	rows := make([]TableRow, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, TableRow{Columns: []string{r.Entity, r.ID, r.Label, r.DeletedAt}})
	}
	p.cli.PrintTable([]string{"ENTITY", "ID", "NAME", "DELETED"}, rows)
	return nil
}

// Users prints users.
func (p *Printer) Users(users []*model.User) error {
	out := make([]UserOutput, 0, len(users))
	for _, u := range users {
		out = append(out, NewUserOutput(u))
	}
	return p.table(out, len(out) == 0, "No users.",
		[]string{"ID", "NAME", "EMAIL"},
		func(yield func(...string)) {
			for _, u := range out {
				yield(u.ID, u.Name, u.Email)
			}
		})
}

// Projects prints projects.
func (p *Printer) Projects(projects []*model.Project) error {
	out := make([]ProjectOutput, 0, len(projects))
	for _, pr := range projects {
		out = append(out, NewProjectOutput(pr))
	}
	return p.table(out, len(out) == 0, "No projects.",
		[]string{"ID", "NAME", "OWNER", "DELETED"},
		func(yield func(...string)) {
			for _, pr := range out {
				yield(pr.ID, pr.Name, pr.OwnerID, pr.DeletedAt)
			}
		})
}

// Lists prints task lists.
func (p *Printer) Lists(lists []*model.TaskList) error {
	out := make([]ListOutput, 0, len(lists))
	for _, l := range lists {
		out = append(out, NewListOutput(l))
	}
	return p.table(out, len(out) == 0, "No lists.",
		[]string{"ID", "PROJECT", "NAME", "POS"},
		func(yield func(...string)) {
			for _, l := range out {
				yield(l.ID, l.ProjectID, l.Name, strconv.Itoa(l.Position))
			}
		})
}

// Tasks prints tasks.
func (p *Printer) Tasks(tasks []*model.Task, now time.Time) error {
	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	out := make([]TaskOutput, 0, len(tasks))
	for _, t := range tasks {
		o := NewTaskOutput(t)
		o.Overdue = t.IsOverdue(now, loc)
		out = append(out, o)
	}
	return p.table(out, len(out) == 0, "No tasks.",
		[]string{"ID", "TITLE", "DUE", "ASSIGNEE", "STATUS"},
		func(yield func(...string)) {
			for _, t := range out {
				due := strings.TrimSpace(t.DueDate + " " + t.DueTime)
				status := ""
				switch {
				case t.CompletedAt != "":
					status = p.statusFor("done")
				case t.Overdue:
					status = p.statusFor("overdue")
				}
				yield(t.ID, t.Title, due, t.AssignedTo, status)
			}
		})
}

// Notifications prints inbox entries.
func (p *Printer) Notifications(recs []*model.NotificationRecord) error {
	out := make([]NotificationOutput, 0, len(recs))
	for _, r := range recs {
		out = append(out, NewNotificationOutput(r))
	}
	return p.table(out, len(out) == 0, "No notifications.",
		[]string{"ID", "KIND", "OFFSET", "TITLE", "CREATED", "READ"},
		func(yield func(...string)) {
			for _, n := range out {
				read := ""
				if n.ReadAt != "" {
					read = "yes"
				}
				yield(n.ID, n.Kind, strconv.Itoa(n.OffsetHours)+"h", n.Title, n.CreatedAt, read)
			}
		})
}

// Webhooks prints webhooks with masked URLs.
func (p *Printer) Webhooks(webhooks []*model.Webhook) error {
	out := make([]WebhookOutput, 0, len(webhooks))
	for _, w := range webhooks {
		out = append(out, NewWebhookOutput(w))
	}
	return p.table(out, len(out) == 0, "No webhooks configured.",
		[]string{"NAME", "TYPE", "STATUS", "URL", "LAST ERROR"},
		func(yield func(...string)) {
			for _, w := range out {
				status := "disabled"
				if w.Enabled {
					status = "enabled"
				}
				yield(w.Name, w.Type, p.statusFor(status), w.URL, w.LastError)
			}
		})
}

// WebhookTest prints the result of a test delivery.
func (p *Printer) WebhookTest(r notify.DispatchResult) error {
	if p.Format == FormatJSON {
		resp := struct {
			Webhook    string `json:"webhook"`
			Success    bool   `json:"success"`
			StatusCode int    `json:"status_code,omitempty"`
			Attempts   int    `json:"attempts"`
			DurationMs int64  `json:"duration_ms"`
			Error      string `json:"error,omitempty"`
		}{
			Webhook:    r.WebhookName,
			Success:    r.Success,
			StatusCode: r.StatusCode,
			Attempts:   r.Attempts,
			DurationMs: r.Duration.Milliseconds(),
		}
		if r.Error != nil {
			resp.Error = r.Error.Error()
		}
		return p.JSON(resp)
	}
	if r.Success {
		return p.Done(fmt.Sprintf("Test notification delivered to %s (HTTP %d, %s)",
			r.WebhookName, r.StatusCode, FormatDuration(r.Duration)), "")
	}
	p.cli.Error(fmt.Sprintf("Test notification to %s failed: %v", r.WebhookName, r.Error))
	return nil
}

func (p *Printer) statusFor(s string) string {
	if p.Format == FormatCLI {
		return p.cli.Status(s)
	}
	return s
}

// table prints v as JSON, or rows as plain lines or a CLI table.
func (p *Printer) table(v any, empty bool, emptyMsg string, headers []string, rows func(yield func(...string))) error {
	switch p.Format {
	case FormatJSON:
		return p.JSON(v)
	case FormatPlain:
		rows(func(cols ...string) { p.plain.Row(cols...) })
		return nil
	}

	if empty {
		p.cli.Muted(emptyMsg)
		return nil
	}
	var tr []TableRow
	rows(func(cols ...string) { tr = append(tr, TableRow{Columns: cols}) })
	p.cli.PrintTable(headers, tr)
	return nil
}
