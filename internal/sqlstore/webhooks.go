package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/laraflow/laraflow/internal/model"
	"github.com/laraflow/laraflow/internal/repo"
)

const webhookColumns = `name, type, url, enabled, events, template, created_at, last_used, last_error`

func joinEvents(events []model.NotificationType) string {
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = string(e)
	}
	return strings.Join(names, ",")
}

func splitEvents(s string) []model.NotificationType {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	events := make([]model.NotificationType, len(parts))
	for i, p := range parts {
		events[i] = model.NotificationType(p)
	}
	return events
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func scanWebhook(row interface{ Scan(...any) error }) (*model.Webhook, error) {
	w := &model.Webhook{}
	var (
		enabled  int
		events   string
		created  int64
		lastUsed sql.NullInt64
	)
	err := row.Scan(&w.Name, &w.Type, &w.URL, &enabled, &events, &w.Template,
		&created, &lastUsed, &w.LastError)
	if err != nil {
		return nil, err
	}
	w.Enabled = enabled != 0
	w.Events = splitEvents(events)
	w.CreatedAt = fromUnix(created)
	w.LastUsed = fromNullUnix(lastUsed)
	w.Key = model.GenerateWebhookKey(w.Name)
	return w, nil
}

// CreateWebhook inserts a webhook. Names are unique.
func (s *Store) CreateWebhook(ctx context.Context, w *model.Webhook) error {
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now()
	}
	res, err := s.exec(ctx,
		`INSERT INTO webhooks (`+webhookColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (name) DO NOTHING`,
		w.Name, w.Type, w.URL, boolInt(w.Enabled), joinEvents(w.Events), w.Template,
		toUnix(w.CreatedAt), toNullUnix(w.LastUsed), w.LastError)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repo.ErrConflict
	}
	w.Key = model.GenerateWebhookKey(w.Name)
	return nil
}

// GetWebhook retrieves a webhook by name.
func (s *Store) GetWebhook(ctx context.Context, name string) (*model.Webhook, error) {
	w, err := scanWebhook(s.queryRow(ctx, `SELECT `+webhookColumns+` FROM webhooks WHERE name = ?`, name))
	if err != nil {
		return nil, notFound(err)
	}
	return w, nil
}

func (s *Store) listWebhooks(ctx context.Context, enabledOnly bool) ([]*model.Webhook, error) {
	q := `SELECT ` + webhookColumns + ` FROM webhooks`
	if enabledOnly {
		q += ` WHERE enabled = 1`
	}
	q += ` ORDER BY name`

	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var webhooks []*model.Webhook
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		webhooks = append(webhooks, w)
	}
	return webhooks, rows.Err()
}

// ListWebhooks retrieves all webhooks ordered by name.
func (s *Store) ListWebhooks(ctx context.Context) ([]*model.Webhook, error) {
	return s.listWebhooks(ctx, false)
}

// ListEnabledWebhooks retrieves all enabled webhooks.
func (s *Store) ListEnabledWebhooks(ctx context.Context) ([]*model.Webhook, error) {
	return s.listWebhooks(ctx, true)
}

// SetWebhookEnabled enables or disables a webhook.
func (s *Store) SetWebhookEnabled(ctx context.Context, name string, enabled bool) error {
	res, err := s.exec(ctx, `UPDATE webhooks SET enabled = ? WHERE name = ?`, boolInt(enabled), name)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// DeleteWebhook removes a webhook by name.
func (s *Store) DeleteWebhook(ctx context.Context, name string) error {
	res, err := s.exec(ctx, `DELETE FROM webhooks WHERE name = ?`, name)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// UpdateWebhookLastUsed records a delivery attempt and its error, if any.
func (s *Store) UpdateWebhookLastUsed(ctx context.Context, name string, at time.Time, lastErr error) error {
	msg := ""
	if lastErr != nil {
		msg = lastErr.Error()
	}
	res, err := s.exec(ctx,
		`UPDATE webhooks SET last_used = ?, last_error = ? WHERE name = ?`,
		toUnix(at), msg, name)
	if err != nil {
		return err
	}
	return expectOne(res)
}
