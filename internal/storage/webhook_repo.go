package storage

import (
	"context"
	"sort"
	"time"

	"github.com/laraflow/laraflow/internal/model"
	"github.com/laraflow/laraflow/internal/repo"
)

// CreateWebhook stores a new webhook. Names are unique.
func (s *Store) CreateWebhook(_ context.Context, w *model.Webhook) error {
	key := model.GenerateWebhookKey(w.Name)
	exists, err := s.db.Exists(key)
	if err != nil {
		return err
	}
	if exists {
		return repo.ErrConflict
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	w.Key = key
	return s.db.Set(w)
}

// GetWebhook retrieves a webhook by name.
func (s *Store) GetWebhook(_ context.Context, name string) (*model.Webhook, error) {
	w := &model.Webhook{}
	if err := s.db.Get(model.GenerateWebhookKey(name), w); err != nil {
		return nil, err
	}
	return w, nil
}

// ListWebhooks retrieves all webhooks ordered by name.
func (s *Store) ListWebhooks(_ context.Context) ([]*model.Webhook, error) {
	webhooks, err := GetAllByPrefix(s.db, model.PrefixWebhook+":", func() *model.Webhook {
		return &model.Webhook{}
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(webhooks, func(i, j int) bool {
		return webhooks[i].Name < webhooks[j].Name
	})
	return webhooks, nil
}

// ListEnabledWebhooks retrieves all enabled webhooks.
func (s *Store) ListEnabledWebhooks(ctx context.Context) ([]*model.Webhook, error) {
	all, err := s.ListWebhooks(ctx)
	if err != nil {
		return nil, err
	}

	var enabled []*model.Webhook
	for _, wh := range all {
		if wh.Enabled {
			enabled = append(enabled, wh)
		}
	}
	return enabled, nil
}

// SetWebhookEnabled enables or disables a webhook.
func (s *Store) SetWebhookEnabled(_ context.Context, name string, enabled bool) error {
	w := &model.Webhook{}
	return s.db.Mutate(model.GenerateWebhookKey(name), w, func() error {
		w.Enabled = enabled
		return nil
	})
}

// DeleteWebhook removes a webhook by name.
func (s *Store) DeleteWebhook(_ context.Context, name string) error {
	key := model.GenerateWebhookKey(name)
	exists, err := s.db.Exists(key)
	if err != nil {
		return err
	}
	if !exists {
		return ErrKeyNotFound
	}
	return s.db.Delete(key)
}

// UpdateWebhookLastUsed records a delivery attempt and its error, if any.
func (s *Store) UpdateWebhookLastUsed(_ context.Context, name string, at time.Time, lastErr error) error {
	w := &model.Webhook{}
	return s.db.Mutate(model.GenerateWebhookKey(name), w, func() error {
		t := at.UTC().Truncate(time.Second)
		w.LastUsed = &t
		if lastErr != nil {
			w.LastError = lastErr.Error()
		} else {
			w.LastError = ""
		}
		return nil
	})
}
