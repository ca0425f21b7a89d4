package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/laraflow/laraflow/internal/logging"
	"github.com/laraflow/laraflow/internal/metrics"
	"github.com/laraflow/laraflow/internal/model"
	"github.com/laraflow/laraflow/internal/repo"
)

// ErrDeliveryFailed is returned by Deliver when every attempted webhook failed.
var ErrDeliveryFailed = errors.New("notification delivery failed")

// Dispatcher sends notifications to all enabled webhooks.
type Dispatcher struct {
	webhooks   repo.Webhooks
	httpClient *HTTPClient
	metrics    *metrics.Collector
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient sets the HTTP client used for delivery.
func WithHTTPClient(c *HTTPClient) Option {
	return func(d *Dispatcher) { d.httpClient = c }
}

// WithMetrics records webhook sends on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithLogger sets the dispatcher logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithClock sets the clock used for last-used timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher creates a new notification dispatcher.
func NewDispatcher(webhooks repo.Webhooks, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		webhooks:   webhooks,
		httpClient: NewHTTPClient(),
		logger:     logging.Component("notify"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DispatchResult contains the result of dispatching to a single webhook.
type DispatchResult struct {
	WebhookName string
	Success     bool
	StatusCode  int
	Attempts    int
	Duration    time.Duration
	Error       error
}

// SendNotification sends n to every enabled webhook subscribed to its type.
// It returns one result per attempted webhook.
func (d *Dispatcher) SendNotification(ctx context.Context, n *model.Notification) ([]DispatchResult, error) {
	webhooks, err := d.webhooks.ListEnabledWebhooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}

	targets := webhooks[:0:0]
	for _, w := range webhooks {
		if w.Accepts(n.Type) {
			targets = append(targets, w)
		}
	}
	if len(targets) == 0 {
		return nil, nil
	}

	var wg sync.WaitGroup
	results := make([]DispatchResult, len(targets))

	for i, webhook := range targets {
		wg.Add(1)
		go func(idx int, wh *model.Webhook) {
			defer wg.Done()
			results[idx] = d.sendToWebhook(ctx, n, wh)
		}(i, webhook)
	}

	wg.Wait()
	return results, nil
}

// Deliver sends n to the enabled webhooks. It fails only when at least one
// webhook was attempted and none succeeded. No webhooks is a success.
func (d *Dispatcher) Deliver(ctx context.Context, n *model.Notification) error {
	results, err := d.SendNotification(ctx, n)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return nil
	}

	errs := make([]error, 0, len(results))
	for _, r := range results {
		if r.Success {
			return nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", r.WebhookName, r.Error))
	}
	return fmt.Errorf("%w: %w", ErrDeliveryFailed, errors.Join(errs...))
}

func (d *Dispatcher) sendToWebhook(ctx context.Context, n *model.Notification, webhook *model.Webhook) DispatchResult {
	sendResult := d.httpClient.SendNotification(ctx, webhook, n)

	result := DispatchResult{
		WebhookName: webhook.Name,
		StatusCode:  sendResult.StatusCode,
		Attempts:    sendResult.Attempts,
		Duration:    sendResult.Duration,
		Error:       sendResult.Error,
		Success:     sendResult.Error == nil,
	}

	d.metrics.WebhookSend(webhook.Type, result.Success)

	logger := logging.WithContext(ctx, d.logger).With(
		logging.KeyWebhook, webhook.Name,
		logging.KeyStatus, result.StatusCode,
		logging.KeyDuration, result.Duration.Milliseconds(),
	)
	if result.Success {
		logger.Debug("webhook delivered", "attempts", result.Attempts)
	} else {
		logger.Warn("webhook delivery failed", logging.KeyError, result.Error)
	}

	d.updateWebhookStatus(ctx, webhook.Name, result.Error)
	return result
}

// updateWebhookStatus records the last use of a webhook. Failures here are
// logged and never affect delivery.
func (d *Dispatcher) updateWebhookStatus(ctx context.Context, name string, sendErr error) {
	if err := d.webhooks.UpdateWebhookLastUsed(ctx, name, d.now(), sendErr); err != nil {
		d.logger.Debug("failed to update webhook status", logging.KeyWebhook, name, logging.KeyError, err)
	}
}

// SendToSingle sends a notification to a single webhook by name, regardless
// of its event filter.
func (d *Dispatcher) SendToSingle(ctx context.Context, n *model.Notification, webhookName string) DispatchResult {
	webhook, err := d.webhooks.GetWebhook(ctx, webhookName)
	if err != nil {
		return DispatchResult{
			WebhookName: webhookName,
			Error:       fmt.Errorf("webhook not found: %w", err),
		}
	}

	return d.sendToWebhook(ctx, n, webhook)
}

// TestWebhook sends a test notification to a specific webhook.
func (d *Dispatcher) TestWebhook(ctx context.Context, webhookName string) DispatchResult {
	now := d.now()
	n := model.NewNotification(
		model.NotifyTest,
		"Laraflow Test",
		"This is a test notification from Laraflow. If you see this, your webhook is configured correctly!",
	).WithField("Webhook", webhookName).
		WithField("Time", now.UTC().Format("15:04 UTC")).
		WithColor(model.ColorSuccess)
	n.Timestamp = now

	return d.SendToSingle(ctx, n, webhookName)
}

// CountEnabledWebhooks returns the number of enabled webhooks.
func (d *Dispatcher) CountEnabledWebhooks(ctx context.Context) int {
	webhooks, err := d.webhooks.ListEnabledWebhooks(ctx)
	if err != nil {
		return 0
	}
	return len(webhooks)
}
