package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// PrefixWebhook is the database key prefix for webhooks.
const PrefixWebhook = "webhook"

// Webhook type constants.
const (
	WebhookTypeDiscord = "discord"
	WebhookTypeSlack   = "slack"
	WebhookTypeTeams   = "teams"
	WebhookTypeGeneric = "generic"
)

// Webhook is an outgoing notification endpoint.
type Webhook struct {
	Key       string             `json:"key"`
	Name      string             `json:"name"`
	Type      string             `json:"type"`
	URL       string             `json:"url"`
	Enabled   bool               `json:"enabled"`
	Events    []NotificationType `json:"events,omitempty"`   // empty subscribes to all
	Template  string             `json:"template,omitempty"` // generic webhooks only
	CreatedAt time.Time          `json:"created_at"`
	LastUsed  *time.Time         `json:"last_used,omitempty"`
	LastError string             `json:"last_error,omitempty"`
}

// SetKey sets the database key for this webhook.
func (w *Webhook) SetKey(key string) {
	w.Key = key
}

// GetKey returns the database key for this webhook.
func (w *Webhook) GetKey() string {
	return w.Key
}

// Accepts returns true if the webhook is enabled and subscribed to t.
// Test notifications are always accepted by enabled webhooks.
func (w *Webhook) Accepts(t NotificationType) bool {
	if !w.Enabled {
		return false
	}
	if len(w.Events) == 0 || t == NotifyTest {
		return true
	}
	for _, e := range w.Events {
		if e == t {
			return true
		}
	}
	return false
}

// MaskedURL returns the URL with the secret path masked.
func (w *Webhook) MaskedURL() string {
	if len(w.URL) > 40 {
		return w.URL[:30] + "***"
	}
	return w.URL
}

// GenerateWebhookKey generates a database key for a webhook.
func GenerateWebhookKey(name string) string {
	return fmt.Sprintf("%s:%s", PrefixWebhook, name)
}

// NewWebhook creates a new enabled webhook.
func NewWebhook(name, webhookType, url string) *Webhook {
	return &Webhook{
		Key:       GenerateWebhookKey(name),
		Name:      name,
		Type:      webhookType,
		URL:       url,
		Enabled:   true,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

// IsValidWebhookType checks if a type is valid.
func IsValidWebhookType(t string) bool {
	switch t {
	case WebhookTypeDiscord, WebhookTypeSlack, WebhookTypeTeams, WebhookTypeGeneric:
		return true
	}
	return false
}

var webhookNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// IsValidWebhookName checks if a webhook name is valid.
func IsValidWebhookName(name string) bool {
	if len(name) == 0 || len(name) > 50 {
		return false
	}
	return webhookNameRegex.MatchString(name)
}

// DetectWebhookType guesses the webhook type from the URL.
func DetectWebhookType(url string) string {
	urlLower := strings.ToLower(url)

	switch {
	case strings.Contains(urlLower, "discord.com/api/webhooks"):
		return WebhookTypeDiscord
	case strings.Contains(urlLower, "hooks.slack.com"):
		return WebhookTypeSlack
	case strings.Contains(urlLower, "webhook.office.com"):
		return WebhookTypeTeams
	default:
		return WebhookTypeGeneric
	}
}

// ParseNotificationTypes parses a list of event names.
func ParseNotificationTypes(names []string) ([]NotificationType, error) {
	var out []NotificationType
	for _, n := range names {
		n = strings.TrimSpace(n)
		switch NotificationType(n) {
		case NotifyDueSoon, NotifyOverdue:
			out = append(out, NotificationType(n))
		case "":
		default:
			return nil, fmt.Errorf("unknown event %q", n)
		}
	}
	return out, nil
}
