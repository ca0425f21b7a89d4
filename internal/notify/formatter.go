// Package notify delivers deadline notifications to outgoing webhooks
// (Discord, Slack, Teams and generic JSON endpoints).
package notify

import (
	"sort"

	"github.com/laraflow/laraflow/internal/model"
)

// Footer is the sender name shown in rich payloads.
const Footer = "Laraflow"

// Formatter formats notifications for a specific webhook type.
type Formatter interface {
	// Format converts a notification into the webhook-specific payload.
	Format(n *model.Notification) ([]byte, error)

	// ContentType returns the HTTP Content-Type for the payload.
	ContentType() string
}

// GetFormatter returns the appropriate formatter for a webhook type.
func GetFormatter(webhookType string) Formatter {
	switch webhookType {
	case model.WebhookTypeDiscord:
		return &DiscordFormatter{}
	case model.WebhookTypeSlack:
		return &SlackFormatter{}
	case model.WebhookTypeTeams:
		return &TeamsFormatter{}
	default:
		return &GenericFormatter{}
	}
}

// FormatterFor returns the formatter for a webhook, honouring a custom
// template on generic webhooks.
func FormatterFor(w *model.Webhook) Formatter {
	if w.Type == model.WebhookTypeGeneric && w.Template != "" {
		return NewGenericFormatter(w.Template)
	}
	return GetFormatter(w.Type)
}

type field struct {
	Name  string
	Value string
}

// sortedFields returns the notification fields in name order so payloads
// are stable.
func sortedFields(n *model.Notification) []field {
	fields := make([]field, 0, len(n.Fields))
	for k, v := range n.Fields {
		fields = append(fields, field{Name: k, Value: v})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	return fields
}

func colorOf(n *model.Notification) int {
	if n.Color != 0 {
		return n.Color
	}
	return model.DefaultColorForType(n.Type)
}
