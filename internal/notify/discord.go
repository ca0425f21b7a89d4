package notify

import (
	"encoding/json"
	"time"

	"github.com/laraflow/laraflow/internal/model"
)

// DiscordFormatter formats notifications for Discord webhooks.
type DiscordFormatter struct{}

type discordPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds,omitempty"`
}

type discordEmbed struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Footer      *discordEmbedFooter `json:"footer,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordEmbedFooter struct {
	Text string `json:"text"`
}

// Format converts a notification to a Discord embed.
func (f *DiscordFormatter) Format(n *model.Notification) ([]byte, error) {
	embed := discordEmbed{
		Title:       n.Title,
		Description: n.Message,
		Color:       colorOf(n),
		Timestamp:   n.Timestamp.UTC().Format(time.RFC3339),
		Footer:      &discordEmbedFooter{Text: Footer},
	}

	for _, fl := range sortedFields(n) {
		embed.Fields = append(embed.Fields, discordEmbedField{
			Name:   fl.Name,
			Value:  fl.Value,
			Inline: true,
		})
	}

	return json.Marshal(discordPayload{Embeds: []discordEmbed{embed}})
}

// ContentType returns the content type for Discord webhooks.
func (f *DiscordFormatter) ContentType() string {
	return "application/json"
}
