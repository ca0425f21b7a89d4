package notify

import (
	"encoding/json"
	"fmt"

	"github.com/laraflow/laraflow/internal/model"
)

// TeamsFormatter formats notifications as Microsoft Teams MessageCards.
type TeamsFormatter struct{}

type teamsPayload struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Summary    string         `json:"summary"`
	Sections   []teamsSection `json:"sections,omitempty"`
}

type teamsSection struct {
	ActivityTitle    string      `json:"activityTitle,omitempty"`
	ActivitySubtitle string      `json:"activitySubtitle,omitempty"`
	Text             string      `json:"text,omitempty"`
	Facts            []teamsFact `json:"facts,omitempty"`
	Markdown         bool        `json:"markdown"`
}

type teamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Format converts a notification to a MessageCard.
func (f *TeamsFormatter) Format(n *model.Notification) ([]byte, error) {
	section := teamsSection{
		ActivityTitle:    n.Title,
		ActivitySubtitle: fmt.Sprintf("%s | %s", Footer, n.Timestamp.UTC().Format("Jan 2, 15:04 UTC")),
		Text:             n.Message,
		Markdown:         true,
	}

	for _, fl := range sortedFields(n) {
		section.Facts = append(section.Facts, teamsFact{Name: fl.Name, Value: fl.Value})
	}

	payload := teamsPayload{
		Type:       "MessageCard",
		Context:    "http://schema.org/extensions",
		ThemeColor: fmt.Sprintf("%06X", colorOf(n)),
		Summary:    n.TypeLabel(),
		Sections:   []teamsSection{section},
	}

	return json.Marshal(payload)
}

// ContentType returns the content type for Teams webhooks.
func (f *TeamsFormatter) ContentType() string {
	return "application/json"
}
