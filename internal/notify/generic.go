package notify

import (
	"bytes"
	"encoding/json"
	"text/template"
	"time"

	"github.com/laraflow/laraflow/internal/model"
)

// GenericFormatter formats notifications for generic JSON webhooks.
type GenericFormatter struct {
	// Template is an optional text/template for the payload body.
	Template string
}

type genericPayload struct {
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	Timestamp string            `json:"timestamp"`
	Color     int               `json:"color,omitempty"`
}

// NewGenericFormatter creates a generic formatter with an optional template.
func NewGenericFormatter(template string) *GenericFormatter {
	return &GenericFormatter{Template: template}
}

// Format converts a notification to the default JSON body or the template output.
func (f *GenericFormatter) Format(n *model.Notification) ([]byte, error) {
	if f.Template != "" {
		return f.formatWithTemplate(n)
	}

	return json.Marshal(genericPayload{
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Fields:    n.Fields,
		Timestamp: n.Timestamp.UTC().Format(time.RFC3339),
		Color:     colorOf(n),
	})
}

func (f *GenericFormatter) formatWithTemplate(n *model.Notification) ([]byte, error) {
	tmpl, err := template.New("webhook").Option("missingkey=zero").Parse(f.Template)
	if err != nil {
		return nil, err
	}

	data := map[string]any{
		"Type":      string(n.Type),
		"Title":     n.Title,
		"Message":   n.Message,
		"Fields":    n.Fields,
		"Timestamp": n.Timestamp,
		"Color":     colorOf(n),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ContentType returns the content type for generic webhooks.
func (f *GenericFormatter) ContentType() string {
	return "application/json"
}
