package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles for CLI output.
var (
	colorPrimary   = lipgloss.Color("#7C3AED")
	colorSecondary = lipgloss.Color("#10B981")
	colorMuted     = lipgloss.Color("#6B7280")
	colorWarning   = lipgloss.Color("#F59E0B")
	colorError     = lipgloss.Color("#EF4444")

	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	styleSuccess = lipgloss.NewStyle().
			Foreground(colorSecondary)

	styleWarning = lipgloss.NewStyle().
			Foreground(colorWarning)

	styleError = lipgloss.NewStyle().
			Foreground(colorError)

	styleMuted = lipgloss.NewStyle().
			Foreground(colorMuted)

	styleBold = lipgloss.NewStyle().
			Bold(true)

	styleName = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)
)

// CLIFormatter provides CLI-specific formatting.
type CLIFormatter struct {
	*Formatter
}

// NewCLIFormatter creates a new CLI formatter.
func NewCLIFormatter(f *Formatter) *CLIFormatter {
	return &CLIFormatter{Formatter: f}
}

func (c *CLIFormatter) render(style lipgloss.Style, text string) string {
	if c.IsColorEnabled() {
		return style.Render(text)
	}
	return text
}

// Title prints a title.
func (c *CLIFormatter) Title(text string) {
	c.Println(c.render(styleTitle, text))
}

// Success prints a success message.
func (c *CLIFormatter) Success(text string) {
	c.Println(c.render(styleSuccess, "✓ "+text))
}

// Warning prints a warning message.
func (c *CLIFormatter) Warning(text string) {
	c.Println(c.render(styleWarning, "⚠ "+text))
}

// Error prints an error message.
func (c *CLIFormatter) Error(text string) {
	c.Println(c.render(styleError, "✗ "+text))
}

// Muted prints muted text.
func (c *CLIFormatter) Muted(text string) {
	c.Println(c.render(styleMuted, text))
}

// Name highlights an entity name.
func (c *CLIFormatter) Name(text string) string {
	return c.render(styleName, text)
}

// Status colors a status word: ok green, skipped yellow, failed red.
func (c *CLIFormatter) Status(status string) string {
	switch status {
	case "ok", "sent", "enabled", "running", "done":
		return c.render(styleSuccess, status)
	case "skipped", "disabled", "stopped":
		return c.render(styleWarning, status)
	case "failed", "overdue":
		return c.render(styleError, status)
	default:
		return status
	}
}

// TableRow is one row of a table.
type TableRow struct {
	Columns []string
}

// PrintTable prints a simple aligned table.
func (c *CLIFormatter) PrintTable(headers []string, rows []TableRow) {
	if len(rows) == 0 {
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, col := range row.Columns {
			if i < len(widths) && lipgloss.Width(col) > widths[i] {
				widths[i] = lipgloss.Width(col)
			}
		}
	}

	var headerLine strings.Builder
	for i, h := range headers {
		headerLine.WriteString(pad(h, widths[i]))
	}
	c.Println(strings.TrimRight(c.render(styleBold, headerLine.String()), " "))

	var sep strings.Builder
	for _, w := range widths {
		sep.WriteString(strings.Repeat("─", w) + "  ")
	}
	c.Println(strings.TrimRight(sep.String(), " "))

	for _, row := range rows {
		var rowLine strings.Builder
		for i, col := range row.Columns {
			if i < len(widths) {
				rowLine.WriteString(pad(col, widths[i]))
			}
		}
		c.Println(strings.TrimRight(rowLine.String(), " "))
	}
}

// pad left-aligns s in a column of width w plus the gutter. Styled text is
// measured by its visible width.
func pad(s string, w int) string {
	return s + strings.Repeat(" ", w-lipgloss.Width(s)) + "  "
}

// KeyValue prints an indented "key: value" line.
func (c *CLIFormatter) KeyValue(key string, value any) {
	c.Printf("  %s %v\n", c.render(styleMuted, key+":"), value)
}

// plural returns "1 task" or "3 tasks".
func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
