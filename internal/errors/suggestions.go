package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Suggestions maps common errors to helpful suggestions.
var Suggestions = map[error]string{
	ErrInvalidTimestamp:  "Try formats like 'tomorrow 9am', 'in 3 hours', or '2024-01-10 10:00'.",
	ErrInvalidEntityType: "Valid types are tasks, lists and projects.",
	ErrInvalidOffset:     "Offsets are whole hours greater than zero, e.g. --overdue 1,24.",
	ErrInvalidConfig:     "Run 'laraflow config show' to inspect the effective configuration.",
	ErrProjectNotFound:   "Use 'laraflow project list' to see available projects.",
	ErrListNotFound:      "Use 'laraflow list list PROJECT' to see a project's lists.",
	ErrTaskNotFound:      "Use 'laraflow task list' to see tasks.",
	ErrUserNotFound:      "Use 'laraflow user list' to see users.",
	ErrWebhookNotFound:   "Use 'laraflow webhook list' to see configured webhooks.",
	ErrRecordNotFound:    "Use 'laraflow trash list' to see trashed records.",
	ErrInvalidURL:        "Provide a valid URL starting with https:// (or http:// for localhost).",
	ErrStoreUnavailable:  "Check storage.driver and storage.dsn, or the data directory permissions.",
	ErrDaemonRunning:     "Use 'laraflow daemon status' or 'laraflow daemon stop'.",
	ErrDaemonNotRunning:  "Start it with 'laraflow daemon start'.",
	ErrTimeout:           "The operation took too long. Try again or check your network connection.",
	ErrPermissionDenied:  "Check file permissions in your data directory (~/.local/share/laraflow/).",
}

// GetSuggestion returns a suggestion for an error, if available.
// A UserError's own suggestion wins over the sentinel table.
func GetSuggestion(err error) string {
	if err == nil {
		return ""
	}

	if ue, ok := AsUserError(err); ok && ue.Suggestion != "" {
		return ue.Suggestion
	}

	for knownErr, suggestion := range Suggestions {
		if errors.Is(err, knownErr) {
			return suggestion
		}
	}

	return ""
}

// FormatUserError formats an error for display to the user.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(err.Error())
	if suggestion := GetSuggestion(err); suggestion != "" {
		sb.WriteString("\n\n")
		sb.WriteString(suggestion)
	}
	return sb.String()
}

// FormatDebugError formats an error with its chain, category and root cause.
func FormatDebugError(err error) string {
	if err == nil {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Error: ")
	sb.WriteString(err.Error())
	sb.WriteString("\n")

	if chain := Chain(err); len(chain) > 1 {
		sb.WriteString("\nError chain:\n")
		for i, msg := range chain {
			fmt.Fprintf(&sb, "  %d. %s\n", i+1, msg)
		}
	}

	fmt.Fprintf(&sb, "\nCategory: %s\n", Classify(err))

	if suggestion := GetSuggestion(err); suggestion != "" {
		fmt.Fprintf(&sb, "\nSuggestion: %s\n", suggestion)
	}

	if root := RootCause(err); root != err {
		fmt.Fprintf(&sb, "\nRoot cause: %v\n", root)
	}

	return sb.String()
}
