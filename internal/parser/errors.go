package parser

import (
	"fmt"
	"strings"

	"github.com/laraflow/laraflow/internal/errors"
)

// TimeParseError represents a parsing error with helpful suggestions.
type TimeParseError struct {
	Input      string
	Field      string
	Message    string
	Examples   []string
	Suggestion string
}

func (e *TimeParseError) Error() string {
	return fmt.Sprintf("invalid %s '%s': %s", e.Field, e.Input, e.Message)
}

// TimestampExamples provides example --now values.
var TimestampExamples = []string{
	"2024-01-09 10:30",
	"2024-01-09T10:30:00Z",
	"yesterday 3pm",
	"-2h",
	"now",
}

// DueExamples provides example --due values.
var DueExamples = []string{
	"2024-01-10",
	"2024-01-10 17:00",
	"tomorrow 5pm",
	"+3d",
}

// NewTimestampError creates a timestamp parse error with standard examples.
func NewTimestampError(input string) *TimeParseError {
	return &TimeParseError{
		Input:      input,
		Field:      "time",
		Message:    "could not parse time",
		Examples:   TimestampExamples,
		Suggestion: "Use YYYY-MM-DD HH:MM, a signed offset like -2h, or natural language.",
	}
}

// NewDueError creates a due date parse error with standard examples.
func NewDueError(input string) *TimeParseError {
	return &TimeParseError{
		Input:      input,
		Field:      "due date",
		Message:    "could not parse due date",
		Examples:   DueExamples,
		Suggestion: "A bare date means the task is due at the end of that day.",
	}
}

// NewClockError creates a time-of-day parse error.
func NewClockError(input string) *TimeParseError {
	return &TimeParseError{
		Input:    input,
		Field:    "time of day",
		Message:  "expected HH:MM or HH:MM:SS",
		Examples: []string{"09:30", "17:00", "23:59:59"},
	}
}

// NewOffsetError creates an offset list parse error.
func NewOffsetError(input string) *TimeParseError {
	return &TimeParseError{
		Input:    input,
		Field:    "offsets",
		Message:  "expected comma-separated positive hours",
		Examples: []string{"24", "1,24", "1h,24h"},
	}
}

// ToUserError converts a TimeParseError to a UserError for consistent handling.
func (e *TimeParseError) ToUserError() *errors.UserError {
	suggestion := e.Suggestion
	if len(e.Examples) > 0 && suggestion == "" {
		suggestion = fmt.Sprintf("Try: %s", strings.Join(e.Examples[:min(3, len(e.Examples))], ", "))
	}

	return errors.NewUserErrorWithField(e.Field, e.Input, e.Message, suggestion)
}

// AsUserError converts parse errors to user errors and passes others through.
func AsUserError(err error) error {
	var pe *TimeParseError
	if errors.As(err, &pe) {
		return pe.ToUserError()
	}
	return err
}
