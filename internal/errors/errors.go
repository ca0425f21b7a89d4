// Package errors provides consistent error types for the Laraflow CLI and
// daemon. UserError is fixable by the caller (bad input or configuration),
// SystemError is an infrastructure failure that fails a run.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for common conditions.
var (
	ErrInvalidTimestamp  = errors.New("invalid timestamp")
	ErrInvalidEntityType = errors.New("invalid entity type")
	ErrInvalidOffset     = errors.New("invalid offset")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrProjectNotFound   = errors.New("project not found")
	ErrListNotFound      = errors.New("list not found")
	ErrTaskNotFound      = errors.New("task not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrWebhookNotFound   = errors.New("webhook not found")
	ErrRecordNotFound    = errors.New("record not found")
	ErrInvalidURL        = errors.New("invalid URL")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrDaemonRunning     = errors.New("daemon already running")
	ErrDaemonNotRunning  = errors.New("daemon not running")
	ErrTimeout           = errors.New("operation timed out")
	ErrPermissionDenied  = errors.New("permission denied")
)

// UserError represents an error that the user can fix.
// Examples: invalid input, missing required arguments, incorrect format.
type UserError struct {
	Message    string // What happened
	Suggestion string // How to fix it
	Field      string // The field/input that caused the error (optional)
	Value      string // The invalid value (optional)
	Cause      error  // Sentinel or underlying error (optional)
}

func (e *UserError) Error() string {
	if e.Field != "" && e.Value != "" {
		return fmt.Sprintf("%s: '%s'", e.Message, e.Value)
	}
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Cause
}

// NewUserError creates a new UserError.
func NewUserError(message, suggestion string) *UserError {
	return &UserError{
		Message:    message,
		Suggestion: suggestion,
	}
}

// NewUserErrorWithField creates a new UserError with field context.
func NewUserErrorWithField(field, value, message, suggestion string) *UserError {
	return &UserError{
		Message:    message,
		Field:      field,
		Value:      value,
		Suggestion: suggestion,
	}
}

// NotFound creates a UserError for a missing record wrapping the sentinel.
func NotFound(sentinel error, id string) *UserError {
	return &UserError{
		Message: sentinel.Error(),
		Field:   "id",
		Value:   id,
		Cause:   sentinel,
	}
}

// SystemError represents an infrastructure error the user cannot directly fix.
// Examples: database unreachable, migration failure, permission denied.
type SystemError struct {
	Message string // What happened
	Cause   error  // The underlying error
	Op      string // The operation that failed (optional)
}

func (e *SystemError) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = fmt.Sprintf("%s during %s", e.Message, e.Op)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *SystemError) Unwrap() error {
	return e.Cause
}

// NewSystemError creates a new SystemError.
func NewSystemError(message string, cause error) *SystemError {
	return &SystemError{
		Message: message,
		Cause:   cause,
	}
}

// NewSystemErrorWithOp creates a new SystemError with operation context.
func NewSystemErrorWithOp(op, message string, cause error) *SystemError {
	return &SystemError{
		Message: message,
		Cause:   cause,
		Op:      op,
	}
}

// IsUserError checks if an error is a UserError.
func IsUserError(err error) bool {
	var ue *UserError
	return errors.As(err, &ue)
}

// IsSystemError checks if an error is a SystemError.
func IsSystemError(err error) bool {
	var se *SystemError
	return errors.As(err, &se)
}

// AsUserError extracts a UserError from an error chain.
func AsUserError(err error) (*UserError, bool) {
	var ue *UserError
	ok := errors.As(err, &ue)
	return ue, ok
}

// AsSystemError extracts a SystemError from an error chain.
func AsSystemError(err error) (*SystemError, bool) {
	var se *SystemError
	ok := errors.As(err, &se)
	return se, ok
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted additional context.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Chain returns the full error chain as a slice of error messages.
func Chain(err error) []string {
	var chain []string
	for err != nil {
		chain = append(chain, err.Error())
		err = errors.Unwrap(err)
	}
	return chain
}

// RootCause returns the deepest wrapped error in the chain.
func RootCause(err error) error {
	for {
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil {
			return err
		}
		err = unwrapped
	}
}
