package errors

import (
	"context"
	"errors"
	"syscall"
)

// Category represents the type of error for display and exit code purposes.
type Category int

const (
	// CategoryUnknown is the default for unclassified errors.
	CategoryUnknown Category = iota
	// CategoryUser indicates an error the user can fix (bad input, missing args).
	CategoryUser
	// CategorySystem indicates an infrastructure error (store down, disk, permissions).
	CategorySystem
	// CategoryRecoverable indicates a transient error that a later run may not hit.
	CategoryRecoverable
)

// String returns the string representation of the category.
func (c Category) String() string {
	switch c {
	case CategoryUser:
		return "user"
	case CategorySystem:
		return "system"
	case CategoryRecoverable:
		return "recoverable"
	default:
		return "unknown"
	}
}

// Classify determines the category of an error.
func Classify(err error) Category {
	if err == nil {
		return CategoryUnknown
	}

	// Check for our typed errors first
	if IsUserError(err) {
		return CategoryUser
	}
	if IsSystemError(err) {
		return CategorySystem
	}

	if isSystemLevel(err) {
		return CategorySystem
	}
	if isRecoverablePattern(err) {
		return CategoryRecoverable
	}

	return CategoryUnknown
}

func isSystemLevel(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ENOSPC, syscall.EACCES, syscall.EPERM, syscall.EIO, syscall.EROFS:
			return true
		}
	}

	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrPermissionDenied)
}

func isRecoverablePattern(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EAGAIN, syscall.EINTR, syscall.ETIMEDOUT, syscall.ECONNREFUSED, syscall.ECONNRESET:
			return true
		}
	}

	return false
}

// ExitCode maps an error to the process exit status. Nil is success.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch Classify(err) {
	case CategoryUser:
		return 2
	default:
		return 1
	}
}

// FormatByCategory returns a user-appropriate error message based on category.
func FormatByCategory(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	suggestion := GetSuggestion(err)

	switch Classify(err) {
	case CategoryUser:
		if suggestion != "" {
			return msg + "\n\nTry: " + suggestion
		}
		return msg

	case CategorySystem:
		if suggestion != "" {
			return "System error: " + msg + "\n\n" + suggestion
		}
		return "System error: " + msg

	case CategoryRecoverable:
		return msg + " (the next scheduled run will try again)"

	default:
		return msg
	}
}
