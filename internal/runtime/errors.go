package runtime

import (
	"errors"
	"fmt"
	"strings"
	"syscall"

	lferrors "github.com/laraflow/laraflow/internal/errors"
)

// ErrDiskFull is reported when the store cannot write for lack of space.
var ErrDiskFull = errors.New("disk full: unable to write to database")

// DiskFullError represents a disk full condition with additional context.
type DiskFullError struct {
	Op      string
	Path    string
	wrapped error
}

func (e *DiskFullError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("disk full during %s on %s: %v", e.Op, e.Path, e.wrapped)
	}
	return fmt.Sprintf("disk full during %s: %v", e.Op, e.wrapped)
}

func (e *DiskFullError) Unwrap() error {
	return ErrDiskFull
}

// NewDiskFullError creates a new DiskFullError.
func NewDiskFullError(op, path string, err error) *DiskFullError {
	return &DiskFullError{Op: op, Path: path, wrapped: err}
}

var diskFullPatterns = []string{
	"no space left on device",
	"disk full",
	"enospc",
	"not enough space",
	"insufficient disk space",
	"out of disk space",
	"database or disk is full",
}

// IsDiskFullError checks if an error indicates a disk full condition.
func IsDiskFullError(err error) bool {
	if err == nil {
		return false
	}

	var diskFullErr *DiskFullError
	if errors.As(err, &diskFullErr) || errors.Is(err, ErrDiskFull) {
		return true
	}

	var errno syscall.Errno
	if errors.As(err, &errno) && errno == syscall.ENOSPC {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range diskFullPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// WrapDiskFullError wraps an error as a DiskFullError if it indicates disk full.
func WrapDiskFullError(err error, op, path string) error {
	if err == nil {
		return nil
	}
	if IsDiskFullError(err) {
		return NewDiskFullError(op, path, err)
	}
	return err
}

// StoreOpenError turns a failure to open the store into a system error that
// the CLI reports with a non-zero exit.
func StoreOpenError(path string, err error) error {
	if err == nil {
		return nil
	}
	if lferrors.IsUserError(err) {
		return err
	}
	err = WrapDiskFullError(err, "open", path)
	return lferrors.NewSystemErrorWithOp("open store",
		fmt.Sprintf("cannot open store %s", path),
		fmt.Errorf("%w: %w", lferrors.ErrStoreUnavailable, err))
}
