package logging

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// contextKey is a type for context keys used by this package.
type contextKey int

const (
	runIDKey contextKey = iota
)

// GenerateRunID creates a new unique run ID.
func GenerateRunID() string {
	return uuid.New().String()[:8]
}

// WithRunID returns a new context with the given run ID.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// NewRunContext derives a context carrying a fresh run ID.
func NewRunContext(parent context.Context) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	return WithRunID(parent, GenerateRunID())
}

// RunIDFromContext extracts the run ID from the context.
// Returns empty string if no run ID is set.
func RunIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// WithContext tags logger with the run ID carried by ctx, if any.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if runID := RunIDFromContext(ctx); runID != "" {
		return logger.With(KeyRunID, runID)
	}
	return logger
}
