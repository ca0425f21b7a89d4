// Package logging provides structured logging for Laraflow on top of slog.
// Jobs take a component logger and attach a run ID per execution.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	// defaultLogger is the package-level logger instance.
	defaultLogger *slog.Logger
	loggerMu      sync.RWMutex

	// Debug indicates if debug mode is enabled.
	Debug bool
)

func init() {
	defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:       slog.LevelInfo,
		ReplaceAttr: MaskAttr,
	}))
}

// Config holds logger configuration.
type Config struct {
	Level     slog.Level // Minimum log level
	JSON      bool       // Use JSON output format
	Output    io.Writer  // Output destination (default: stderr)
	AddSource bool       // Include source file and line number
}

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  slog.LevelInfo,
		Output: os.Stderr,
	}
}

// DebugConfig returns a configuration suitable for debug mode.
func DebugConfig() Config {
	return Config{
		Level:     slog.LevelDebug,
		JSON:      true,
		Output:    os.Stderr,
		AddSource: true,
	}
}

// ParseLevel converts a level name (debug, info, warn, error) to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// New builds a logger from cfg without touching the package logger.
func New(cfg Config) *slog.Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:       cfg.Level,
		AddSource:   cfg.AddSource,
		ReplaceAttr: MaskAttr,
	}

	var handler slog.Handler
	if cfg.JSON {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}
	return slog.New(handler)
}

// Init initializes the global logger with the given configuration.
func Init(cfg Config) {
	logger := New(cfg)

	loggerMu.Lock()
	defer loggerMu.Unlock()
	defaultLogger = logger
	Debug = cfg.Level == slog.LevelDebug
}

// InitDebug initializes the logger in debug mode with JSON output.
func InitDebug() {
	Init(DebugConfig())
}

// Logger returns the current logger instance.
func Logger() *slog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return defaultLogger
}

// Component returns a logger tagged with a component name.
func Component(name string) *slog.Logger {
	return Logger().With(KeyComponent, name)
}

// Common structured logging fields.
const (
	KeyComponent = "component"
	KeyRunID     = "run_id"
	KeyJob       = "job"
	KeyDuration  = "duration_ms"
	KeyError     = "error"
	KeyEntity    = "entity"
	KeyCutoff    = "cutoff"
	KeyDryRun    = "dry_run"
	KeyCount     = "count"
	KeyErased    = "erased"
	KeyBatch     = "batch"
	KeyKind      = "kind"
	KeyOffset    = "offset_hours"
	KeyWindow    = "window"
	KeyTask      = "task"
	KeyRecipient = "recipient"
	KeyWebhook   = "webhook"
	KeyStatus    = "status"
	KeyURL       = "url"
	KeyDSN       = "dsn"
)
