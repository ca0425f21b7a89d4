package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureLogs swaps the package logger for a JSON logger writing to a buffer.
func captureLogs(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	prev := Logger()
	var buf bytes.Buffer
	Init(Config{Level: level, JSON: true, Output: &buf})
	t.Cleanup(func() {
		loggerMu.Lock()
		defaultLogger = prev
		loggerMu.Unlock()
	})
	return &buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

// =============================================================================
// Config Tests
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, slog.LevelInfo, cfg.Level)
	assert.False(t, cfg.JSON)
}

func TestDebugConfig(t *testing.T) {
	cfg := DebugConfig()
	assert.Equal(t, slog.LevelDebug, cfg.Level)
	assert.True(t, cfg.JSON)
	assert.True(t, cfg.AddSource)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
		wantErr  bool
	}{
		{"debug", slog.LevelDebug, false},
		{"", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestInitSetsDebug(t *testing.T) {
	captureLogs(t, slog.LevelDebug)
	assert.True(t, Debug)
	captureLogs(t, slog.LevelInfo)
	assert.False(t, Debug)
}

func TestLevelFiltering(t *testing.T) {
	buf := captureLogs(t, slog.LevelWarn)

	Logger().Info("hidden")
	assert.Empty(t, buf.String())

	Logger().Warn("shown", KeyCount, 3)
	entry := decode(t, buf)
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, float64(3), entry[KeyCount])
}

func TestComponent(t *testing.T) {
	buf := captureLogs(t, slog.LevelInfo)

	Component("retention").Info("sweep finished")
	entry := decode(t, buf)
	assert.Equal(t, "retention", entry[KeyComponent])
}

// =============================================================================
// Context Tests
// =============================================================================

func TestRunContext(t *testing.T) {
	ctx := NewRunContext(context.Background())
	id := RunIDFromContext(ctx)
	assert.Len(t, id, 8)
	assert.NotEqual(t, id, RunIDFromContext(NewRunContext(context.Background())))

	assert.Equal(t, "", RunIDFromContext(context.Background()))
	assert.Equal(t, "", RunIDFromContext(nil)) //nolint:staticcheck
}

func TestWithContextAddsRunID(t *testing.T) {
	buf := captureLogs(t, slog.LevelInfo)

	ctx := WithRunID(context.Background(), "run-1")
	WithContext(ctx, Logger()).Info("tick")
	entry := decode(t, buf)
	assert.Equal(t, "run-1", entry[KeyRunID])
}

func TestWithContextWithoutRunID(t *testing.T) {
	buf := captureLogs(t, slog.LevelInfo)

	WithContext(context.Background(), Logger()).Info("plain")
	entry := decode(t, buf)
	_, ok := entry[KeyRunID]
	assert.False(t, ok)
}

// =============================================================================
// Masking Tests
// =============================================================================

func TestMaskURL(t *testing.T) {
	short := "https://example.com/hook"
	assert.Equal(t, short, MaskURL(short))

	long := "https://hooks.slack.com/services/T000/B000/XXXXXXXX"
	assert.Equal(t, "https://hooks.slack.com/servic***", MaskURL(long))
}

func TestMaskDSN(t *testing.T) {
	assert.Equal(t, "postgres://app:xxxxx@db:5432/laraflow", MaskDSN("postgres://app:s3cret@db:5432/laraflow"))
	assert.Equal(t, "postgres://app@db/laraflow", MaskDSN("postgres://app@db/laraflow"))
	assert.Equal(t, "/var/lib/laraflow.db", MaskDSN("/var/lib/laraflow.db"))
}

func TestMaskAttrInHandler(t *testing.T) {
	buf := captureLogs(t, slog.LevelInfo)

	Logger().Info("connect",
		KeyDSN, "postgres://app:s3cret@db/laraflow",
		"api_token", "abc123",
		KeyEntity, "tasks")
	entry := decode(t, buf)
	assert.NotContains(t, entry[KeyDSN], "s3cret")
	assert.Equal(t, "********", entry["api_token"])
	assert.Equal(t, "tasks", entry[KeyEntity])
}

func TestIsSensitiveKey(t *testing.T) {
	assert.True(t, IsSensitiveKey("PASSWORD"))
	assert.True(t, IsSensitiveKey("webhook_secret"))
	assert.False(t, IsSensitiveKey("entity"))
}
