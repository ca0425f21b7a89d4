package daemon

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MaxLogSize is the size at which the daemon log is rotated on start.
const MaxLogSize = 10 << 20

// OpenLog opens the daemon log for appending, first moving it to
// <path>.old when it has grown past maxSize.
func OpenLog(path string, maxSize int64) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	if info, err := os.Stat(path); err == nil && maxSize > 0 && info.Size() >= maxSize {
		backup := path + ".old"
		_ = os.Remove(backup)
		if err := os.Rename(path, backup); err != nil {
			return nil, fmt.Errorf("failed to rotate log: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}

// TailLog returns up to n trailing lines of the log.
func TailLog(path string, n int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		lines = append(lines, sc.Text())
		if n > 0 && len(lines) > n {
			lines = lines[1:]
		}
	}
	return lines, sc.Err()
}

// lastLogError finds the most recent error line among the last ten, used to
// explain a background start that never wrote its PID.
func lastLogError(path string) string {
	lines, err := TailLog(path, 10)
	if err != nil {
		return ""
	}
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		lower := strings.ToLower(line)
		if strings.Contains(lower, "level=error") || strings.Contains(lower, `"level":"error"`) ||
			strings.HasPrefix(lower, "error") || strings.Contains(lower, "failed to") {
			return line
		}
	}
	return ""
}
