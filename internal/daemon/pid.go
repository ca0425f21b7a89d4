// Package daemon runs the scheduled maintenance jobs as a background process
// and manages its PID, state and log files.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/adrg/xdg"

	"github.com/laraflow/laraflow/internal/model"
)

// File names inside the daemon directory.
const (
	PIDFileName   = model.AppName + ".pid"
	StateFileName = "daemon.json"
	LogFileName   = "daemon.log"
)

// Errors
var (
	ErrNotRunning     = fmt.Errorf("daemon is not running")
	ErrAlreadyRunning = fmt.Errorf("daemon is already running")
)

// Paths locates the daemon's runtime files.
type Paths struct {
	Dir string
}

// DefaultPaths uses the XDG state directory, which exists on both Linux and
// macOS and survives reboots.
func DefaultPaths() Paths {
	return Paths{Dir: filepath.Join(xdg.StateHome, model.AppName)}
}

// PID returns the PID file path.
func (p Paths) PID() string { return filepath.Join(p.Dir, PIDFileName) }

// State returns the state file path.
func (p Paths) State() string { return filepath.Join(p.Dir, StateFileName) }

// Log returns the log file path.
func (p Paths) Log() string { return filepath.Join(p.Dir, LogFileName) }

// PIDFile manages the daemon PID file.
type PIDFile struct {
	path string
}

// NewPIDFile creates a PID file manager for path.
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Write records the current process PID.
func (p *PIDFile) Write() error {
	return p.WritePID(os.Getpid())
}

// WritePID records pid.
func (p *PIDFile) WritePID(pid int) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}
	if err := os.WriteFile(p.path, []byte(strconv.Itoa(pid)), 0o644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

// Read returns the recorded PID, or ErrNotRunning when there is no file.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrNotRunning
		}
		return 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %w", err)
	}
	return pid, nil
}

// Remove deletes the PID file. A missing file is not an error.
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove PID file: %w", err)
	}
	return nil
}

// RunningPID returns the recorded PID if that process is alive, else 0.
// A stale file left by a crashed daemon reads as not running.
func (p *PIDFile) RunningPID() int {
	pid, err := p.Read()
	if err != nil || !IsProcessRunning(pid) {
		return 0
	}
	return pid
}

// IsRunning reports whether the recorded process is alive.
func (p *PIDFile) IsRunning() bool {
	return p.RunningPID() > 0
}

// Path returns the PID file path.
func (p *PIDFile) Path() string {
	return p.path
}

// IsProcessRunning checks if a process with the given PID is running.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// FindProcess always succeeds on Unix; signal 0 checks that it exists.
	return process.Signal(syscall.Signal(0)) == nil
}
