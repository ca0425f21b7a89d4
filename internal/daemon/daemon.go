package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/laraflow/laraflow/internal/config"
	"github.com/laraflow/laraflow/internal/logging"
	"github.com/laraflow/laraflow/internal/metrics"
	"github.com/laraflow/laraflow/internal/runtime"
	"github.com/laraflow/laraflow/internal/scheduler"
)

// Fallbacks for a zero DaemonConfig.
const (
	DefaultStartupWait = 500 * time.Millisecond
	DefaultKillTimeout = 5 * time.Second
	shutdownTimeout    = 5 * time.Second
)

// Daemon manages the background process.
type Daemon struct {
	paths       Paths
	pidFile     *PIDFile
	startupWait time.Duration
	killTimeout time.Duration
	logger      *slog.Logger
}

// Status represents the daemon status.
type Status struct {
	Running     bool      `json:"running"`
	PID         int       `json:"pid,omitempty"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	Uptime      string    `json:"uptime,omitempty"`
	MetricsAddr string    `json:"metrics_addr,omitempty"`
	LogPath     string    `json:"log_path"`
}

// State is persisted next to the PID file while the daemon runs.
type State struct {
	PID         int       `json:"pid"`
	StartedAt   time.Time `json:"started_at"`
	MetricsAddr string    `json:"metrics_addr,omitempty"`
}

// RunOptions configures a foreground run.
type RunOptions struct {
	// ConfigPath is watched for changes and reloaded on SIGHUP.
	ConfigPath string
	Version    string
	// OnReady is called once the jobs are scheduled, with the metrics
	// listener address ("" when disabled).
	OnReady func(addr string)
}

// New creates a daemon manager.
func New(paths Paths, cfg config.DaemonConfig) *Daemon {
	d := &Daemon{
		paths:       paths,
		pidFile:     NewPIDFile(paths.PID()),
		startupWait: cfg.StartupWait,
		killTimeout: cfg.KillTimeout,
		logger:      logging.Component("daemon"),
	}
	if d.startupWait <= 0 {
		d.startupWait = DefaultStartupWait
	}
	if d.killTimeout <= 0 {
		d.killTimeout = DefaultKillTimeout
	}
	return d
}

// Paths returns the file locations.
func (d *Daemon) Paths() Paths {
	return d.paths
}

// IsRunning returns true if the daemon is running.
func (d *Daemon) IsRunning() bool {
	return d.pidFile.IsRunning()
}

// GetStatus returns the current daemon status.
func (d *Daemon) GetStatus() *Status {
	status := &Status{LogPath: d.paths.Log()}

	pid := d.pidFile.RunningPID()
	if pid == 0 {
		return status
	}
	status.Running = true
	status.PID = pid

	if state, err := d.readState(); err == nil {
		status.StartedAt = state.StartedAt
		status.Uptime = formatUptime(time.Since(state.StartedAt))
		status.MetricsAddr = state.MetricsAddr
	}
	return status
}

// Run schedules the maintenance jobs and blocks until ctx is cancelled or a
// shutdown signal arrives. rc supplies the store and the initial config.
func (d *Daemon) Run(ctx context.Context, rc *runtime.Context, opts RunOptions) error {
	if d.IsRunning() {
		return ErrAlreadyRunning
	}
	if err := d.pidFile.Write(); err != nil {
		return err
	}
	defer d.cleanup()

	if rc.Metrics == nil {
		rc.Metrics = metrics.NewCollector()
	}
	holder := config.NewHolder(rc.Config)

	sched := scheduler.NewScheduler(rc.Config.Location())
	if err := scheduler.Register(sched, holder, rc.Sweeper(), rc.Notifier()); err != nil {
		return err
	}

	health := NewHealthChecker(opts.Version)
	health.AddCheck("store", rc.Store.Ping)
	health.SetJobs(sched.Status)

	var srv *Server
	if addr := rc.Config.Daemon.MetricsAddr; addr != "" {
		srv = NewServer(rc.Metrics, health)
		if err := srv.Listen(addr); err != nil {
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		go srv.Serve()
	}

	state := &State{PID: os.Getpid(), StartedAt: time.Now()}
	if srv != nil {
		state.MetricsAddr = srv.Addr()
	}
	if err := d.writeState(state); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	watcher := &config.Watcher{
		Path:   opts.ConfigPath,
		Holder: holder,
		Logger: logging.Component("config"),
		OnReload: func(cfg *config.Config) {
			if err := scheduler.ApplyConfig(sched, cfg); err != nil {
				d.logger.Error("failed to apply reloaded config", logging.KeyError, err)
				return
			}
			d.logger.Info("schedules applied", "next_run", sched.NextRun())
		},
	}
	if opts.ConfigPath != "" {
		if _, err := os.Stat(opts.ConfigPath); err == nil {
			go func() {
				if err := watcher.Watch(runCtx); err != nil {
					d.logger.Warn("config watcher stopped", logging.KeyError, err)
				}
			}()
		}
	}

	sched.Start()
	d.logger.Info("daemon started", "pid", state.PID, "metrics_addr", state.MetricsAddr,
		"next_run", sched.NextRun())

	signals := NewSignalHandler()
	defer signals.Cleanup()

	if opts.OnReady != nil {
		opts.OnReady(state.MetricsAddr)
	}

	var triggered sync.WaitGroup
	for {
		sig := signals.Wait(runCtx)
		if sig != nil && IsReload(sig) {
			d.logger.Info("reload requested")
			watcher.Reload()
			continue
		}
		if sig != nil && IsTrigger(sig) {
			d.logger.Info("run requested")
			triggered.Add(1)
			go func() {
				defer triggered.Done()
				d.runAll(runCtx, sched)
			}()
			continue
		}
		if sig != nil {
			d.logger.Info("received signal", "signal", sig.String())
		}
		break
	}

	cancel()
	triggered.Wait()
	sched.Stop()
	if srv != nil {
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		if err := srv.Shutdown(sctx); err != nil {
			d.logger.Warn("metrics listener shutdown", logging.KeyError, err)
		}
	}
	d.logger.Info("daemon stopped")
	return nil
}

// runAll runs every registered job once, in name order. A job that is
// already running is skipped.
func (d *Daemon) runAll(ctx context.Context, sched *scheduler.Scheduler) {
	for _, job := range sched.Status() {
		if err := sched.RunNow(ctx, job.Name); err != nil {
			d.logger.Warn("triggered run failed", logging.KeyJob, job.Name, logging.KeyError, err)
		}
	}
}

// Trigger asks the running daemon to run every job now.
func (d *Daemon) Trigger() (int, error) {
	pid := d.pidFile.RunningPID()
	if pid == 0 {
		return 0, ErrNotRunning
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return 0, err
	}
	if err := process.Signal(TriggerSignal); err != nil {
		return 0, fmt.Errorf("failed to signal daemon: %w", err)
	}
	return pid, nil
}

// StartBackground re-executes the binary as "daemon start --foreground"
// with extra args appended, logging to the daemon log file.
func (d *Daemon) StartBackground(args []string) (int, error) {
	if pid := d.pidFile.RunningPID(); pid > 0 {
		return pid, ErrAlreadyRunning
	}

	executable, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("failed to get executable path: %w", err)
	}

	cmd := exec.Command(executable, append([]string{"daemon", "start", "--foreground"}, args...)...)
	cmd.Stdin = nil

	logFile, err := OpenLog(d.paths.Log(), MaxLogSize)
	if err != nil {
		return 0, err
	}
	defer logFile.Close()
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon: %w", err)
	}
	// The child is not waited on; release it so it outlives this process.
	pid := cmd.Process.Pid
	_ = cmd.Process.Release()

	time.Sleep(d.startupWait)

	if !d.pidFile.IsRunning() {
		if msg := lastLogError(d.paths.Log()); msg != "" {
			return 0, fmt.Errorf("daemon failed to start: %s", msg)
		}
		return 0, fmt.Errorf("daemon failed to start (check logs: %s)", d.paths.Log())
	}
	return pid, nil
}

// Stop signals the running daemon and waits up to the kill timeout before
// forcing it down.
func (d *Daemon) Stop() error {
	pid := d.pidFile.RunningPID()
	if pid == 0 {
		return ErrNotRunning
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	if err := process.Signal(os.Interrupt); err != nil {
		if err := process.Kill(); err != nil {
			return fmt.Errorf("failed to stop daemon: %w", err)
		}
	}

	// The daemon is not our child, so poll instead of Wait.
	deadline := time.Now().Add(d.killTimeout)
	for IsProcessRunning(pid) && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if IsProcessRunning(pid) {
		_ = process.Kill()
	}

	d.cleanup()
	return nil
}

func (d *Daemon) cleanup() {
	if err := d.pidFile.Remove(); err != nil {
		d.logger.Warn("failed to remove PID file", logging.KeyError, err)
	}
	if err := os.Remove(d.paths.State()); err != nil && !os.IsNotExist(err) {
		d.logger.Warn("failed to remove daemon state file", logging.KeyError, err, "path", d.paths.State())
	}
}

func (d *Daemon) writeState(state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(d.paths.Dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(d.paths.State(), data, 0o644)
}

func (d *Daemon) readState() (*State, error) {
	data, err := os.ReadFile(d.paths.State())
	if err != nil {
		return nil, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func formatUptime(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		hours := int(d.Hours())
		if minutes := int(d.Minutes()) % 60; minutes > 0 {
			return fmt.Sprintf("%dh %dm", hours, minutes)
		}
		return fmt.Sprintf("%dh", hours)
	}
	days := int(d.Hours() / 24)
	if hours := int(d.Hours()) % 24; hours > 0 {
		return fmt.Sprintf("%dd %dh", days, hours)
	}
	return fmt.Sprintf("%dd", days)
}
