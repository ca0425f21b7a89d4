package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laraflow/laraflow/internal/config"
	"github.com/laraflow/laraflow/internal/metrics"
	"github.com/laraflow/laraflow/internal/runtime"
	"github.com/laraflow/laraflow/internal/scheduler"
)

// =============================================================================
// PIDFile Tests
// =============================================================================

func TestPIDFileLifecycle(t *testing.T) {
	paths := Paths{Dir: filepath.Join(t.TempDir(), "state")}
	p := NewPIDFile(paths.PID())

	_, err := p.Read()
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.False(t, p.IsRunning())

	require.NoError(t, p.Write())
	pid, err := p.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.True(t, p.IsRunning())
	assert.Equal(t, os.Getpid(), p.RunningPID())

	require.NoError(t, p.Remove())
	require.NoError(t, p.Remove(), "removing twice is fine")
	assert.False(t, p.IsRunning())
}

func TestPIDFileStaleAndGarbage(t *testing.T) {
	p := NewPIDFile(filepath.Join(t.TempDir(), PIDFileName))

	require.NoError(t, p.WritePID(-5))
	assert.Zero(t, p.RunningPID())

	require.NoError(t, os.WriteFile(p.Path(), []byte("not-a-pid"), 0o644))
	_, err := p.Read()
	assert.Error(t, err)
	assert.False(t, p.IsRunning())
}

func TestPaths(t *testing.T) {
	p := Paths{Dir: "/var/lib/laraflow"}
	assert.Equal(t, "/var/lib/laraflow/laraflow.pid", p.PID())
	assert.Equal(t, "/var/lib/laraflow/daemon.json", p.State())
	assert.Equal(t, "/var/lib/laraflow/daemon.log", p.Log())
	assert.True(t, strings.HasSuffix(DefaultPaths().Dir, "laraflow"))
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "42s", formatUptime(42*time.Second))
	assert.Equal(t, "5m", formatUptime(5*time.Minute+10*time.Second))
	assert.Equal(t, "2h", formatUptime(2*time.Hour))
	assert.Equal(t, "2h 30m", formatUptime(150*time.Minute))
	assert.Equal(t, "3d", formatUptime(72*time.Hour))
	assert.Equal(t, "1d 4h", formatUptime(28*time.Hour))
}

// =============================================================================
// Health Tests
// =============================================================================

func TestHealthCheckerAggregates(t *testing.T) {
	h := NewHealthChecker("1.2.3")
	h.AddCheck("store", func(context.Context) error { return nil })

	status := h.Check(context.Background())
	assert.Equal(t, StatusHealthy, status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	require.Len(t, status.Checks, 1)
	assert.True(t, status.Checks[0].Healthy)

	h.AddCheck("broker", func(context.Context) error { return errors.New("connection refused") })
	status = h.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, status.Status)
	assert.Equal(t, "broker", status.Checks[0].Name, "checks are sorted by name")
	assert.Equal(t, "connection refused", status.Checks[0].Error)
}

func TestHealthCheckerHTTP(t *testing.T) {
	h := NewHealthChecker("dev")
	h.SetJobs(func() []scheduler.JobStatus {
		return []scheduler.JobStatus{{Name: metrics.JobSweep, Schedule: "0 3 * * *"}}
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Jobs, 1)
	assert.Equal(t, metrics.JobSweep, body.Jobs[0].Name)

	h.AddCheck("store", func(context.Context) error { return errors.New("closed") })
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServerRoutes(t *testing.T) {
	m := metrics.NewCollector()
	m.SweepErased("tasks", 3)
	srv := httptest.NewServer(NewServer(m, NewHealthChecker("dev")).Handler())
	defer srv.Close()

	body := get(t, srv.URL+"/metrics", http.StatusOK)
	assert.Contains(t, body, "laraflow_")

	body = get(t, srv.URL+"/healthz", http.StatusOK)
	assert.Contains(t, body, `"status": "healthy"`)
}

// =============================================================================
// Log Tests
// =============================================================================

func TestOpenLogRotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", LogFileName)

	f, err := OpenLog(path, 16)
	require.NoError(t, err)
	_, err = f.WriteString("level=INFO msg=\"first run\"\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f, err = OpenLog(path, 16)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	old, err := os.ReadFile(path + ".old")
	require.NoError(t, err)
	assert.Contains(t, string(old), "first run")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestTailLogAndLastError(t *testing.T) {
	path := filepath.Join(t.TempDir(), LogFileName)
	var lines []string
	for i := range 15 {
		lines = append(lines, fmt.Sprintf("level=INFO msg=line%d", i))
	}
	lines = append(lines, `level=ERROR msg="store unavailable"`, "level=INFO msg=after")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))

	tail, err := TailLog(path, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"level=INFO msg=line14", `level=ERROR msg="store unavailable"`, "level=INFO msg=after"}, tail)

	assert.Equal(t, `level=ERROR msg="store unavailable"`, lastLogError(path))
	assert.Empty(t, lastLogError(filepath.Join(t.TempDir(), "missing.log")))
}

// =============================================================================
// Daemon Tests
// =============================================================================

func TestStatusWhenNotRunning(t *testing.T) {
	d := New(Paths{Dir: t.TempDir()}, config.DaemonConfig{})
	status := d.GetStatus()
	assert.False(t, status.Running)
	assert.Equal(t, d.Paths().Log(), status.LogPath)
	assert.ErrorIs(t, d.Stop(), ErrNotRunning)
}

func TestRunServesUntilCancelled(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Storage = config.StorageConfig{Driver: config.DriverBadger, Path: runtime.InMemory}
	cfg.Daemon.MetricsAddr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rc, err := runtime.NewWithConfig(ctx, cfg, runtime.DefaultOptions())
	require.NoError(t, err)
	defer rc.Close()

	d := New(Paths{Dir: t.TempDir()}, cfg.Daemon)
	ready := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- d.Run(ctx, rc, RunOptions{Version: "test", OnReady: func(addr string) { ready <- addr }})
	}()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		t.Fatalf("daemon exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not become ready")
	}
	require.NotEmpty(t, addr)

	status := d.GetStatus()
	assert.True(t, status.Running)
	assert.Equal(t, os.Getpid(), status.PID)
	assert.Equal(t, addr, status.MetricsAddr)

	assert.ErrorIs(t, d.Run(ctx, rc, RunOptions{}), ErrAlreadyRunning)

	body := get(t, "http://"+addr+"/healthz", http.StatusOK)
	var health HealthStatus
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	assert.Equal(t, StatusHealthy, health.Status)
	assert.Len(t, health.Jobs, 2)

	pid, err := d.Trigger()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.Eventually(t, func() bool {
		var h HealthStatus
		if err := json.Unmarshal([]byte(get(t, "http://"+addr+"/healthz", http.StatusOK)), &h); err != nil {
			return false
		}
		for _, job := range h.Jobs {
			if job.Runs == 0 || job.Running {
				return false
			}
		}
		return len(h.Jobs) == 2
	}, 5*time.Second, 50*time.Millisecond, "trigger runs every job")

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
	assert.NoFileExists(t, d.Paths().PID())
	assert.NoFileExists(t, d.Paths().State())
}

func TestTriggerWithoutDaemon(t *testing.T) {
	d := New(Paths{Dir: t.TempDir()}, config.DaemonConfig{})
	_, err := d.Trigger()
	assert.ErrorIs(t, err, ErrNotRunning)
}

func get(t *testing.T, url string, wantStatus int) string {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, wantStatus, resp.StatusCode)
	return string(data)
}
