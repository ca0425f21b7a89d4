package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/laraflow/laraflow/internal/scheduler"
)

// Health status values.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// CheckTimeout bounds a single health check.
const CheckTimeout = 2 * time.Second

// HealthStatus is the /healthz response body.
type HealthStatus struct {
	Status        string                `json:"status"`
	UptimeSeconds int64                 `json:"uptime_seconds"`
	Version       string                `json:"version,omitempty"`
	Checks        []CheckResult         `json:"checks"`
	Jobs          []scheduler.JobStatus `json:"jobs,omitempty"`
}

// CheckResult is the outcome of one named check.
type CheckResult struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// HealthChecker aggregates named checks such as the store ping.
type HealthChecker struct {
	mu        sync.RWMutex
	startTime time.Time
	version   string
	checks    map[string]func(context.Context) error
	jobs      func() []scheduler.JobStatus
}

// NewHealthChecker creates a new health checker.
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{
		startTime: time.Now(),
		version:   version,
		checks:    make(map[string]func(context.Context) error),
	}
}

// AddCheck registers a named check.
func (h *HealthChecker) AddCheck(name string, check func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// SetJobs attaches a job status source reported alongside the checks.
func (h *HealthChecker) SetJobs(jobs func() []scheduler.JobStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.jobs = jobs
}

// Check runs every check and reports unhealthy if any fails.
func (h *HealthChecker) Check(ctx context.Context) *HealthStatus {
	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	checks := h.checks
	jobs := h.jobs
	h.mu.RUnlock()
	sort.Strings(names)

	status := &HealthStatus{
		Status:        StatusHealthy,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Version:       h.version,
		Checks:        make([]CheckResult, 0, len(names)),
	}
	for _, name := range names {
		cctx, cancel := context.WithTimeout(ctx, CheckTimeout)
		err := checks[name](cctx)
		cancel()

		result := CheckResult{Name: name, Healthy: err == nil}
		if err != nil {
			result.Error = err.Error()
			status.Status = StatusUnhealthy
		}
		status.Checks = append(status.Checks, result)
	}
	if jobs != nil {
		status.Jobs = jobs()
	}
	return status
}

// Uptime returns how long the daemon has been running.
func (h *HealthChecker) Uptime() time.Duration {
	return time.Since(h.startTime)
}

// ServeHTTP writes the status as JSON, with 503 when unhealthy.
func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.Check(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if status.Status != StatusHealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(status)
}
