// Package scheduler runs the maintenance jobs on cron schedules inside the
// daemon. A job never overlaps itself: a tick that fires while the previous
// run is still going is skipped.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/laraflow/laraflow/internal/logging"
)

// Job is a unit of scheduled work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobFunc adapts a function to Job.
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context) error
}

// Name returns the job name.
func (j JobFunc) Name() string { return j.JobName }

// Run calls Fn.
func (j JobFunc) Run(ctx context.Context) error { return j.Fn(ctx) }

// JobStatus describes a registered job.
type JobStatus struct {
	Name      string    `json:"name"`
	Schedule  string    `json:"schedule"`
	Running   bool      `json:"running"`
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
	LastRun   time.Time `json:"last_run,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	Next      time.Time `json:"next,omitempty"`
}

type entry struct {
	job      Job
	schedule string
	id       cron.EntryID

	mu     sync.Mutex
	status JobStatus
}

// Scheduler manages scheduled jobs using cron.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	entries map[string]*entry
}

// NewScheduler creates a scheduler evaluating schedules in loc.
func NewScheduler(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	logger := logging.Component("scheduler")
	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]*entry),
	}
}

// Add registers job on a standard five-field cron schedule.
func (s *Scheduler) Add(schedule string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[job.Name()]; ok {
		return fmt.Errorf("job %q already registered", job.Name())
	}

	e := &entry{job: job, schedule: schedule}
	e.status.Name = job.Name()
	e.status.Schedule = schedule

	id, err := s.cron.AddFunc(schedule, func() { s.run(e) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", schedule, job.Name(), err)
	}
	e.id = id
	s.entries[job.Name()] = e
	return nil
}

// Reschedule moves a registered job to a new schedule. An unchanged
// schedule is a no-op.
func (s *Scheduler) Reschedule(name, schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("job %q not registered", name)
	}
	if e.schedule == schedule {
		return nil
	}

	id, err := s.cron.AddFunc(schedule, func() { s.run(e) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", schedule, name, err)
	}
	s.cron.Remove(e.id)
	e.id = id
	e.schedule = schedule
	e.mu.Lock()
	e.status.Schedule = schedule
	e.mu.Unlock()

	s.logger.Info("job rescheduled", logging.KeyJob, name, "schedule", schedule)
	return nil
}

// RunNow runs a registered job synchronously, outside the cron schedule.
// It returns an error if the job is already running.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %q not registered", name)
	}
	return s.execute(ctx, e)
}

func (s *Scheduler) run(e *entry) {
	_ = s.execute(s.ctx, e)
}

func (s *Scheduler) execute(parent context.Context, e *entry) error {
	e.mu.Lock()
	if e.status.Running {
		e.mu.Unlock()
		return fmt.Errorf("job %q is already running", e.job.Name())
	}
	e.status.Running = true
	e.mu.Unlock()

	ctx := logging.NewRunContext(parent)
	logger := logging.WithContext(ctx, s.logger).With(logging.KeyJob, e.job.Name())
	start := time.Now()
	logger.Debug("job started")

	err := e.job.Run(ctx)

	e.mu.Lock()
	e.status.Running = false
	e.status.Runs++
	e.status.LastRun = start
	if err != nil {
		e.status.Failures++
		e.status.LastError = err.Error()
	} else {
		e.status.LastError = ""
	}
	e.mu.Unlock()

	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		logger.Error("job failed", logging.KeyError, err, logging.KeyDuration, elapsed)
	} else {
		logger.Info("job finished", logging.KeyDuration, elapsed)
	}
	return err
}

// Start starts the cron loop.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.entries))
}

// Stop stops scheduling, cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	s.cancel()
	<-stopCtx.Done()
	s.logger.Info("scheduler stopped")
}

// Status returns the jobs ordered by name.
func (s *Scheduler) Status() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.entries))
	for _, e := range s.entries {
		e.mu.Lock()
		st := e.status
		e.mu.Unlock()
		st.Next = s.cron.Entry(e.id).Next
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NextRun returns the earliest next run of any job.
func (s *Scheduler) NextRun() time.Time {
	var next time.Time
	for _, e := range s.cron.Entries() {
		if next.IsZero() || (!e.Next.IsZero() && e.Next.Before(next)) {
			next = e.Next
		}
	}
	return next
}

// cronLogger routes cron's logr-style messages to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append([]any{logging.KeyError, err}, keysAndValues...)...)
}
