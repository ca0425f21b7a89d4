package scheduler

import (
	"context"

	"github.com/laraflow/laraflow/internal/config"
	"github.com/laraflow/laraflow/internal/deadline"
	"github.com/laraflow/laraflow/internal/metrics"
	"github.com/laraflow/laraflow/internal/retention"
)

// SweepJob runs the retention sweep with the live configuration.
type SweepJob struct {
	Config  *config.Holder
	Sweeper *retention.Sweeper
}

// Name returns the job name.
func (j *SweepJob) Name() string { return metrics.JobSweep }

// Run sweeps once. Type-level failures are in the report and logged by the
// sweeper; only run-level errors are returned.
func (j *SweepJob) Run(ctx context.Context) error {
	_, err := j.Sweeper.Run(ctx, retention.OptionsFromConfig(j.Config.Get()))
	return err
}

// DeadlineJob runs the deadline notifier with the live configuration.
type DeadlineJob struct {
	Config   *config.Holder
	Notifier *deadline.Notifier
}

// Name returns the job name.
func (j *DeadlineJob) Name() string { return metrics.JobDeadlines }

// Run notifies once.
func (j *DeadlineJob) Run(ctx context.Context) error {
	_, err := j.Notifier.Run(ctx, deadline.OptionsFromConfig(j.Config.Get()))
	return err
}

// Register adds the sweep and deadline jobs on their configured schedules.
func Register(s *Scheduler, holder *config.Holder, sweeper *retention.Sweeper, notifier *deadline.Notifier) error {
	cfg := holder.Get()
	if err := s.Add(cfg.Retention.Schedule, &SweepJob{Config: holder, Sweeper: sweeper}); err != nil {
		return err
	}
	return s.Add(cfg.Deadlines.Schedule, &DeadlineJob{Config: holder, Notifier: notifier})
}

// ApplyConfig reschedules the jobs after a configuration reload.
func ApplyConfig(s *Scheduler, cfg *config.Config) error {
	if err := s.Reschedule(metrics.JobSweep, cfg.Retention.Schedule); err != nil {
		return err
	}
	return s.Reschedule(metrics.JobDeadlines, cfg.Deadlines.Schedule)
}
