// Package retention permanently erases soft-deleted records once they are
// older than the retention window.
package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/laraflow/laraflow/internal/config"
	"github.com/laraflow/laraflow/internal/logging"
	"github.com/laraflow/laraflow/internal/metrics"
	"github.com/laraflow/laraflow/internal/model"
	"github.com/laraflow/laraflow/internal/repo"
)

// Defaults applied to zero Options fields.
const (
	DefaultRetentionDays = 7
	DefaultBatchSize     = 100
)

// ErrStoreUnavailable fails a run whose store cannot be reached.
var ErrStoreUnavailable = errors.New("store unavailable")

// Status is the outcome of sweeping one entity type.
type Status string

// Type outcomes.
const (
	StatusOK      Status = "ok"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Store is the persistence the sweeper needs.
type Store interface {
	repo.Trash
	Ping(ctx context.Context) error
}

// Options configures one sweep.
type Options struct {
	// RetentionDays is how long trashed records are kept. Zero sweeps
	// everything trashed before now.
	RetentionDays int
	// BatchSize bounds how many records are erased per batch.
	BatchSize int
	// EntityTypes are swept in order. Nil means DefaultSweepOrder.
	EntityTypes []model.EntityType
	// DryRun counts matching records without erasing them.
	DryRun bool
}

// OptionsFromConfig builds sweep options from the retention section.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		RetentionDays: cfg.Retention.Days,
		BatchSize:     cfg.Retention.BatchSize,
		EntityTypes:   cfg.EntityTypes(),
	}
}

func (o Options) withDefaults() Options {
	if o.RetentionDays < 0 {
		o.RetentionDays = DefaultRetentionDays
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.EntityTypes == nil {
		o.EntityTypes = model.DefaultSweepOrder()
	}
	return o
}

// TypeResult reports the sweep of one entity type.
type TypeResult struct {
	Entity  string `json:"entity"`
	Status  Status `json:"status"`
	Count   int    `json:"count"`
	Batches int    `json:"batches,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Report summarises a sweep.
type Report struct {
	Results   []TypeResult  `json:"results"`
	Total     int           `json:"total"`
	DryRun    bool          `json:"dry_run"`
	Cutoff    time.Time     `json:"cutoff"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// HasFailures reports whether any entity type failed.
func (r *Report) HasFailures() bool {
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Failed returns the failed entity results.
func (r *Report) Failed() []TypeResult {
	var out []TypeResult
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			out = append(out, res)
		}
	}
	return out
}

// Sweeper erases expired trash.
type Sweeper struct {
	store   Store
	metrics *metrics.Collector
	logger  *slog.Logger

	// Now is the sweeper clock.
	Now func() time.Time
}

// NewSweeper creates a sweeper over store. m may be nil.
func NewSweeper(store Store, m *metrics.Collector) *Sweeper {
	return &Sweeper{
		store:   store,
		metrics: m,
		logger:  logging.Component("retention"),
		Now:     time.Now,
	}
}

// SetLogger replaces the component logger.
func (s *Sweeper) SetLogger(l *slog.Logger) {
	s.logger = l
}

// Cutoff returns the instant before which trashed records are erased. It is
// truncated to the second, the precision of the SQL backend.
func Cutoff(now time.Time, days int) time.Time {
	return now.AddDate(0, 0, -days).Truncate(time.Second)
}

// Run sweeps every configured entity type. Type-level failures are reported
// in the Report; only an unreachable store fails the run.
func (s *Sweeper) Run(ctx context.Context, opts Options) (*Report, error) {
	opts = opts.withDefaults()
	now := s.Now()
	started := time.Now()
	logger := logging.WithContext(ctx, s.logger)

	report := &Report{
		DryRun:    opts.DryRun,
		Cutoff:    Cutoff(now, opts.RetentionDays),
		StartedAt: now,
	}

	if err := s.store.Ping(ctx); err != nil {
		s.metrics.JobFailed(metrics.JobSweep)
		logger.Error("store unavailable", logging.KeyError, err)
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	logger.Info("sweep started",
		logging.KeyCutoff, report.Cutoff.UTC().Format(time.RFC3339),
		logging.KeyDryRun, opts.DryRun,
		logging.KeyBatch, opts.BatchSize,
	)

	for _, name := range opts.EntityTypes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entity, err := model.ParseEntityType(string(name))
		if err != nil {
			logger.Warn("skipping unknown entity type", logging.KeyEntity, string(name))
			report.Results = append(report.Results, TypeResult{
				Entity: string(name),
				Status: StatusSkipped,
				Error:  err.Error(),
			})
			continue
		}

		var res TypeResult
		if opts.DryRun {
			res = s.count(ctx, entity, report.Cutoff)
		} else {
			res = s.sweep(ctx, logger, entity, report.Cutoff, opts.BatchSize)
		}

		if res.Status == StatusFailed {
			s.metrics.SweepFailed(res.Entity)
			logger.Error("sweep failed",
				logging.KeyEntity, res.Entity,
				logging.KeyErased, res.Count,
				logging.KeyError, res.Error,
			)
		} else {
			logger.Info("swept",
				logging.KeyEntity, res.Entity,
				logging.KeyCount, res.Count,
			)
		}

		report.Total += res.Count
		report.Results = append(report.Results, res)
	}

	report.Duration = time.Since(started)
	s.metrics.SweepDuration(report.Duration)
	s.metrics.JobSucceeded(metrics.JobSweep, now)

	logger.Info("sweep finished",
		logging.KeyCount, report.Total,
		logging.KeyDuration, report.Duration.Milliseconds(),
	)
	return report, nil
}

func (s *Sweeper) count(ctx context.Context, entity model.EntityType, cutoff time.Time) TypeResult {
	res := TypeResult{Entity: string(entity), Status: StatusOK}
	n, err := s.store.CountTrashedBefore(ctx, entity, cutoff)
	if err != nil {
		res.Status = StatusFailed
		res.Error = err.Error()
		return res
	}
	res.Count = n
	return res
}

// sweep erases batches of the oldest expired records until a batch comes
// back short or erases nothing.
func (s *Sweeper) sweep(ctx context.Context, logger *slog.Logger, entity model.EntityType, cutoff time.Time, batch int) TypeResult {
	res := TypeResult{Entity: string(entity), Status: StatusOK}

	for {
		if err := ctx.Err(); err != nil {
			res.Status = StatusFailed
			res.Error = err.Error()
			return res
		}

		ids, err := s.store.FindTrashedBefore(ctx, entity, cutoff, batch)
		if err != nil {
			res.Status = StatusFailed
			res.Error = fmt.Sprintf("find: %v", err)
			return res
		}
		if len(ids) == 0 {
			return res
		}

		erased, err := s.store.EraseEntities(ctx, entity, ids)
		res.Count += erased
		s.metrics.SweepErased(res.Entity, erased)
		if err != nil {
			res.Status = StatusFailed
			res.Error = fmt.Sprintf("erase: %v", err)
			return res
		}

		res.Batches++
		logger.Debug("batch erased",
			logging.KeyEntity, res.Entity,
			logging.KeyBatch, res.Batches,
			logging.KeyErased, erased,
		)

		if len(ids) < batch || erased == 0 {
			return res
		}
	}
}
