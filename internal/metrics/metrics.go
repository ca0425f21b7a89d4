// Package metrics exposes Prometheus metrics for the maintenance jobs. A nil
// *Collector is valid and records nothing, so jobs run without metrics in
// the CLI and in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "laraflow"

// Job names used as label values.
const (
	JobSweep     = "sweep"
	JobDeadlines = "deadlines"
)

// Collector owns a private registry and the job metrics.
type Collector struct {
	registry *prometheus.Registry

	sweepErased   *prometheus.CounterVec
	sweepFailures *prometheus.CounterVec
	sweepDuration prometheus.Histogram

	notifications *prometheus.CounterVec
	webhookSends  *prometheus.CounterVec

	lastSuccess *prometheus.GaugeVec
	runFailures *prometheus.CounterVec
}

// NewCollector registers all metrics on a fresh registry, plus the Go and
// process collectors.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		sweepErased: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "erased_total",
			Help:      "Trashed records permanently erased, by entity type.",
		}, []string{"entity"}),
		sweepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "failures_total",
			Help:      "Entity types whose sweep failed.",
		}, []string{"entity"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retention",
			Name:      "run_duration_seconds",
			Help:      "Duration of retention sweeps.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "deadlines",
			Name:      "notifications_total",
			Help:      "Deadline notifications by kind and outcome (sent, skipped, failed).",
		}, []string{"kind", "outcome"}),
		webhookSends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhooks",
			Name:      "sends_total",
			Help:      "Webhook deliveries by webhook type and status.",
		}, []string{"type", "status"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run per job.",
		}, []string{"job"}),
		runFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_failures_total",
			Help:      "Runs that failed with an unrecoverable error, per job.",
		}, []string{"job"}),
	}

	reg.MustRegister(
		c.sweepErased, c.sweepFailures, c.sweepDuration,
		c.notifications, c.webhookSends,
		c.lastSuccess, c.runFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the private registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

// SweepErased adds n erased records for an entity type.
func (c *Collector) SweepErased(entity string, n int) {
	if c == nil || n <= 0 {
		return
	}
	c.sweepErased.WithLabelValues(entity).Add(float64(n))
}

// SweepFailed counts a failed entity type.
func (c *Collector) SweepFailed(entity string) {
	if c == nil {
		return
	}
	c.sweepFailures.WithLabelValues(entity).Inc()
}

// SweepDuration observes a sweep duration.
func (c *Collector) SweepDuration(d time.Duration) {
	if c == nil {
		return
	}
	c.sweepDuration.Observe(d.Seconds())
}

// Notification counts a deadline notification outcome.
func (c *Collector) Notification(kind, outcome string) {
	if c == nil {
		return
	}
	c.notifications.WithLabelValues(kind, outcome).Inc()
}

// WebhookSend counts a webhook delivery.
func (c *Collector) WebhookSend(webhookType string, ok bool) {
	if c == nil {
		return
	}
	status := "success"
	if !ok {
		status = "failure"
	}
	c.webhookSends.WithLabelValues(webhookType, status).Inc()
}

// JobSucceeded records the time of a successful run.
func (c *Collector) JobSucceeded(job string, at time.Time) {
	if c == nil {
		return
	}
	c.lastSuccess.WithLabelValues(job).Set(float64(at.Unix()))
}

// JobFailed counts a failed run.
func (c *Collector) JobFailed(job string) {
	if c == nil {
		return
	}
	c.runFailures.WithLabelValues(job).Inc()
}
