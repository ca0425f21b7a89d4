package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.SweepErased("tasks", 3)
		c.SweepFailed("tasks")
		c.SweepDuration(time.Second)
		c.Notification("task_overdue", "sent")
		c.WebhookSend("slack", true)
		c.JobSucceeded(JobSweep, time.Now())
		c.JobFailed(JobSweep)
	})
	assert.Nil(t, c.Registry())
}

func TestSweepCounters(t *testing.T) {
	c := NewCollector()

	c.SweepErased("tasks", 150)
	c.SweepErased("tasks", 0)
	c.SweepErased("lists", 2)
	c.SweepFailed("projects")

	assert.Equal(t, 150.0, testutil.ToFloat64(c.sweepErased.WithLabelValues("tasks")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.sweepErased.WithLabelValues("lists")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sweepFailures.WithLabelValues("projects")))
}

func TestNotificationCounters(t *testing.T) {
	c := NewCollector()

	c.Notification("task_due_soon", "sent")
	c.Notification("task_due_soon", "sent")
	c.Notification("task_due_soon", "skipped")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.notifications.WithLabelValues("task_due_soon", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.notifications.WithLabelValues("task_due_soon", "skipped")))
}

func TestJobGauges(t *testing.T) {
	c := NewCollector()
	at := time.Date(2024, 1, 9, 10, 30, 0, 0, time.UTC)

	c.JobSucceeded(JobDeadlines, at)
	c.JobFailed(JobSweep)

	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(c.lastSuccess.WithLabelValues(JobDeadlines)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runFailures.WithLabelValues(JobSweep)))
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector()
	c.SweepErased("tasks", 1)
	c.WebhookSend("discord", false)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `laraflow_retention_erased_total{entity="tasks"} 1`)
	assert.Contains(t, body, `laraflow_webhooks_sends_total{status="failure",type="discord"} 1`)
}
