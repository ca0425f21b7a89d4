package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laraflow/laraflow/internal/config"
	"github.com/laraflow/laraflow/internal/metrics"
	"github.com/laraflow/laraflow/internal/model"
	"github.com/laraflow/laraflow/internal/storage"
)

var fixedNow = time.Date(2024, 1, 9, 10, 30, 0, 0, time.UTC)

func testNotification() *model.Notification {
	n := model.NewNotification(model.NotifyDueSoon, "Task due soon", "Ship release notes").
		WithField("Task", "Ship release notes").
		WithField("Due", "2024-01-10 10:00")
	n.Timestamp = fixedNow
	return n
}

// fastClient never waits between retries.
func fastClient(retries int) *HTTPClient {
	return NewHTTPClientFromConfig(config.HTTPConfig{
		Timeout:     2 * time.Second,
		MaxRetries:  retries,
		RetryDelays: []time.Duration{},
	})
}

func setupStore(t *testing.T) *storage.Store {
	s, err := storage.OpenStore(storage.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type receiver struct {
	*httptest.Server
	hits   atomic.Int32
	status int
	body   atomic.Value
}

func newReceiver(t *testing.T, status int) *receiver {
	r := &receiver{status: status}
	r.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.hits.Add(1)
		b, _ := io.ReadAll(req.Body)
		r.body.Store(string(b))
		assert.Equal(t, UserAgent, req.Header.Get("User-Agent"))
		w.WriteHeader(r.status)
	}))
	t.Cleanup(r.Close)
	return r
}

func addWebhook(t *testing.T, s *storage.Store, name, typ, url string) *model.Webhook {
	w := model.NewWebhook(name, typ, url)
	require.NoError(t, s.CreateWebhook(context.Background(), w))
	return w
}

// =============================================================================
// Formatter Tests
// =============================================================================

func TestGetFormatter(t *testing.T) {
	tests := []struct {
		webhookType string
		expected    string
	}{
		{model.WebhookTypeDiscord, "*notify.DiscordFormatter"},
		{model.WebhookTypeSlack, "*notify.SlackFormatter"},
		{model.WebhookTypeTeams, "*notify.TeamsFormatter"},
		{model.WebhookTypeGeneric, "*notify.GenericFormatter"},
		{"unknown", "*notify.GenericFormatter"},
		{"", "*notify.GenericFormatter"},
	}

	for _, tt := range tests {
		t.Run(tt.webhookType, func(t *testing.T) {
			formatter := GetFormatter(tt.webhookType)
			assert.NotNil(t, formatter)
			assert.Equal(t, tt.expected, fmt.Sprintf("%T", formatter))
			assert.Equal(t, "application/json", formatter.ContentType())
		})
	}
}

func TestDiscordFormatter(t *testing.T) {
	payload, err := (&DiscordFormatter{}).Format(testNotification())
	require.NoError(t, err)

	var got discordPayload
	require.NoError(t, json.Unmarshal(payload, &got))
	require.Len(t, got.Embeds, 1)

	embed := got.Embeds[0]
	assert.Equal(t, "Task due soon", embed.Title)
	assert.Equal(t, model.ColorWarning, embed.Color)
	assert.Equal(t, "2024-01-09T10:30:00Z", embed.Timestamp)
	assert.Equal(t, Footer, embed.Footer.Text)
	require.Len(t, embed.Fields, 2)
	assert.Equal(t, "Due", embed.Fields[0].Name, "fields are sorted by name")
	assert.Equal(t, "Task", embed.Fields[1].Name)
}

func TestSlackFormatter(t *testing.T) {
	n := testNotification()
	n.Message = "a <b> & c"

	payload, err := (&SlackFormatter{}).Format(n)
	require.NoError(t, err)

	var got slackPayload
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, "*Task due soon*", got.Text)
	assert.Equal(t, "a &lt;b&gt; &amp; c", got.Blocks[1].Text.Text)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "#FEE75C", got.Attachments[0].Color)
}

func TestTeamsFormatter(t *testing.T) {
	payload, err := (&TeamsFormatter{}).Format(testNotification())
	require.NoError(t, err)

	var got teamsPayload
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, "MessageCard", got.Type)
	assert.Equal(t, "FEE75C", got.ThemeColor)
	assert.Equal(t, "Task Due Soon", got.Summary)
	require.Len(t, got.Sections, 1)
	require.Len(t, got.Sections[0].Facts, 2)
	assert.Equal(t, "Due", got.Sections[0].Facts[0].Name)
}

func TestGenericFormatter(t *testing.T) {
	t.Run("default_payload", func(t *testing.T) {
		payload, err := (&GenericFormatter{}).Format(testNotification())
		require.NoError(t, err)

		var got genericPayload
		require.NoError(t, json.Unmarshal(payload, &got))
		assert.Equal(t, "task_due_soon", got.Type)
		assert.Equal(t, "Ship release notes", got.Fields["Task"])
	})

	t.Run("template", func(t *testing.T) {
		f := NewGenericFormatter(`{"text":"{{.Title}}: {{index .Fields "Task"}}"}`)
		payload, err := f.Format(testNotification())
		require.NoError(t, err)
		assert.JSONEq(t, `{"text":"Task due soon: Ship release notes"}`, string(payload))
	})

	t.Run("bad_template", func(t *testing.T) {
		_, err := NewGenericFormatter(`{{.Title`).Format(testNotification())
		assert.Error(t, err)
	})
}

func TestFormatterForUsesTemplateOnlyForGeneric(t *testing.T) {
	w := model.NewWebhook("x", model.WebhookTypeSlack, "http://x")
	w.Template = "{{.Title}}"
	assert.IsType(t, &SlackFormatter{}, FormatterFor(w))

	w.Type = model.WebhookTypeGeneric
	f, ok := FormatterFor(w).(*GenericFormatter)
	require.True(t, ok)
	assert.Equal(t, "{{.Title}}", f.Template)
}

// =============================================================================
// HTTPClient Tests
// =============================================================================

func TestHTTPClientSend(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		r := newReceiver(t, http.StatusNoContent)
		res := fastClient(3).Send(context.Background(), r.URL, "application/json", []byte(`{}`))
		assert.NoError(t, res.Error)
		assert.Equal(t, http.StatusNoContent, res.StatusCode)
		assert.Equal(t, 1, res.Attempts)
	})

	t.Run("retries_server_errors", func(t *testing.T) {
		r := newReceiver(t, http.StatusBadGateway)
		res := fastClient(2).Send(context.Background(), r.URL, "application/json", []byte(`{}`))
		assert.Error(t, res.Error)
		assert.Equal(t, 3, res.Attempts)
		assert.Equal(t, int32(3), r.hits.Load())
	})

	t.Run("client_error_not_retried", func(t *testing.T) {
		r := newReceiver(t, http.StatusBadRequest)
		res := fastClient(3).Send(context.Background(), r.URL, "application/json", []byte(`{}`))
		assert.ErrorContains(t, res.Error, "HTTP 400")
		assert.Equal(t, int32(1), r.hits.Load())
	})

	t.Run("cancelled_context", func(t *testing.T) {
		r := newReceiver(t, http.StatusOK)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		res := fastClient(1).Send(ctx, r.URL, "application/json", []byte(`{}`))
		assert.ErrorIs(t, res.Error, context.Canceled)
		assert.Equal(t, int32(0), r.hits.Load())
	})
}

func TestNewHTTPClientFromConfig(t *testing.T) {
	c := NewHTTPClientFromConfig(config.HTTPConfig{
		Timeout:     5 * time.Second,
		MaxRetries:  1,
		RetryDelays: []time.Duration{0, time.Second},
	})
	assert.Equal(t, 5*time.Second, c.client.Timeout)
	assert.Equal(t, 1, c.maxRetries)
	assert.Equal(t, []time.Duration{0, time.Second}, c.retryDelay)
}

// =============================================================================
// Dispatcher Tests
// =============================================================================

func newTestDispatcher(s *storage.Store, m *metrics.Collector) *Dispatcher {
	return NewDispatcher(s,
		WithHTTPClient(fastClient(0)),
		WithMetrics(m),
		WithClock(func() time.Time { return fixedNow }),
	)
}

func TestDeliverWithoutWebhooks(t *testing.T) {
	d := newTestDispatcher(setupStore(t), nil)
	assert.NoError(t, d.Deliver(context.Background(), testNotification()))
}

func TestDeliverPartialSuccess(t *testing.T) {
	s := setupStore(t)
	ok := newReceiver(t, http.StatusOK)
	bad := newReceiver(t, http.StatusInternalServerError)
	addWebhook(t, s, "good", model.WebhookTypeDiscord, ok.URL)
	addWebhook(t, s, "broken", model.WebhookTypeGeneric, bad.URL)

	m := metrics.NewCollector()
	d := newTestDispatcher(s, m)
	require.NoError(t, d.Deliver(context.Background(), testNotification()))

	assert.Equal(t, int32(1), ok.hits.Load())
	assert.Equal(t, int32(1), bad.hits.Load())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `laraflow_webhooks_sends_total{status="success",type="discord"} 1`)
	assert.Contains(t, rec.Body.String(), `laraflow_webhooks_sends_total{status="failure",type="generic"} 1`)
}

func TestDeliverAllFailed(t *testing.T) {
	s := setupStore(t)
	bad := newReceiver(t, http.StatusInternalServerError)
	addWebhook(t, s, "broken", model.WebhookTypeGeneric, bad.URL)

	d := newTestDispatcher(s, nil)
	err := d.Deliver(context.Background(), testNotification())
	require.ErrorIs(t, err, ErrDeliveryFailed)
	assert.Contains(t, err.Error(), "broken")

	w, err := s.GetWebhook(context.Background(), "broken")
	require.NoError(t, err)
	require.NotNil(t, w.LastUsed)
	assert.True(t, fixedNow.Equal(*w.LastUsed))
	assert.Contains(t, w.LastError, "HTTP 500")
}

func TestDeliverHonoursEventFilterAndEnabled(t *testing.T) {
	s := setupStore(t)
	r := newReceiver(t, http.StatusOK)

	overdueOnly := model.NewWebhook("overdue", model.WebhookTypeGeneric, r.URL)
	overdueOnly.Events = []model.NotificationType{model.NotifyOverdue}
	require.NoError(t, s.CreateWebhook(context.Background(), overdueOnly))

	addWebhook(t, s, "off", model.WebhookTypeGeneric, r.URL)
	require.NoError(t, s.SetWebhookEnabled(context.Background(), "off", false))

	d := newTestDispatcher(s, nil)
	results, err := d.SendNotification(context.Background(), testNotification())
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, int32(0), r.hits.Load())
	assert.Equal(t, 1, d.CountEnabledWebhooks(context.Background()))
}

func TestTestWebhook(t *testing.T) {
	s := setupStore(t)
	r := newReceiver(t, http.StatusOK)
	addWebhook(t, s, "team", model.WebhookTypeGeneric, r.URL)

	d := newTestDispatcher(s, nil)
	res := d.TestWebhook(context.Background(), "team")
	require.NoError(t, res.Error)
	assert.True(t, res.Success)

	body, _ := r.body.Load().(string)
	assert.Contains(t, body, "Laraflow Test")
	assert.Contains(t, body, `"type":"test"`)
	assert.Contains(t, body, `"color":5763719`, "test messages are green")

	missing := d.TestWebhook(context.Background(), "nope")
	assert.False(t, missing.Success)
	assert.Error(t, missing.Error)
}
