package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/laraflow/laraflow/internal/config"
	"github.com/laraflow/laraflow/internal/model"
)

// UserAgent is sent with every webhook request.
const UserAgent = "Laraflow/1.0"

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 512

// HTTPClient handles HTTP requests with retry logic.
type HTTPClient struct {
	client     *http.Client
	maxRetries int
	retryDelay []time.Duration
}

// NewHTTPClient creates an HTTP client with the default delivery settings.
func NewHTTPClient() *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 3,
		retryDelay: []time.Duration{
			0,
			5 * time.Second,
			30 * time.Second,
		},
	}
}

// NewHTTPClientFromConfig creates an HTTP client from the http config section.
func NewHTTPClientFromConfig(cfg config.HTTPConfig) *HTTPClient {
	c := NewHTTPClient()
	if cfg.Timeout > 0 {
		c.client.Timeout = cfg.Timeout
	}
	if cfg.MaxRetries >= 0 {
		c.maxRetries = cfg.MaxRetries
	}
	if cfg.RetryDelays != nil {
		c.retryDelay = cfg.RetryDelays
	}
	return c
}

// SendResult contains the result of a send operation.
type SendResult struct {
	StatusCode int
	Duration   time.Duration
	Attempts   int
	Error      error
}

// Send posts body to url, retrying on transport errors, 429 and 5xx.
// Delays past the end of the configured list are zero.
func (c *HTTPClient) Send(ctx context.Context, url string, contentType string, body []byte) *SendResult {
	result := &SendResult{}
	start := time.Now()

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		result.Attempts = attempt + 1

		if attempt > 0 && attempt < len(c.retryDelay) && c.retryDelay[attempt] > 0 {
			timer := time.NewTimer(c.retryDelay[attempt])
			select {
			case <-ctx.Done():
				timer.Stop()
				result.Error = ctx.Err()
				result.Duration = time.Since(start)
				return result
			case <-timer.C:
			}
		}
		if err := ctx.Err(); err != nil {
			result.Error = err
			break
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			result.Error = fmt.Errorf("failed to create request: %w", err)
			result.Duration = time.Since(start)
			return result
		}

		req.Header.Set("Content-Type", contentType)
		req.Header.Set("User-Agent", UserAgent)

		resp, err := c.client.Do(req)
		if err != nil {
			result.Error = fmt.Errorf("request failed: %w", err)
			continue
		}

		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()

		result.StatusCode = resp.StatusCode

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			result.Error = nil
			result.Duration = time.Since(start)
			return result
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			result.Error = fmt.Errorf("rate limited (HTTP 429)")
			continue
		}

		if resp.StatusCode >= 500 {
			result.Error = fmt.Errorf("server error (HTTP %d): %s", resp.StatusCode, string(bodyBytes))
			continue
		}

		// Client errors are not retried.
		result.Error = fmt.Errorf("client error (HTTP %d): %s", resp.StatusCode, string(bodyBytes))
		result.Duration = time.Since(start)
		return result
	}

	result.Duration = time.Since(start)
	if result.Error == nil {
		result.Error = fmt.Errorf("max retries exceeded")
	}
	return result
}

// SendNotification formats n for w and posts it.
func (c *HTTPClient) SendNotification(ctx context.Context, w *model.Webhook, n *model.Notification) *SendResult {
	formatter := FormatterFor(w)
	payload, err := formatter.Format(n)
	if err != nil {
		return &SendResult{Error: fmt.Errorf("failed to format notification: %w", err)}
	}
	return c.Send(ctx, w.URL, formatter.ContentType(), payload)
}
