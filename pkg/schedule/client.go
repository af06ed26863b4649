package schedule

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"mercator-hq/custodian/pkg/server/middleware"
	"mercator-hq/custodian/pkg/telemetry/tracing"
)

// ErrNoSecret is returned when no shared secret is configured. The trigger
// is never called without one.
var ErrNoSecret = errors.New("scheduler secret not configured")

// StatusError reports a non-2xx answer from the trigger.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("trigger returned %d: %s", e.Code, e.Body)
}

// Client calls the retention trigger endpoint.
type Client struct {
	url          string
	secret       string
	secretHeader string
	http         *http.Client
	logger       *slog.Logger
}

// NewClient creates a client posting to url with secret in secretHeader.
// timeout bounds one call, including the purge it starts.
func NewClient(url, secret, secretHeader string, timeout time.Duration) *Client {
	return &Client{
		url:          url,
		secret:       secret,
		secretHeader: secretHeader,
		http:         &http.Client{Timeout: timeout},
		logger:       slog.Default().With("component", "schedule.client"),
	}
}

// Fire posts once to the trigger and returns the response body. Failures
// are not retried; the next tick selects the same rows again.
func (c *Client) Fire(ctx context.Context) ([]byte, error) {
	if c.secret == "" {
		return nil, ErrNoSecret
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build trigger request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set(c.secretHeader, c.secret)
	req.Header.Set(middleware.RequestIDHeader, requestID)
	tracing.Inject(ctx, req.Header)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trigger request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read trigger response: %w", err)
	}

	c.logger.Debug("trigger answered",
		"request_id", requestID,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return body, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
