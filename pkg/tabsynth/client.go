package tabsynth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const apiPrefix = "/api/v2"

// Client talks to the TabSynth platform API. It is safe for concurrent use.
// Requests are rate limited client-side; idempotent GETs are retried on
// transient failures (429 and 5xx).
type Client struct {
	baseURL      *url.URL
	apiKey       string
	httpClient   *http.Client
	limiter      *rate.Limiter
	pollInterval time.Duration
	maxRetries   int
	logger       *slog.Logger
}

// ClientOption configures a Client at construction time.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithPollInterval sets how often job status is polled while waiting. The
// default is two seconds.
func WithPollInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithRateLimit replaces the default client-side rate limit of 10 requests
// per second with a burst of 20.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithRetries sets how many times an idempotent request is retried after a
// transient failure. The default is 3.
func WithRetries(n int) ClientOption {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// NewClient creates a Client for the platform at baseURL, authenticating
// every request with the given API key.
func NewClient(baseURL, apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("tabsynth: api key is required")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("tabsynth: invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("tabsynth: base url %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL:      u,
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		limiter:      rate.NewLimiter(rate.Limit(10), 20),
		pollInterval: 2 * time.Second,
		maxRetries:   3,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetLogger sets the logger for the Client. By default, all logs are
// discarded.
func (c *Client) SetLogger(logger *slog.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// send performs one API request, transparently retrying idempotent GETs on
// transport errors, 429 and 5xx. The caller owns the returned body.
func (c *Client) send(ctx context.Context, method, path, contentType string, body []byte) (*http.Response, error) {
	retryable := method == http.MethodGet

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), reader)
		if err != nil {
			return nil, fmt.Errorf("failed to build %s %s: %w", method, path, err)
		}
		req.Header.Set("X-API-Key", c.apiKey)
		req.Header.Set("X-Request-Id", uuid.NewString())
		req.Header.Set("Accept", "application/json, text/csv")
		if body != nil {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if !retryable || attempt >= c.maxRetries {
				return nil, fmt.Errorf("%s %s failed: %w", method, path, err)
			}
			c.logger.DebugContext(ctx, "Retrying request after transport error",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("attempt", attempt+1),
			)
			if err := sleepCtx(ctx, retryDelay(attempt, "")); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		apiErr := decodeAPIError(resp)
		if retryable && attempt < c.maxRetries &&
			(resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500) {
			c.logger.DebugContext(ctx, "Retrying request after API error",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
			)
			if err := sleepCtx(ctx, retryDelay(attempt, resp.Header.Get("Retry-After"))); err != nil {
				return nil, err
			}
			continue
		}
		return nil, apiErr
	}
}

// do performs a JSON request/response round trip. in and out may be nil.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	resp, err := c.send(ctx, method, path, "application/json", body)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s %s: %w", method, path, err)
	}
	return nil
}

// retryDelay computes the backoff before the next attempt, honoring a
// Retry-After header (in seconds) when present.
func retryDelay(attempt int, retryAfter string) time.Duration {
	if retryAfter != "" {
		if secs, err := strconv.Atoi(retryAfter); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return (500 * time.Millisecond) << attempt
}

// sleepCtx sleeps for d unless the context is canceled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
