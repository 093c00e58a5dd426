// Package httpx is the shared HTTP client for every external API the
// tools call. It applies one retry/backoff policy, an optional token
// bucket rate limiter, and maps HTTP status codes onto the error
// taxonomy the tool envelopes use.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Sentinels for the status taxonomy. StatusError unwraps to these so
// callers can use errors.Is.
var (
	ErrNoResults   = errors.New("no results")
	ErrRateLimited = errors.New("rate limited")
	ErrServer      = errors.New("server error")
)

// StatusError reports a non-2xx response after retries are exhausted.
type StatusError struct {
	StatusCode int
	URL        string
	Snippet    string
}

func (e *StatusError) Error() string {
	if e.Snippet == "" {
		return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Snippet)
}

func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return ErrNoResults
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.StatusCode >= 500:
		return ErrServer
	}
	return nil
}

// ErrorType names the error for the tool envelope.
func (e *StatusError) ErrorType() string {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return "no_results"
	case e.StatusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case e.StatusCode >= 500:
		return "server_error"
	}
	return "http_error"
}

// RetryPolicy controls the retry loop. Backoff is BaseDelay shifted
// left per attempt and capped at MaxDelay; 429 responses wait double,
// or the server's Retry-After seconds when present.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Config configures a Client. Zero values pick the defaults.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	Retry     RetryPolicy
	Limiter   *RateLimiter
}

// Client wraps http.Client with the shared policy.
type Client struct {
	base      *http.Client
	policy    RetryPolicy
	limiter   *RateLimiter
	userAgent string
	sleep     func(context.Context, time.Duration) error
}

// New returns a Client ready for use.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = 500 * time.Millisecond
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = 8 * time.Second
	}
	return &Client{
		base:      &http.Client{Timeout: cfg.Timeout},
		policy:    cfg.Retry,
		limiter:   cfg.Limiter,
		userAgent: cfg.UserAgent,
		sleep:     sleepCtx,
	}
}

// Do performs req with retries. Transport failures, 429 and 5xx are
// retried; other statuses return immediately. Requests with a body
// must be replayable (GetBody set, as NewRequestWithContext does for
// common body types).
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		return nil, errors.New("request body is not replayable")
	}
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	ctx := req.Context()

	var lastErr error
	var wait time.Duration
	for attempt := 0; attempt < c.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
			if req.GetBody != nil {
				body, err := req.GetBody()
				if err != nil {
					return nil, fmt.Errorf("replay request body: %w", err)
				}
				req.Body = body
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := c.base.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			wait = c.backoff(attempt)
			continue
		}

		switch {
		case resp.StatusCode < 400:
			return resp, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = statusErr(resp)
			drain(resp)
			wait = retryAfter(resp)
			if wait == 0 {
				wait = 2 * c.backoff(attempt)
			}
		case resp.StatusCode >= 500:
			lastErr = statusErr(resp)
			drain(resp)
			wait = c.backoff(attempt)
		default:
			err := statusErr(resp)
			drain(resp)
			return nil, err
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", c.policy.MaxAttempts, lastErr)
}

// Get fetches url and returns the response body.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

// GetJSON fetches url and decodes the JSON body into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	body, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.policy.BaseDelay << attempt
	if d > c.policy.MaxDelay {
		d = c.policy.MaxDelay
	}
	return d
}

func statusErr(resp *http.Response) *StatusError {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
	return &StatusError{
		StatusCode: resp.StatusCode,
		URL:        resp.Request.URL.String(),
		Snippet:    string(snippet),
	}
}

func drain(resp *http.Response) {
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
