// Package httpclient sends JSON over HTTP and retries transient failures
// (429 and 5xx) with exponential backoff or the server's Retry-After.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	defaultRetries = 3
	defaultBackoff = time.Second
	maxErrorBody   = 512
)

// StatusError is a non-2xx response.
type StatusError struct {
	Code       int
	Body       string // truncated to 512 bytes
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpclient: status %d: %s", e.Code, e.Body)
}

// Temporary reports whether the request may succeed if repeated.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each attempt. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.hc.Timeout = d }
}

// WithToken sends "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option {
	return func(c *Client) {
		if token != "" {
			c.header.Set("Authorization", "Bearer "+token)
		}
	}
}

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.header.Set(key, value) }
}

// WithRetries sets how many times a temporary failure is retried. Default: 3.
func WithRetries(n int) Option {
	return func(c *Client) { c.retries = max(n, 0) }
}

// WithBackoff sets the first retry delay; later ones double. Default: 1s.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// Client talks JSON to one base URL.
type Client struct {
	base    string
	header  http.Header
	hc      *http.Client
	retries int
	backoff time.Duration
}

// New creates a Client rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:    baseURL,
		header:  make(http.Header),
		hc:      &http.Client{Timeout: defaultTimeout},
		retries: defaultRetries,
		backoff: defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches path with the given query and decodes the JSON reply into dest.
func (c *Client) Get(ctx context.Context, path string, query url.Values, dest any) error {
	target := c.base + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return c.send(ctx, http.MethodGet, target, nil, dest)
}

// Post encodes body as JSON, sends it to path and decodes the reply into
// dest. A nil dest discards the reply.
func (c *Client) Post(ctx context.Context, path string, body, dest any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("httpclient: encode: %w", err)
	}
	return c.send(ctx, http.MethodPost, c.base+path, payload, dest)
}

func (c *Client) send(ctx context.Context, method, target string, payload []byte, dest any) error {
	for attempt := 0; ; attempt++ {
		err := c.once(ctx, method, target, payload, dest)
		var se *StatusError
		if err == nil || !errors.As(err, &se) || !se.Temporary() || attempt >= c.retries {
			return err
		}
		if err := sleep(ctx, c.delay(attempt, se)); err != nil {
			return err
		}
	}
}

func (c *Client) once(ctx context.Context, method, target string, payload []byte, dest any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("httpclient: %w", err)
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return &StatusError{
			Code:       resp.StatusCode,
			Body:       string(data),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	}
	if dest == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("httpclient: decode: %w", err)
	}
	return nil
}

func (c *Client) delay(attempt int, se *StatusError) time.Duration {
	if se.RetryAfter > 0 {
		return se.RetryAfter
	}
	return c.backoff << attempt
}

// parseRetryAfter accepts delay-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(max(secs, 0)) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
