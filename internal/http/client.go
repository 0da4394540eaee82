package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"
)

// Common errors.
var (
	ErrNotFound     = errors.New("http: resource not found")
	ErrForbidden    = errors.New("http: access forbidden")
	ErrUnauthorized = errors.New("http: unauthorized")
	ErrRateLimited  = errors.New("http: rate limited")
	ErrServerError  = errors.New("http: server error")
)

// Options configures the HTTP client.
type Options struct {
	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 100
	MaxIdleConnsPerHost int

	// Timeout bounds the wait for response headers. Bodies are streamed
	// without a deadline.
	// Default: 30s
	Timeout time.Duration

	// RetryAttempts is the maximum number of retry attempts.
	// Default: 5
	RetryAttempts int

	// RetryBackoff is the initial backoff duration.
	// Default: 1s
	RetryBackoff time.Duration

	// RetryMaxBackoff is the maximum backoff duration.
	// Default: 30s
	RetryMaxBackoff time.Duration

	// Wrap, if set, wraps the base transport (e.g. to add authentication).
	Wrap func(http.RoundTripper) http.RoundTripper
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxIdleConnsPerHost: 100,
		Timeout:             30 * time.Second,
		RetryAttempts:       5,
		RetryBackoff:        time.Second,
		RetryMaxBackoff:     30 * time.Second,
	}
}

// StatusError is returned for non-success responses. It wraps one of the
// package sentinel errors when the status code maps to one.
type StatusError struct {
	Code    int
	Message string
	kind    error
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("unexpected status code: %d", e.Code)
	if e.kind != nil {
		msg = e.kind.Error()
	}
	if e.Message != "" {
		return msg + ": " + e.Message
	}
	return msg
}

func (e *StatusError) Unwrap() error {
	return e.kind
}

// NewStatusError returns the StatusError for code, wrapping the matching
// sentinel.
func NewStatusError(code int, message string) *StatusError {
	return &StatusError{Code: code, Message: message, kind: statusKind(code)}
}

// Client builds the pooled, retrying HTTP client used for Drive metadata
// calls and streamed downloads.
type Client struct {
	client *http.Client
	opts   Options
}

// NewClient creates a new HTTP client with the given options.
func NewClient(opts Options) *Client {
	var transport http.RoundTripper = &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConnsPerHost:   opts.MaxIdleConnsPerHost,
		MaxIdleConns:          opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: opts.Timeout,
	}
	if opts.Wrap != nil {
		transport = opts.Wrap(transport)
	}

	c := &Client{opts: opts}
	c.client = &http.Client{Transport: &retryTransport{base: transport, client: c}}
	return c
}

// HTTPClient returns the client. Requests without a body are retried on
// transport errors, server errors and 429 responses with backoff.
func (c *Client) HTTPClient() *http.Client {
	return c.client
}

// retryTransport retries requests without a body on transport errors, 5xx
// and 429. The last failing response is returned as is.
type retryTransport struct {
	base   http.RoundTripper
	client *Client
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body != nil && req.Body != http.NoBody {
		return t.base.RoundTrip(req)
	}

	ctx := req.Context()
	attempts := t.client.opts.RetryAttempts
	var lastErr error

	for attempt := 0; attempt <= attempts; attempt++ {
		if attempt > 0 {
			if err := t.client.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		resp, err := t.base.RoundTrip(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if !retryableStatus(resp.StatusCode) || attempt == attempts {
			return resp, nil
		}
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()
		lastErr = &StatusError{Code: resp.StatusCode, kind: statusKind(resp.StatusCode)}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", attempts+1, lastErr)
}

func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

// backoff waits for an exponentially increasing duration with jitter.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	backoff := c.opts.RetryBackoff * time.Duration(1<<uint(attempt-1))
	if backoff > c.opts.RetryMaxBackoff {
		backoff = c.opts.RetryMaxBackoff
	}

	// Add jitter: 0.5 to 1.5 of backoff
	jitter := time.Duration(float64(backoff) * (0.5 + rand.Float64()))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(jitter):
		return nil
	}
}

// statusKind maps a status code to a sentinel error.
func statusKind(code int) error {
	switch {
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code >= 500:
		return fmt.Errorf("%w: %s", ErrServerError, strconv.Itoa(code))
	default:
		return nil
	}
}
