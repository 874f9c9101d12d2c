// Package http wraps net/http with the retry policy shared by the search
// providers, the page fetcher and the HTTP language model client.
package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultRetries = 3
	DefaultBackoff = 500 * time.Millisecond
)

type Client struct {
	httpClient *http.Client
	retries    int
	backoff    time.Duration
	userAgent  string
}

// Option customizes a Client.
type Option func(*Client)

// WithRetries sets how many times a request is repeated after a retryable
// response or transport error. Zero disables retries.
func WithRetries(n int) Option {
	return func(c *Client) { c.retries = n }
}

// WithBackoff sets the base delay; attempt n waits base * 2^(n-1).
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// WithUserAgent sets a User-Agent header on requests that do not carry one.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithTransport replaces the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.httpClient.Transport = rt }
}

func NewClient(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		retries:    DefaultRetries,
		backoff:    DefaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsRetryableStatus reports whether a status code is worth another attempt.
func IsRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext sends req, repeating it on 429 and 5xx responses and on
// transport errors. The last response is returned as is once retries run out,
// so callers still inspect the status code.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	var body []byte
	if req.Body != nil && req.GetBody == nil {
		b, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		body = b
	}

	var (
		resp *http.Response
		err  error
	)
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			delay := c.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := rewind(req, body); err != nil {
			return nil, err
		}

		resp, err = c.httpClient.Do(req)
		if err == nil && !IsRetryableStatus(resp.StatusCode) {
			return resp, nil
		}
		if ctx.Err() != nil || attempt >= c.retries {
			return resp, err
		}
		if resp != nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
		}
	}
}

func rewind(req *http.Request, body []byte) error {
	if req.GetBody != nil {
		b, err := req.GetBody()
		if err != nil {
			return fmt.Errorf("rewind request body: %w", err)
		}
		req.Body = b
		return nil
	}
	if body != nil {
		req.Body = io.NopCloser(bytes.NewReader(body))
	}
	return nil
}
