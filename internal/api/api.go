// Package api is the JSON-over-HTTP client shared by the market-data and
// trading-backend gateways.
//
// Every failure is classified against the types error taxonomy: transport
// problems wrap types.ErrNetworkFailure, non-2xx statuses come back as
// *HTTPError, and undecodable bodies wrap types.ErrMalformedResponse.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"livechart/internal/logger"
	"livechart/internal/types"
)

// HTTPError is a response with status >= 400. It matches
// types.ErrNetworkFailure, and types.ErrNotFound for 404s.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, string(e.Body))
}

func (e *HTTPError) Is(target error) bool {
	switch target {
	case types.ErrNetworkFailure:
		return true
	case types.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	if errors.As(err, &he) {
		return he, true
	}
	return nil, false
}

type Client struct {
	hc      *http.Client
	baseURL string
	name    string
	headers http.Header
}

// ClientOption configures the API client
type ClientOption func(*Client)

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.hc.Timeout = timeout }
}

// WithBaseURL is prefixed to every request path.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHeader sets a header sent on every request.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) { c.headers.Set(key, value) }
}

// WithName labels the client's log lines ("binance", "backend").
func WithName(name string) ClientOption {
	return func(c *Client) { c.name = name }
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		hc:      &http.Client{Timeout: 30 * time.Second},
		name:    "http",
		headers: make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request is one call to make. Path is relative to the client's base URL.
type Request struct {
	Method string
	Path   string
	Body   any
	ctx    context.Context
}

type Response struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

func NewRequest(method, path string) *Request {
	return &Request{Method: method, Path: path, ctx: context.Background()}
}

func (r *Request) WithContext(ctx context.Context) *Request {
	r.ctx = ctx
	return r
}

// WithBody sets a body to be JSON encoded.
func (r *Request) WithBody(body any) *Request {
	r.Body = body
	return r
}

func (c *Client) build(req *Request) (*http.Request, error) {
	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", req.Method, req.Path, err)
		}
		body = bytes.NewReader(b)
	}

	hr, err := http.NewRequestWithContext(req.ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", req.Method, req.Path, err)
	}
	for k, v := range c.headers {
		hr.Header[k] = v
	}
	if req.Body != nil && hr.Header.Get("Content-Type") == "" {
		hr.Header.Set("Content-Type", "application/json")
	}
	return hr, nil
}

// Do sends req once.
func (c *Client) Do(req *Request) (*Response, error) {
	hr, err := c.build(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.hc.Do(hr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", types.ErrNetworkFailure, req.Method, req.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s %s: %v", types.ErrNetworkFailure, req.Method, req.Path, err)
	}

	logger.Debug(req.ctx, "HTTP call",
		"client", c.name,
		"method", req.Method,
		"path", req.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"bytes", len(body))

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: body}
	}
	return &Response{StatusCode: resp.StatusCode, Body: body, Headers: resp.Header}, nil
}

func (c *Client) GET(ctx context.Context, path string) (*Response, error) {
	return c.Do(NewRequest(http.MethodGet, path).WithContext(ctx))
}

func (c *Client) POST(ctx context.Context, path string, body any) (*Response, error) {
	return c.Do(NewRequest(http.MethodPost, path).WithContext(ctx).WithBody(body))
}

// ParseJSON decodes the body into v. Decoding failures wrap
// types.ErrMalformedResponse.
func (r *Response) ParseJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%w: %v", types.ErrMalformedResponse, err)
	}
	return nil
}

// RetryConfig bounds DoWithRetry. The wait doubles after each failed
// attempt up to MaxWait.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{MaxAttempts: 2, InitialWait: 500 * time.Millisecond, MaxWait: 2 * time.Second}
}

func (rc *RetryConfig) backoff(attempt int) time.Duration {
	w := rc.InitialWait
	for i := 1; i < attempt && w < rc.MaxWait; i++ {
		w *= 2
	}
	return min(w, rc.MaxWait)
}

// retryable is false for 4xx responses and encoding errors.
func retryable(err error) bool {
	if he, ok := AsHTTPError(err); ok {
		return he.StatusCode >= 500
	}
	return errors.Is(err, types.ErrNetworkFailure)
}

// DoWithRetry sends req until it succeeds, fails with a non-retryable
// error, or rc.MaxAttempts is reached. Only idempotent requests should be
// retried.
func (c *Client) DoWithRetry(req *Request, rc *RetryConfig) (*Response, error) {
	if rc == nil {
		rc = DefaultRetryConfig()
	}

	var lastErr error
	for attempt := 1; attempt <= rc.MaxAttempts; attempt++ {
		resp, err := c.Do(req)
		if err == nil {
			return resp, nil
		}
		if !retryable(err) {
			return nil, err
		}
		lastErr = err
		if attempt == rc.MaxAttempts {
			break
		}

		wait := rc.backoff(attempt)
		logger.Warn(req.ctx, "HTTP call failed, retrying",
			"client", c.name, "path", req.Path, "attempt", attempt, "wait", wait, "error", err)
		select {
		case <-req.ctx.Done():
			return nil, fmt.Errorf("%w: %v", types.ErrNetworkFailure, req.ctx.Err())
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("after %d attempts: %w", rc.MaxAttempts, lastErr)
}
