// Package fetch is the single outbound HTTP path used by advisory sources and
// registry lookups. Transport failures are retried with linear backoff; HTTP
// status codes are returned to the caller as-is.
package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sambabib/depcheck/pkg/logger"
	"github.com/sambabib/depcheck/pkg/metrics"
)

const (
	DefaultMaxRetries = 2
	DefaultTimeout    = 10 * time.Second
	DefaultBackoff    = time.Second

	// registry documents for popular npm packages run to tens of MB
	maxBodyBytes = 64 << 20
)

// Request describes one outbound call.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is a fully-read HTTP response.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// DecodeJSON unmarshals the body into v.
func (r *Response) DecodeJSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ErrInvalidRequest wraps failures to construct a request; these are never retried.
var ErrInvalidRequest = errors.New("invalid request")

// NetworkError is returned once every attempt has failed at the transport level.
type NetworkError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("request to %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Client performs bounded-retry HTTP calls.
type Client struct {
	HTTPClient *http.Client
	MaxRetries int           // retries after the first attempt
	Timeout    time.Duration // per attempt, including reading the body
	Backoff    time.Duration // wait before retry n is n*Backoff
	UserAgent  string
	Metrics    *metrics.Metrics
}

// NewClient returns a Client with the default retry policy: 3 attempts,
// 10s per attempt, 1s/2s backoff.
func NewClient(userAgent string, m *metrics.Metrics) *Client {
	return &Client{
		HTTPClient: &http.Client{},
		MaxRetries: DefaultMaxRetries,
		Timeout:    DefaultTimeout,
		Backoff:    DefaultBackoff,
		UserAgent:  userAgent,
		Metrics:    m,
	}
}

// Do sends req, retrying transport failures. A non-2xx status is a successful
// round trip and is returned without retrying. After the last failed attempt
// Do returns a *NetworkError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= c.MaxRetries+1; attempt++ {
		attempts = attempt
		resp, err := c.once(ctx, req)
		if err == nil {
			c.Metrics.FetchAttempt("ok")
			return resp, nil
		}
		if errors.Is(err, ErrInvalidRequest) {
			return nil, err
		}
		lastErr = err
		c.Metrics.FetchAttempt("transport_error")
		logger.Debugf("fetch: attempt %d/%d for %s failed: %v", attempt, c.MaxRetries+1, req.URL, err)

		if attempt > c.MaxRetries || ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			return nil, &NetworkError{URL: req.URL, Attempts: attempts, Err: ctx.Err()}
		case <-time.After(time.Duration(attempt) * c.Backoff):
		}
	}
	return nil, &NetworkError{URL: req.URL, Attempts: attempts, Err: lastErr}
}

func (c *Client) once(ctx context.Context, req Request) (*Response, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(actx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if c.UserAgent != "" && httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", c.UserAgent)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// Get is a convenience wrapper for a GET with optional headers.
func (c *Client) Get(ctx context.Context, url string, header http.Header) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, URL: url, Header: header})
}

// PostJSON marshals payload and POSTs it with a JSON content type.
func (c *Client) PostJSON(ctx context.Context, url string, payload any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	return c.Do(ctx, Request{Method: http.MethodPost, URL: url, Header: header, Body: body})
}
