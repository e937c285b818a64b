// Package api implements the low-level JSON transport shared by every
// remote call to the invest platform backend. It normalizes non-2xx
// responses into StatusError values carrying the backend's `detail`
// message so callers never have to inspect raw HTTP responses.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// genericFailure is returned when the backend gives no usable detail
// message. Mirrors the platform's stock "server communication error" text.
const genericFailure = "خطا در ارتباط با سرور"

// StatusError is a logical rejection from the backend: a non-2xx response
// whose body carried a `{detail}` message.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api: status %d: %s", e.Code, e.Detail)
}

// IsUnauthorized reports whether err is a 401 rejection, meaning the bearer
// credential is expired or revoked.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusUnauthorized
}

// Message extracts the human-readable failure message from an error chain.
// StatusError details pass through verbatim; everything else collapses to
// the generic message.
func Message(err error) string {
	var se *StatusError
	if errors.As(err, &se) && se.Detail != "" {
		return se.Detail
	}
	return genericFailure
}

// Client performs JSON requests against the platform API.
type Client struct {
	baseURL  string
	http     *http.Client
	deviceID string
	logger   *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithDeviceID attaches a per-install device identifier to every request.
func WithDeviceID(id string) Option {
	return func(c *Client) { c.deviceID = id }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New builds a Client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do issues a JSON request and decodes the response body into out when out
// is non-nil. A bearer token is attached when token is non-empty. Non-2xx
// responses become *StatusError; transport and decode failures are wrapped.
func (c *Client) Do(ctx context.Context, method, endpoint, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.deviceID != "" {
		req.Header.Set("X-Device-ID", c.deviceID)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if c.logger != nil {
		c.logger.Debug("api call", "method", method, "endpoint", endpoint, "status", resp.StatusCode, "elapsed", time.Since(start))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Detail: detailFrom(data)}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func detailFrom(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	return genericFailure
}
