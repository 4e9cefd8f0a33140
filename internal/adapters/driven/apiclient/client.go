// Package apiclient is the JSON-over-HTTP transport shared by the model
// provider adapters. It owns request encoding, auth headers, retries of
// transient failures and the mapping of provider error responses.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/custodia-labs/folio/internal/core/domain"
)

// Default transport values.
const (
	DefaultTimeout       = 60 * time.Second
	DefaultRetries       = 2
	DefaultRetryInterval = 250 * time.Millisecond

	// maxErrorBody bounds the provider text carried in a StatusError.
	maxErrorBody = 512
)

// StatusError is a non-success response from a provider.
type StatusError struct {
	Service string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Service, e.Code, e.Message)
}

// Client sends JSON requests to one provider.
type Client struct {
	http     *http.Client
	service  string
	baseURL  string
	header   http.Header
	retries  uint64
	interval time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHeader sets a header on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.header.Set(key, value) }
}

// WithBearer authenticates every request with a bearer token.
func WithBearer(token string) Option {
	return WithHeader("Authorization", "Bearer "+token)
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRetries sets how often transport errors and 5xx responses are retried.
func WithRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.retries = uint64(n)
		}
	}
}

// WithRetryInterval sets the first backoff interval.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.interval = d
		}
	}
}

// New creates a client for service rooted at baseURL.
func New(service, baseURL string, opts ...Option) *Client {
	c := &Client{
		http:     &http.Client{Timeout: DefaultTimeout},
		service:  service,
		baseURL:  strings.TrimRight(baseURL, "/"),
		header:   http.Header{},
		retries:  DefaultRetries,
		interval: DefaultRetryInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Service returns the provider name used in errors.
func (c *Client) Service() string {
	return c.service
}

// BaseURL returns the root all paths are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// PostJSON posts in as JSON and decodes a 200 response into out.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", c.service, err)
	}
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Get issues a GET. out may be nil when only the status matters.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.interval

	return backoff.Retry(func() error {
		return c.attempt(ctx, method, path, body, out)
	}, backoff.WithContext(backoff.WithMaxRetries(policy, c.retries), ctx))
}

// attempt performs one request. Errors not worth repeating are marked permanent.
func (c *Client) attempt(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("%s: create request: %w", c.service, err))
	}
	req.Header = c.header.Clone()
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(fmt.Errorf("%s: %w", c.service, err))
		}
		return fmt.Errorf("%s: %w", c.service, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return backoff.Permanent(&domain.RateLimitError{
			Service:    c.service,
			RetryAfter: domain.ParseRetryAfter(resp.Header.Get("Retry-After")),
		})
	case resp.StatusCode >= http.StatusInternalServerError:
		return c.statusError(resp)
	case resp.StatusCode != http.StatusOK:
		return backoff.Permanent(c.statusError(resp))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("%s: decode response: %w", c.service, err))
	}
	return nil
}

func (c *Client) statusError(resp *http.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Service: c.service, Code: resp.StatusCode, Message: errorMessage(body)}
}

// errorMessage extracts the human readable part of a provider error body.
// OpenAI and Anthropic send {"error":{"message":...}}, Ollama {"error":"..."}.
func errorMessage(body []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && len(envelope.Error) > 0 {
		var text string
		if json.Unmarshal(envelope.Error, &text) == nil && text != "" {
			return text
		}
		var detail struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(envelope.Error, &detail) == nil && detail.Message != "" {
			return detail.Message
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "no response body"
	}
	return msg
}

// Wrap marks err with the outage sentinel of the calling port. Throttling
// is left unwrapped so callers can tell it apart and retry.
func Wrap(sentinel, err error) error {
	if err == nil || domain.IsRateLimited(err) {
		return err
	}
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
