// Package client talks to the audit task API. Every operation has exactly one
// endpoint. Transient failures are retried with bounded exponential backoff;
// when the retries run out the client reads the task back and reports either
// that the server already holds the change or that it is pending sync.
package client

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
	"github.com/google/uuid"
	"github.com/prosync/audit-task-api/internal/constants"
	"go.uber.org/zap"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 4
	maxResponseBytes  = 1 << 20
)

// Client is an audit task API client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
	maxRetries uint64
	newBackOff func() backoff.BackOff
	log        *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithToken sends token as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithMaxRetries bounds the retries after the first attempt.
func WithMaxRetries(n uint64) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithBackOff sets the delay policy between attempts.
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(c *Client) {
		c.newBackOff = newBackOff
	}
}

// WithLogger sets the logger for retry and reconciliation events.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		maxRetries: defaultMaxRetries,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do sends one logical request, retrying transient failures. It returns the
// number of attempts made. All attempts share one request ID.
func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return 0, fmt.Errorf("client: encoding request body: %w", err)
		}
	}

	requestID := uuid.New().String()
	attempts := 0
	operation := func() error {
		attempts++
		err := c.once(ctx, method, path, requestID, payload, out)
		if err == nil {
			return nil
		}
		if !retryable(ctx, err) {
			return backoff.Permanent(err)
		}
		c.log.Warn("request failed, retrying",
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.Int("attempt", attempts),
			zap.Error(err),
		)
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx)
	return attempts, backoff.Retry(operation, policy)
}

func (c *Client) once(ctx context.Context, method, path, requestID string, payload []byte, out any) error {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("client: creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(constants.HeaderRequestID, requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &transportError{err: fmt.Errorf("reading response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("client: decoding response: %w", err)
	}
	return nil
}

// retryable reports whether a failed attempt may succeed if repeated.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}

	var transport *transportError
	if errors.As(err, &transport) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}

// uncertain reports whether a failed write may nevertheless have been
// applied by the server.
func uncertain(ctx context.Context, err error, attempts int) bool {
	if retryable(ctx, err) {
		return true
	}
	// A version conflict after a lost response usually means the lost
	// attempt was applied.
	var apiErr *APIError
	return attempts > 1 && errors.As(err, &apiErr) && apiErr.Code == codeVersionConflict
}
