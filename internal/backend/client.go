// Package backend is the JSON-over-HTTP adapter for the remote key directory
// and the document redemption service.
package backend

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

	"healthpass/internal/keys"
	"healthpass/internal/platform/logger"
	"healthpass/internal/uniqueness"
	"healthpass/pkg/platform/circuit"
	"healthpass/pkg/platform/sentinel"
	"healthpass/pkg/requestcontext"
)

const (
	defaultTimeout = 10 * time.Second
	userAgent      = "healthpass"
	maxErrorBody   = 4 << 10

	pathKeys    = "/v1/keys"
	pathRedeem  = "/v1/documents/redeem"
	pathRelease = "/v1/documents/release"
)

// Client implements keys.Fetcher and uniqueness.Redeemer. Consecutive
// transport failures open a circuit breaker; while open, calls fail fast
// with sentinel.ErrUnavailable.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithTimeout sets the request timeout on a private copy of the HTTP client;
// a client passed to WithHTTPClient is never modified.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *Client) {
		if b != nil {
			cl.breaker = b
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("backend URL is required")
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		breaker: circuit.New("backend",
			circuit.WithFailureThreshold(5),
			circuit.WithSuccessThreshold(3),
		),
		logger: logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	return c, nil
}

var (
	_ keys.Fetcher        = (*Client)(nil)
	_ uniqueness.Redeemer = (*Client)(nil)
)

type keysResponse struct {
	Keys []keys.ProviderKey `json:"keys"`
}

// FetchProviderKeys downloads the key directory.
func (c *Client) FetchProviderKeys(ctx context.Context) ([]keys.ProviderKey, error) {
	resp, err := c.do(ctx, http.MethodGet, pathKeys, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	var out keysResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode keys: %w", err)
	}
	return out.Keys, nil
}

// Redeem posts a claim. 409 means already redeemed, 429 rate limited.
func (c *Client) Redeem(ctx context.Context, body []byte) error {
	resp, err := c.do(ctx, http.MethodPost, pathRedeem, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
		return nil
	case http.StatusConflict:
		return uniqueness.ErrAlreadyRedeemed
	case http.StatusTooManyRequests:
		return uniqueness.ErrRateLimitReached
	default:
		return statusError(resp)
	}
}

// Release deletes claims.
func (c *Client) Release(ctx context.Context, body []byte) error {
	resp, err := c.do(ctx, http.MethodPost, pathRelease, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusTooManyRequests:
		return uniqueness.ErrRateLimitReached
	default:
		return statusError(resp)
	}
}

// do sends one request through the breaker. Transport errors and 5xx count
// as failures; any other response counts as success.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	if !c.breaker.Allow() {
		return nil, fmt.Errorf("backend circuit open: %w", sentinel.ErrUnavailable)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := requestcontext.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.recordFailure(ctx, path, err)
		return nil, fmt.Errorf("%s %s: %w: %v", method, path, sentinel.ErrUnavailable, err)
	}
	c.logger.DebugContext(ctx, "backend call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	if resp.StatusCode >= http.StatusInternalServerError {
		c.recordFailure(ctx, path, fmt.Errorf("status %d", resp.StatusCode))
	} else if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "backend circuit closed")
	}
	return resp, nil
}

func (c *Client) recordFailure(ctx context.Context, path string, err error) {
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "backend circuit opened", "path", path, "error", err)
	}
}

func statusError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	err := fmt.Errorf("backend responded %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	return err
}
