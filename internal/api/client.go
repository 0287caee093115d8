// Package api provides an HTTP client for the SpendSense JSON API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/spendsense/operator-console/internal/config"
	"github.com/spendsense/operator-console/internal/metrics"
)

// TokenSource supplies the bearer token for each request. An empty token
// sends the request unauthenticated.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource for a fixed token.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

// Client is an HTTP client for the SpendSense API.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     logrus.FieldLogger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMetrics records request latency and status.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the request logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for cfg's API base URL.
func NewClient(cfg *config.Config, tokens TokenSource, opts ...Option) *Client {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimSuffix(cfg.APIBaseURL(), "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the REST base, ending in /api.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request describes one API call. route is the path template used as the
// metrics label so ids do not explode label cardinality.
type request struct {
	method string
	route  string
	path   string
	query  url.Values
	body   any
	gated  bool
}

func (c *Client) do(ctx context.Context, r request, result any) error {
	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	requestID := uuid.NewString()
	if c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(r.method, r.route, 0, time.Since(start))
		return fmt.Errorf("executing request %s %s: %w", r.method, r.path, err)
	}
	c.metrics.ObserveRequest(r.method, r.route, resp.StatusCode, time.Since(start))

	c.logger.WithFields(logrus.Fields{
		"method":     r.method,
		"path":       r.path,
		"status":     resp.StatusCode,
		"request_id": requestID,
		"elapsed":    time.Since(start).String(),
	}).Debug("api request")

	return c.handleResponse(r, resp, result)
}

func (c *Client) handleResponse(r request, resp *http.Response, result any) error {
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return &APIError{
			Method:       r.method,
			Path:         r.path,
			StatusCode:   resp.StatusCode,
			Message:      errorMessage(resp.StatusCode, data),
			ConsentGated: r.gated,
		}
	}

	if result == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding response from %s: %w", r.path, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, route, path string, query url.Values, result any) error {
	return c.do(ctx, request{method: http.MethodGet, route: route, path: path, query: query}, result)
}
