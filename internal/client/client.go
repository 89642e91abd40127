// Package client provides a typed client for the folio-server REST API.
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

	"golang.org/x/time/rate"

	"github.com/bobmcallan/folio-portal/internal/cache"
	"github.com/bobmcallan/folio-portal/internal/common"
	"github.com/bobmcallan/folio-portal/internal/config"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 10 // requests per second

	maxBodyBytes = 1 << 20
	marketScope  = "market"
)

var (
	// ErrUnauthorized means the bearer token was missing, expired or rejected.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound means the addressed entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnexpectedShape means a 2xx body lacked the expected field.
	ErrUnexpectedShape = errors.New("unexpected response shape")
)

// APIError is a non-2xx answer from folio-server.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("folio-server error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Unwrap maps auth and not-found statuses onto the sentinels.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	}
	return nil
}

// TokenSource supplies the bearer token for calls that carry none in
// their context.
type TokenSource interface {
	Token() string
}

// StaticToken is a fixed TokenSource.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

type tokenKey struct{}

// WithToken returns a context whose calls authenticate with token.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// Client talks to folio-server.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	logger         *common.Logger
	limiter        *rate.Limiter
	tokens         TokenSource
	cache          *cache.ResponseCache
	onUnauthorized func(ctx context.Context)
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the request rate; non-positive disables limiting.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the transport client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTokenSource sets the fallback bearer token source.
func WithTokenSource(ts TokenSource) ClientOption {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithCache caches market reads.
func WithCache(rc *cache.ResponseCache) ClientOption {
	return func(c *Client) {
		c.cache = rc
	}
}

// WithUnauthorizedHandler is called whenever folio-server rejects a token.
func WithUnauthorizedHandler(fn func(ctx context.Context)) ClientOption {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// New creates a client targeting baseURL.
func New(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:     common.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string { return c.baseURL }

// Ping checks that folio-server answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/api/health", nil)
	return err
}

func (c *Client) token(ctx context.Context) string {
	if t, ok := ctx.Value(tokenKey{}).(string); ok && t != "" {
		return t
	}
	if c.tokens != nil {
		return c.tokens.Token()
	}
	return ""
}

// do performs one rate-limited request and returns the raw body of a 2xx
// response.
func (c *Client) do(ctx context.Context, method, path string, in any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", config.UserAgent())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.token(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Str("method", method).Str("path", path).Err(err).Msg("folio-server unreachable")
		return nil, fmt.Errorf("failed to reach folio-server: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("folio-server request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(data, resp.Status), Endpoint: path}
		if resp.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
		return nil, apiErr
	}
	return data, nil
}

// errorMessage pulls "error" or "message" from a JSON error body.
func errorMessage(body []byte, fallback string) string {
	var e struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if json.Unmarshal(body, &e) == nil {
		for _, s := range []string{e.Error, e.Message, e.Detail} {
			if s != "" {
				return s
			}
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" && len(s) <= 200 {
		return s
	}
	return fallback
}

// getCached serves market GETs from the response cache when configured.
func (c *Client) getCached(ctx context.Context, path string) ([]byte, error) {
	if c.cache == nil {
		return c.do(ctx, http.MethodGet, path, nil)
	}
	key := cache.MakeKey(marketScope, http.MethodGet, path)
	if e, ok := c.cache.Get(key); ok {
		return e.Body, nil
	}
	data, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, data)
	return data, nil
}

// InvalidateMarket drops every cached market response.
func (c *Client) InvalidateMarket() {
	if c.cache != nil {
		c.cache.InvalidatePrefix(marketScope + ":")
	}
}

// decodeField unmarshals body[key] into out. A {"status","data"} envelope
// is unwrapped first. A missing key is ErrUnexpectedShape.
func decodeField(body []byte, key string, out any) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if raw, ok := fields[key]; ok && !isNull(raw) {
		return decodeInto(raw, key, out)
	}
	if data, ok := fields["data"]; ok && !isNull(data) {
		var inner map[string]json.RawMessage
		if json.Unmarshal(data, &inner) == nil {
			if raw, ok := inner[key]; ok && !isNull(raw) {
				return decodeInto(raw, key, out)
			}
		}
	}
	return fmt.Errorf("%w: missing %q", ErrUnexpectedShape, key)
}

// decodeObject accepts either {key: {...}}, {"data": {...}} or the bare
// object, and requires idField to be present.
func decodeObject(body []byte, key, idField string, out any) error {
	if err := decodeField(body, key, out); err == nil || !errors.Is(err, ErrUnexpectedShape) {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if data, ok := fields["data"]; ok && !isNull(data) {
		body = data
		fields = nil
		if err := json.Unmarshal(body, &fields); err != nil {
			return fmt.Errorf("%w: %q is not an object", ErrUnexpectedShape, "data")
		}
	}
	if _, ok := fields[idField]; !ok {
		return fmt.Errorf("%w: missing %q", ErrUnexpectedShape, key)
	}
	return decodeInto(body, key, out)
}

func decodeInto(raw json.RawMessage, key string, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrUnexpectedShape, key, err)
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
