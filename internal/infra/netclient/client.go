package netclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	DefaultMaxAttempts   = 3
	DefaultBaseDelay     = time.Second
	DefaultHealthPath    = "/health"
	DefaultHealthTimeout = 5 * time.Second

	// DefaultSharedTimeout bounds a deduplicated round trip once it no longer follows any caller's context.
	DefaultSharedTimeout = 30 * time.Second

	maxResponseBytes = 4 << 20
	errorSnippetSize = 512
)

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config is the explicit configuration of a Client; nothing is read from the environment.
type Config struct {
	BaseURL        string
	DefaultHeaders http.Header
	MaxAttempts    int
	BaseDelay      time.Duration
	// Backoff overrides LinearBackoff(BaseDelay).
	Backoff Backoff
	// RetryClientErrors retries 4xx responses like any other failure.
	RetryClientErrors bool
	HealthPath        string
	HealthTimeout     time.Duration
	// DedupeInFlight shares one round trip between identical concurrent GET requests.
	DedupeInFlight bool
}

// Client performs requests with bounded retries. It keeps no state between calls
// apart from the optional in-flight GET deduplication.
type Client struct {
	cfg    Config
	base   *url.URL
	http   Doer
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	group  singleflight.Group
}

type Option func(*Client)

func WithHTTPClient(d Doer) Option {
	return func(c *Client) { c.http = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithSleeper replaces the backoff wait, mostly for tests.
func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.MaxAttempts < 0 {
		return nil, ErrInvalidAttempts
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.Backoff == nil {
		cfg.Backoff = LinearBackoff(cfg.BaseDelay)
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = DefaultHealthPath
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = DefaultHealthTimeout
	}
	c := &Client{cfg: cfg, sleep: sleepContext}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		base, err := url.Parse(cfg.BaseURL)
		if err != nil || base.Scheme == "" || base.Host == "" {
			return nil, fmt.Errorf("netclient: invalid base url %q", cfg.BaseURL)
		}
		c.base = base
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: DefaultSharedTimeout}
	}
	return c, nil
}

// Request describes one logical call. URL may be relative to Config.BaseURL.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
	// MaxAttempts overrides Config.MaxAttempts when non-zero.
	MaxAttempts int
}

// JSONRequest marshals payload as the request body.
func JSONRequest(method, target string, payload any) (Request, error) {
	req := Request{Method: method, URL: target, Header: http.Header{}}
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return Request{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		req.Body = body
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Outcome is the result of Fetch. Either Data is set and Offline is false, or
// Offline is true, Err holds the last failure and Data is the caller's fallback.
type Outcome[T any] struct {
	Data     *T
	Err      error
	Offline  bool
	Attempts int
}

func (o Outcome[T]) OK() bool { return !o.Offline }

// Fetch runs req until a 2xx response decodes into T or attempts run out.
// Transport failures, non-2xx statuses and decode failures each consume one attempt.
func Fetch[T any](ctx context.Context, c *Client, req Request, fallback *T) Outcome[T] {
	attempts := req.MaxAttempts
	if attempts == 0 {
		attempts = c.cfg.MaxAttempts
	}
	if attempts < 1 {
		return Outcome[T]{Data: fallback, Err: ErrInvalidAttempts, Offline: true}
	}
	target, err := c.resolve(req.URL)
	if err != nil {
		return Outcome[T]{Data: fallback, Err: err, Offline: true}
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var lastErr error
	attempt := 0
	for attempt < attempts {
		attempt++
		body, err := c.exchange(ctx, method, target, req)
		if err == nil {
			var out T
			decodeErr := json.Unmarshal(body, &out)
			if decodeErr == nil {
				return Outcome[T]{Data: &out, Attempts: attempt}
			}
			err = &ParseError{URL: target, Err: decodeErr}
		}
		lastErr = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			lastErr = errors.Join(ctxErr, err)
			break
		}
		if !c.retryable(err) || attempt == attempts {
			break
		}
		wait := c.cfg.Backoff(attempt)
		c.logWarn(ctx, "request failed, retrying", method, target, attempt, wait, err)
		if sleepErr := c.sleep(ctx, wait); sleepErr != nil {
			lastErr = errors.Join(sleepErr, err)
			break
		}
	}
	c.logError(ctx, "request gave up", method, target, attempt, lastErr)
	return Outcome[T]{Data: fallback, Err: lastErr, Offline: true, Attempts: attempt}
}

// IsConnected sends a single GET to the health path. Any failure reports false.
// With DedupeInFlight, concurrent health checks share one request.
func (c *Client) IsConnected(ctx context.Context) bool {
	target, err := c.resolve(c.cfg.HealthPath)
	if err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.HealthTimeout)
	defer cancel()
	_, err = c.exchange(ctx, http.MethodGet, target, Request{})
	return err == nil
}

func (c *Client) exchange(ctx context.Context, method, target string, req Request) ([]byte, error) {
	if !c.cfg.DedupeInFlight || method != http.MethodGet {
		return c.roundTrip(ctx, method, target, req)
	}
	// The shared round trip must outlive any single caller, so each caller
	// waits on its own context instead.
	ch := c.group.DoChan(flightKey(method, target, req.Header), func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultSharedTimeout)
		defer cancel()
		return c.roundTrip(shared, method, target, req)
	})
	select {
	case <-ctx.Done():
		return nil, &NetworkError{Method: method, URL: target, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (c *Client) roundTrip(ctx context.Context, method, target string, req Request) ([]byte, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	for k, vs := range c.cfg.DefaultHeaders {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	for k, vs := range req.Header {
		httpReq.Header.Del(k)
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Method: method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorSnippetSize))
		return nil, &HTTPError{Method: method, URL: target, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &NetworkError{Method: method, URL: target, Err: err}
	}
	return data, nil
}

func (c *Client) retryable(err error) bool {
	if errors.Is(err, ErrInvalidRequest) {
		return false
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.ClientError() {
		return c.cfg.RetryClientErrors
	}
	return true
}

func (c *Client) resolve(raw string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if ref.IsAbs() {
		if ref.Host == "" {
			return "", fmt.Errorf("%w: url %q has no host", ErrInvalidRequest, raw)
		}
		return ref.String(), nil
	}
	if c.base == nil {
		return "", fmt.Errorf("%w: relative url %q without base url", ErrInvalidRequest, raw)
	}
	joined := *c.base
	joined.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")
	joined.RawQuery = ref.RawQuery
	return joined.String(), nil
}

func flightKey(method, target string, h http.Header) string {
	var b strings.Builder
	b.WriteString(method)
	b.WriteByte(' ')
	b.WriteString(target)
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte('\n')
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(strings.Join(h[k], ","))
	}
	return b.String()
}

func (c *Client) logWarn(ctx context.Context, msg, method, target string, attempt int, wait time.Duration, err error) {
	if c.logger != nil {
		c.logger.WarnContext(ctx, msg, "method", method, "url", target, "attempt", attempt, "wait", wait, "error", err)
	}
}

func (c *Client) logError(ctx context.Context, msg, method, target string, attempts int, err error) {
	if c.logger != nil {
		c.logger.ErrorContext(ctx, msg, "method", method, "url", target, "attempts", attempts, "error", err)
	}
}
