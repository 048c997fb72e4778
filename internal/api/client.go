// Package api is the HTTP client of the assessment backend.
//
// Every request reads the session token from the session store at dispatch
// time and sends it as a bearer token, so a logout takes effect on the very
// next request. A 401 response clears the stored session and invokes the
// unauthorized handler before the error reaches the caller. All other
// non-2xx responses surface as *errors.APIError carrying the backend payload.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/skillcheck-dev/skillcheck/internal/config"
	"github.com/skillcheck-dev/skillcheck/internal/errors"
	"github.com/skillcheck-dev/skillcheck/internal/logging"
	"github.com/skillcheck-dev/skillcheck/internal/session"
)

// IdempotencyHeader carries the client-generated key of an answer submission.
const IdempotencyHeader = "Idempotency-Key"

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 1 << 20

// UnauthorizedHandler is invoked after a 401 response has cleared the stored
// session. It typically invalidates the session manager and forces
// navigation to the login view.
type UnauthorizedHandler func(ctx context.Context)

// Client dispatches requests to the assessment backend.
type Client struct {
	baseURL        *url.URL
	store          session.Store
	httpClient     *http.Client
	limiter        *rate.Limiter
	logger         *logging.Logger
	onUnauthorized UnauthorizedHandler
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithRateLimit throttles dispatch to rps requests per second with the given
// burst. A non-positive rps disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.logger = l.WithComponent("api") }
}

// WithUnauthorizedHandler sets the handler run after a 401 response.
func WithUnauthorizedHandler(h UnauthorizedHandler) Option {
	return func(c *Client) { c.onUnauthorized = h }
}

// New creates a Client for the backend rooted at baseURL. The base URL is
// normalized to end with "/" and endpoint paths are resolved relative to it.
func New(baseURL string, store session.Store, opts ...Option) (*Client, error) {
	u, err := url.Parse(config.NormalizeBaseURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: must be absolute", baseURL)
	}

	c := &Client{
		baseURL:    u,
		store:      store,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetUnauthorizedHandler replaces the 401 handler. It exists because the
// handler usually closes over the session manager, which itself needs the
// client.
func (c *Client) SetUnauthorizedHandler(h UnauthorizedHandler) {
	c.onUnauthorized = h
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// request describes one call.
type request struct {
	method  string
	path    string
	query   url.Values
	body    any
	headers map[string]string
}

// do sends req and decodes a successful response body into out (if non-nil).
func (c *Client) do(ctx context.Context, req request, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrapf(err, "%s %s", req.method, req.path)
		}
	}

	target := c.baseURL.ResolveReference(&url.URL{
		Path:     strings.TrimPrefix(req.path, "/"),
		RawQuery: req.query.Encode(),
	})

	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s body: %w", req.method, req.path, err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target.String(), body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	// Read at dispatch time, never cached.
	token, err := session.Token(ctx, c.store)
	if err != nil {
		c.logger.Warn("failed to read session token", "error", err.Error())
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return c.transportError(ctx, req, target.String(), err)
	}
	defer resp.Body.Close()

	c.logger.Debug("request completed",
		"method", req.method,
		"path", req.path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode == http.StatusUnauthorized {
		apiErr := decodeError(resp, req)
		c.handleUnauthorized(ctx)
		return apiErr
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp, req)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewNetworkError(req.method, target.String(), err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", req.method, req.path, err)
	}
	return nil
}

// handleUnauthorized clears the stored session and notifies the handler.
func (c *Client) handleUnauthorized(ctx context.Context) {
	if err := session.Purge(ctx, c.store); err != nil {
		c.logger.Error("failed to purge session after 401", "error", err.Error())
	}
	c.logger.Info("session rejected by backend, forcing login")
	if c.onUnauthorized != nil {
		c.onUnauthorized(ctx)
	}
}

func (c *Client) transportError(ctx context.Context, req request, target string, err error) error {
	if ctxErr := ctx.Err(); ctxErr == context.Canceled {
		return errors.Wrapf(ctxErr, "%s %s", req.method, req.path)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		c.logger.Warn("request timed out", "method", req.method, "path", req.path)
		return errors.NewTimeoutError(req.method+" "+req.path, c.httpClient.Timeout).WithCause(err)
	}

	c.logger.Warn("request failed", "method", req.method, "path", req.path, "error", err.Error())
	return errors.NewNetworkError(req.method, target, err)
}

// decodeError converts a non-2xx response into an APIError. The message is
// taken from the usual backend keys; every other key holding strings is
// treated as a field-level validation error and passed through untouched.
func decodeError(resp *http.Response, req request) *errors.APIError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		msg := strings.TrimSpace(string(data))
		if len(msg) > 200 || strings.HasPrefix(msg, "<") {
			msg = ""
		}
		return errors.NewAPIError(resp.StatusCode, msg).WithRequest(req.method, req.path)
	}

	var message string
	for _, key := range []string{"detail", "message", "error"} {
		if s, ok := payload[key].(string); ok && s != "" {
			message = s
			break
		}
	}

	fields := make(map[string][]string)
	for key, raw := range payload {
		switch key {
		case "detail", "message", "error", "success", "status":
			continue
		}
		if msgs := stringList(raw); len(msgs) > 0 {
			fields[key] = msgs
		}
	}
	if message == "" {
		if nfe, ok := fields["non_field_errors"]; ok {
			message = nfe[0]
		}
	}

	apiErr := errors.NewAPIError(resp.StatusCode, message).WithRequest(req.method, req.path)
	if len(fields) > 0 {
		apiErr.WithFields(fields)
	}
	return apiErr
}

func stringList(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		var out []string
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// decodeList accepts either a bare JSON array or a paginated
// {"results": [...]} envelope.
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var page struct {
		Results []T `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, err
	}
	return page.Results, nil
}

// list performs a GET and decodes a list response.
func list[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var raw json.RawMessage
	if err := c.do(ctx, request{method: http.MethodGet, path: path, query: query}, &raw); err != nil {
		return nil, err
	}
	items, err := decodeList[T](raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return items, nil
}
