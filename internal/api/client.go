// Package api is the HTTP collaborator for the repository-to-documentation
// service. It issues requests, attaches the persisted bearer token and
// converts every failure into the internal/errors taxonomy.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/git2doc/internal/errors"
	"github.com/Iron-Ham/git2doc/internal/logging"
	"github.com/Iron-Ham/git2doc/internal/storage"
)

const (
	// TokenKey is the key-value store entry holding the bearer token.
	TokenKey = "token"

	// DefaultBaseURL is the service address used when none is configured.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultUserAgent identifies this client to the service.
	DefaultUserAgent = "git2doc"

	defaultTimeout = 30 * time.Second

	// maxErrorBody bounds how much of an error response is read.
	maxErrorBody = 64 * 1024
)

// Client talks to the service. It is safe for concurrent use.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	store      storage.Store
	logger     *logging.Logger
	requestID  func() string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithLogger sets the logger for request tracing.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Client for baseURL. Authenticated calls read the token
// from store under TokenKey.
func NewClient(baseURL string, store storage.Store, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  DefaultUserAgent,
		httpClient: &http.Client{Timeout: defaultTimeout},
		store:      store,
		requestID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.NopLogger()
	}
	c.logger = c.logger.WithComponent("api")
	return c
}

// BaseURL returns the service address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request describes one call to the service.
type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	auth        bool
	notFound    error // sentinel a 404 matches
}

func (r request) operation() string {
	return r.method + " " + r.path
}

// do issues r and returns the response when the status is 2xx. The caller
// owns the response body. Any other outcome is a typed error.
func (c *Client) do(ctx context.Context, r request) (*http.Response, error) {
	op := r.operation()

	var token string
	if r.auth {
		t, err := c.token(ctx)
		if err != nil {
			return nil, err
		}
		token = t
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, r.body)
	if err != nil {
		return nil, errors.NewTransportError(op, err).WithMessage("invalid request")
	}

	reqID := c.requestID()
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	log := c.logger.WithRequest(reqID)
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug("request failed", "op", op, "error", err)
		return nil, errors.NewTransportError(op, err)
	}
	log.Debug("request completed", "op", op, "status", resp.StatusCode, "duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer func() { _ = resp.Body.Close() }()
	return nil, responseError(resp, r.notFound)
}

// doJSON issues r and decodes a JSON response into out (if non-nil).
func (c *Client) doJSON(ctx context.Context, r request, out any) error {
	resp, err := c.do(ctx, r)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewTransportError(r.operation(), err).WithMessage("malformed response")
	}
	return nil
}

func (c *Client) token(ctx context.Context) (string, error) {
	if c.store == nil {
		return "", errors.NewAuthError(0, "not logged in", errors.ErrNoSession)
	}
	data, err := c.store.Load(ctx, TokenKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", errors.NewAuthError(0, "not logged in", errors.ErrNoSession)
		}
		return "", errors.Wrap(err, "failed to read session token")
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", errors.NewAuthError(0, "not logged in", errors.ErrNoSession)
	}
	return token, nil
}

func jsonBody(op string, v any) (io.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.NewTransportError(op, err).WithMessage("failed to encode request")
	}
	return bytes.NewReader(data), nil
}

// responseError converts a non-2xx response into an AuthError (401/403) or
// a RemoteError carrying the service's detail message. A 404 matches
// notFound when it is set.
func responseError(resp *http.Response, notFound error) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	detail := parseDetail(body)

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.NewAuthError(resp.StatusCode, detail, nil)
	default:
		remote := errors.NewRemoteError(resp.StatusCode, detail)
		if notFound != nil {
			remote.WithNotFound(notFound)
		}
		return remote
	}
}

// parseDetail extracts the human-readable reason from a FastAPI error body:
// {"detail": "..."} or {"detail": [{"msg": "..."}, ...]}.
func parseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(envelope.Detail, &s); err == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}

// filenameFromDisposition returns the filename parameter of a
// Content-Disposition header, or "" if there is none.
func filenameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}

func documentPath(id int64, suffix string) string {
	return fmt.Sprintf("/api/documents/%d%s", id, suffix)
}
