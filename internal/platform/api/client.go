// Package api implements the HTTP client for the MedTrust backend.
//
// All privileged calls carry a bearer token resolved fresh from the session
// provider immediately before the request, so token rotation never races a
// long-lived cached credential. A 401 from any endpoint fires the
// configured unauthorized hook (forced logout) exactly once per client.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TokenSource resolves the current bearer token, waiting for session
// initialization if necessary.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// ErrUnauthorized is returned when the backend answers 401 anywhere.
var ErrUnauthorized = errors.New("api: unauthorized")

// TransportError wraps a failure to receive any response at all.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("api: transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServerError is a non-2xx response. Message holds the server-supplied
// message when one was present; Body keeps the raw payload because the
// access endpoints report denials as 4xx with a full response body.
type ServerError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: server error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api: server error %d", e.StatusCode)
}

// IsTransport reports whether err is a transport-level failure (no response
// received), as opposed to a server-reported one.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

type Client struct {
	base   string
	http   *http.Client
	tokens TokenSource
	log    zerolog.Logger

	hookOnce       sync.Once
	onUnauthorized func()
}

type Option func(*Client)

// WithTokenSource attaches the session token source used for privileged
// calls. Without one, requests go out unauthenticated.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithUnauthorizedHook registers the global 401 side effect (clear session,
// force logout). It runs at most once per client lifetime.
func WithUnauthorizedHook(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func New(baseURL string, logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 15 * time.Second},
		log:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.base }

// Get issues an authenticated GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out, true)
}

// GetOpen issues an unauthenticated GET. Used for the open endpoints
// (/ip_check, /trust_score) that the backend serves without a token.
func (c *Client) GetOpen(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out, false)
}

// Post issues an authenticated POST with a JSON body and decodes the JSON
// response into out. out may be nil when the caller ignores the body.
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	return c.do(ctx, http.MethodPost, path, in, out, true)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, authed bool) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if authed && c.tokens != nil {
		tok, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("resolve session token: %w", err)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.hookOnce.Do(func() {
			if c.onUnauthorized != nil {
				c.log.Warn().Str("path", path).Msg("session rejected, forcing logout")
				c.onUnauthorized()
			}
		})
		return ErrUnauthorized
	}

	if resp.StatusCode >= 400 {
		return &ServerError{
			StatusCode: resp.StatusCode,
			Message:    extractMessage(raw),
			Body:       raw,
		}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// extractMessage pulls "message" or "error" out of a JSON error body.
func extractMessage(raw []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) != nil {
		return ""
	}
	if envelope.Message != "" {
		return envelope.Message
	}
	return envelope.Error
}
