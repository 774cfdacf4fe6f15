// Package session supplies the bearer token for privileged API calls.
//
// The token issuer itself (a Firebase-style identity provider) is external;
// this package only answers "what is the current credential", waiting for
// session initialization when the answer is not yet known.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrSessionClosed is returned by Provider.Token after Clear.
var ErrSessionClosed = errors.New("session: closed")

// StaticSource is a fixed token, handy for tests and one-shot CLI calls.
type StaticSource string

func (s StaticSource) Token(_ context.Context) (string, error) {
	return string(s), nil
}

// FileSource re-reads the token file on every call so that tokens rotated
// on disk by an external agent are picked up without restarting.
type FileSource struct {
	Path string
}

func (f FileSource) Token(_ context.Context) (string, error) {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// Provider is a resolve-once credential future. At startup the identity
// layer may already hold a token (Set called before anyone asks) or it may
// still be initializing; Token blocks callers until the first Set, whichever
// path fires first, then answers from current state. This mirrors the
// "current user vs auth-state-changed" race in browser identity SDKs with a
// single resolution path.
type Provider struct {
	mu     sync.Mutex
	token  string
	closed bool
	ready  chan struct{}
	once   sync.Once
}

func NewProvider() *Provider {
	return &Provider{ready: make(chan struct{})}
}

// Set installs the current token. The first call unblocks all waiters;
// later calls just replace the stored value (token refresh).
func (p *Provider) Set(token string) {
	p.mu.Lock()
	p.token = token
	p.mu.Unlock()
	p.once.Do(func() { close(p.ready) })
}

// Clear wipes the stored token and fails all current and future waiters.
// This is the forced-logout path of the 401 interceptor.
func (p *Provider) Clear() {
	p.mu.Lock()
	p.token = ""
	p.closed = true
	p.mu.Unlock()
	p.once.Do(func() { close(p.ready) })
}

// Token returns the current credential, waiting for initialization if the
// session has not resolved yet.
func (p *Provider) Token(ctx context.Context) (string, error) {
	select {
	case <-p.ready:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return "", ErrSessionClosed
	}
	return p.token, nil
}

// Expired reports whether the JWT's exp claim is in the past. The token is
// parsed without signature verification: validation is the server's job,
// the client only wants to avoid sending an obviously dead credential.
// Tokens that do not parse or carry no exp are treated as unexpired.
func Expired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}
