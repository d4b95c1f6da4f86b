package token

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

// DefaultRefreshBuffer is how far ahead of expiry GetToken proactively
// refreshes, so that a token handed to a caller is never already stale by
// the time the request it authorizes is dispatched.
const DefaultRefreshBuffer = 60 * time.Second

// CachedToken is an OAuth access token together with its expiry.
type CachedToken struct {
	AccessToken string
	ExpiresAt   time.Time
}

func (c *CachedToken) validFor(now time.Time, buffer time.Duration) bool {
	return c != nil && now.Add(buffer).Before(c.ExpiresAt)
}

// AuthError reports an OAuth refresh failure: a non-200 response, or a
// 200 response missing access_token.
type AuthError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("eventlogger: oauth refresh failed: %v", e.Err)
	}
	return fmt.Sprintf("eventlogger: oauth refresh failed: status %d: %s", e.StatusCode, e.Body)
}

func (e *AuthError) Unwrap() error { return e.Err }

// OAuthProvider implements the client-credentials grant with caching and
// single-flight refresh, per the specification's §4.B algorithm:
//
//  1. Read the cached token under a shared lock; return it if its
//     remaining TTL exceeds RefreshBuffer.
//  2. Otherwise acquire exclusive refresh rights via singleflight.Group so
//     concurrent callers share one refresh instead of issuing N.
//  3. Re-check under the exclusive section (double-checked locking) to
//     absorb races between step 1 and step 2, then perform the refresh.
//
// The actual wire exchange (form-encoded POST, Basic auth, JSON response
// parsing) is delegated to golang.org/x/oauth2/clientcredentials, which
// implements exactly the wire contract in §6. OAuthProvider supplies the
// caching, single-flight, and refresh-buffer behavior clientcredentials
// itself does not offer an invalidation hook for, plus a one-hour expiry
// when the response carries no expires_in.
type OAuthProvider struct {
	cfg           clientcredentials.Config
	refreshBuffer time.Duration
	httpClient    *http.Client

	mu    sync.RWMutex
	cache *CachedToken

	group singleflight.Group
}

// OAuthOptions configures an OAuthProvider.
type OAuthOptions struct {
	TokenURL       string
	ClientID       string
	ClientSecret   string
	Scope          string
	RefreshBuffer  time.Duration
	RequestTimeout time.Duration
	HTTPClient     *http.Client
}

// NewOAuthProvider builds an OAuthProvider from the given options.
func NewOAuthProvider(opts OAuthOptions) *OAuthProvider {
	var scopes []string
	if opts.Scope != "" {
		scopes = []string{opts.Scope}
	}
	buffer := opts.RefreshBuffer
	if buffer <= 0 {
		buffer = DefaultRefreshBuffer
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &OAuthProvider{
		cfg: clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     opts.TokenURL,
			Scopes:       scopes,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		refreshBuffer: buffer,
		httpClient:    httpClient,
	}
}

func (p *OAuthProvider) GetToken(ctx context.Context) (string, error) {
	now := time.Now()

	p.mu.RLock()
	cached := p.cache
	p.mu.RUnlock()
	if cached.validFor(now, p.refreshBuffer) {
		return cached.AccessToken, nil
	}

	v, err, _ := p.group.Do("refresh", func() (interface{}, error) {
		// Double-checked: another goroutine may have refreshed while we
		// were waiting to enter this function.
		p.mu.RLock()
		cached := p.cache
		p.mu.RUnlock()
		if cached.validFor(time.Now(), p.refreshBuffer) {
			return cached, nil
		}
		return p.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(*CachedToken).AccessToken, nil
}

func (p *OAuthProvider) refresh(ctx context.Context) (*CachedToken, error) {
	httpCtx := context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	tok, err := p.cfg.Token(httpCtx)
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	if tok.AccessToken == "" {
		return nil, &AuthError{Err: fmt.Errorf("token endpoint response missing access_token")}
	}
	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(time.Hour) // default 3600s: clientcredentials leaves Expiry zero when expires_in is absent
	}
	cached := &CachedToken{AccessToken: tok.AccessToken, ExpiresAt: expiresAt}

	p.mu.Lock()
	p.cache = cached
	p.mu.Unlock()

	return cached, nil
}

func (p *OAuthProvider) InvalidateToken() {
	p.mu.Lock()
	p.cache = nil
	p.mu.Unlock()
}
