// Package token implements the bearer-token providers the API Client
// uses to authorize requests: a fixed static token, and an OAuth2
// client-credentials provider with caching and single-flight refresh.
package token

import "context"

// Provider returns a bearer token string to put in an Authorization
// header. Implementations must be safe for concurrent use.
type Provider interface {
	// GetToken returns a currently-valid token, refreshing it first if
	// necessary.
	GetToken(ctx context.Context) (string, error)
	// InvalidateToken drops any cached token, forcing the next GetToken
	// call to refresh. Implementations for which there is nothing to
	// cache (e.g. a static token) may make this a no-op.
	InvalidateToken()
}
