package token

import (
	"context"
	"errors"
)

// ErrEmptyToken is returned by NewStaticProvider when constructed with an
// empty token string.
var ErrEmptyToken = errors.New("eventlogger: static token provider requires a non-empty token")

// StaticProvider returns a fixed bearer token on every call.
type StaticProvider struct {
	token string
}

// NewStaticProvider builds a StaticProvider. It rejects an empty token.
func NewStaticProvider(token string) (*StaticProvider, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}
	return &StaticProvider{token: token}, nil
}

func (p *StaticProvider) GetToken(ctx context.Context) (string, error) {
	return p.token, nil
}

func (p *StaticProvider) InvalidateToken() {}
