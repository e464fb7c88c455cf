package providers

import (
	"context"
	"errors"
	"strings"
)

var _ AuthProvider = &InsecureAuthProvider{}

// InsecureAuthProvider accepts any non-empty token as the caller's uid.
// Only for local development and tests.
type InsecureAuthProvider struct{}

func NewInsecureAuthProvider() *InsecureAuthProvider {
	return &InsecureAuthProvider{}
}

func (p *InsecureAuthProvider) VerifyToken(ctx context.Context, idToken string) (*TokenClaims, error) {
	uid := strings.TrimSpace(idToken)
	if uid == "" {
		return nil, errors.New("empty token")
	}
	return &TokenClaims{UID: uid}, nil
}
