package iam

import (
	"context"
	"errors"
	"fmt"

	"github.com/xenitab/go-oidc-middleware/oidctoken"
	"github.com/xenitab/go-oidc-middleware/options"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/auth"
)

// JWTAuthenticator verifies bearer tokens against the issuer's published keys.
//
// It is stateless and safe for concurrent use.
type JWTAuthenticator struct {
	tokenHandler *oidctoken.TokenHandler[map[string]any]
}

// NewJWTAuthenticator creates an authenticator for tokens minted by issuer. Keys are
// fetched on first use so startup does not depend on the issuer being reachable.
func NewJWTAuthenticator(issuer, audience string, extra ...options.Option) (*JWTAuthenticator, error) {
	if issuer == "" {
		return nil, errors.New("oidc issuer is required")
	}

	oidcOpts := []options.Option{
		options.WithIssuer(issuer),
		options.WithLazyLoadJwks(true),
	}
	if audience != "" {
		oidcOpts = append(oidcOpts, options.WithRequiredAudience(audience))
	}
	oidcOpts = append(oidcOpts, extra...)

	tokenHandler, err := oidctoken.New[map[string]any](nil, oidcOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialize oidc token handler: %w", err)
	}
	return &JWTAuthenticator{tokenHandler: tokenHandler}, nil
}

// Authenticate verifies the token and builds the principal from its claims.
func (a *JWTAuthenticator) Authenticate(ctx context.Context, req AuthRequest) (*auth.Principal, error) {
	token := tokenFromRequest(req)
	if token == "" {
		return nil, nil
	}

	claims, err := a.tokenHandler.ParseToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	principal, err := auth.PrincipalFromClaims(claims)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return &principal, nil
}
