package iam

import (
	"context"
	"net/http"
	"strings"

	"github.com/xenitab/go-oidc-middleware/oidctoken"
	"github.com/xenitab/go-oidc-middleware/options"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/auth"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/config"
)

// Authenticator validates credentials and returns the verified principal.
//
// Return values:
//   - (principal, nil): authentication succeeded
//   - (nil, nil): no credentials present
//   - (nil, error): credentials present but invalid
type Authenticator interface {
	Authenticate(ctx context.Context, req AuthRequest) (*auth.Principal, error)
}

// AuthRequest wraps the request data authenticators look at.
type AuthRequest struct {
	Headers http.Header
	Cookies []*http.Cookie
}

// NewAuthRequest captures headers and cookies from an HTTP request.
func NewAuthRequest(r *http.Request) AuthRequest {
	return AuthRequest{Headers: r.Header, Cookies: r.Cookies()}
}

// NewAuthenticator picks the verification mode from config. It returns nil when
// authentication is disabled.
func NewAuthenticator(cfg config.OIDCConfig) (Authenticator, error) {
	switch {
	case cfg.Issuer != "":
		a, err := NewJWTAuthenticator(cfg.Issuer, cfg.Audience)
		if err != nil {
			return nil, err
		}
		return a, nil
	case cfg.TrustUpstream:
		return NewUpstreamAuthenticator(""), nil
	default:
		return nil, nil
	}
}

// tokenFromRequest reads a bearer token from the Authorization header, then from the
// session cookie set by the SSO callback.
func tokenFromRequest(req AuthRequest) string {
	if req.Headers != nil && req.Headers.Get("Authorization") != "" {
		token, err := oidctoken.GetTokenString(req.Headers.Get, [][]options.TokenStringOption{{}})
		if err == nil {
			return strings.TrimSpace(token)
		}
	}
	for _, c := range req.Cookies {
		if c.Name == auth.SessionCookieName && c.Value != "" {
			return strings.TrimSpace(c.Value)
		}
	}
	return ""
}
