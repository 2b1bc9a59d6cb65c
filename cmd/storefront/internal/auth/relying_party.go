package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zitadel/oidc/v3/pkg/client/rp"
	httphelper "github.com/zitadel/oidc/v3/pkg/http"
	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/config"
)

const (
	// SessionCookieName holds the access token issued by the SSO callback.
	SessionCookieName  = "storefront.session"
	redirectCookieName = "storefront.redirect_uri"
)

// RelyingParty drives the browser login against the identity provider. It wraps
// the zitadel/oidc RelyingParty with PKCE and encrypted state cookies.
type RelyingParty struct {
	rp rp.RelyingParty
}

// NewRelyingParty discovers the issuer and builds the relying party.
func NewRelyingParty(ctx context.Context, issuer string, cfg config.SSOConfig, secureCookies bool) (*RelyingParty, error) {
	hashKey, err := generateRandomBytes(32)
	if err != nil {
		return nil, fmt.Errorf("generate cookie hash key: %w", err)
	}
	cryptoKey, err := generateRandomBytes(32)
	if err != nil {
		return nil, fmt.Errorf("generate cookie crypto key: %w", err)
	}

	var cookieOpts []httphelper.CookieHandlerOpt
	if !secureCookies {
		cookieOpts = append(cookieOpts, httphelper.WithUnsecure())
	}
	cookieHandler := httphelper.NewCookieHandler(hashKey, cryptoKey, cookieOpts...)

	options := []rp.Option{
		rp.WithCookieHandler(cookieHandler),
		rp.WithVerifierOpts(rp.WithIssuedAtMaxAge(10 * time.Second)),
		rp.WithPKCE(cookieHandler),
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{oidc.ScopeOpenID, oidc.ScopeProfile, oidc.ScopeEmail}
	}

	relyingParty, err := rp.NewRelyingPartyOIDC(ctx, issuer, cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI, scopes, options...)
	if err != nil {
		return nil, fmt.Errorf("create OIDC relying party: %w", err)
	}
	return &RelyingParty{rp: relyingParty}, nil
}

// RP exposes the underlying relying party for the zitadel HTTP handlers.
func (r *RelyingParty) RP() rp.RelyingParty {
	return r.rp
}

func generateRandomBytes(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("generate random bytes: %w", err)
	}
	return b, nil
}

// GenerateState returns a random URL-safe state value.
func GenerateState() (string, error) {
	b, err := generateRandomBytes(32)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SetRedirectURICookie remembers where to send the browser after the callback.
func SetRedirectURICookie(w http.ResponseWriter, r *http.Request, redirectURI string) {
	http.SetCookie(w, &http.Cookie{
		Name:     redirectCookieName,
		Value:    redirectURI,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// PopRedirectURICookie reads and clears the redirect cookie. Empty when absent.
func PopRedirectURICookie(w http.ResponseWriter, r *http.Request) string {
	cookie, err := r.Cookie(redirectCookieName)
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:     redirectCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return cookie.Value
}

// SetSessionCookie stores the access token for browser clients.
func SetSessionCookie(w http.ResponseWriter, r *http.Request, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}
