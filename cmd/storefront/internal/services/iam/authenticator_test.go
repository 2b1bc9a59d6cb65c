package iam

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/auth"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/config"
)

func mintToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("gateway-secret"))
	require.NoError(t, err)
	return token
}

func bearer(token string) AuthRequest {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return AuthRequest{Headers: h}
}

func TestUpstreamAuthenticator(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	a := NewUpstreamAuthenticator("https://sso.example.com/realms/storefront")
	a.now = func() time.Time { return now }

	valid := jwt.MapClaims{
		"iss":         "https://sso.example.com/realms/storefront",
		"sub":         "kc-42",
		"email":       "ada@example.com",
		"given_name":  "Ada",
		"family_name": "Lovelace",
		"exp":         now.Add(time.Hour).Unix(),
		"resource_access": map[string]any{
			"storefront-api": map[string]any{"roles": []string{"Manager"}},
		},
	}

	t.Run("bearer header", func(t *testing.T) {
		p, err := a.Authenticate(context.Background(), bearer(mintToken(t, valid)))
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "kc-42", p.Subject)
		assert.Equal(t, "ada@example.com", p.Email)
		assert.Equal(t, "Lovelace", p.FamilyName)

		roles, err := auth.ExtractRoleClaims(p.Claims, auth.RoleClaimSources{ResourceAccessClient: "storefront-api"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Manager"}, roles)
	})

	t.Run("session cookie", func(t *testing.T) {
		req := AuthRequest{Cookies: []*http.Cookie{{Name: auth.SessionCookieName, Value: mintToken(t, valid)}}}
		p, err := a.Authenticate(context.Background(), req)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "kc-42", p.Subject)
	})

	t.Run("no credentials", func(t *testing.T) {
		p, err := a.Authenticate(context.Background(), AuthRequest{Headers: http.Header{}})
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	tests := []struct {
		name   string
		mutate func(jwt.MapClaims)
	}{
		{name: "expired", mutate: func(c jwt.MapClaims) { c["exp"] = now.Add(-time.Minute).Unix() }},
		{name: "wrong issuer", mutate: func(c jwt.MapClaims) { c["iss"] = "https://evil.example.com" }},
		{name: "missing subject", mutate: func(c jwt.MapClaims) { delete(c, "sub") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := jwt.MapClaims{}
			for k, v := range valid {
				claims[k] = v
			}
			tt.mutate(claims)

			p, err := a.Authenticate(context.Background(), bearer(mintToken(t, claims)))
			require.Error(t, err)
			assert.Nil(t, p)
		})
	}

	t.Run("garbage", func(t *testing.T) {
		_, err := a.Authenticate(context.Background(), bearer("not-a-jwt"))
		assert.Error(t, err)
	})
}

func TestJWTAuthenticator(t *testing.T) {
	t.Parallel()

	_, err := NewJWTAuthenticator("", "storefront-api")
	require.Error(t, err)

	// Keys load lazily, so an unreachable issuer only fails at verification time.
	a, err := NewJWTAuthenticator("http://127.0.0.1:1/realms/storefront", "storefront-api")
	require.NoError(t, err)

	p, err := a.Authenticate(context.Background(), AuthRequest{Headers: http.Header{}})
	require.NoError(t, err)
	assert.Nil(t, p)

	p, err = a.Authenticate(context.Background(), bearer(mintToken(t, jwt.MapClaims{"sub": "kc-1"})))
	require.Error(t, err)
	assert.Nil(t, p)
}

func TestNewAuthenticator_Modes(t *testing.T) {
	t.Parallel()

	a, err := NewAuthenticator(config.OIDCConfig{})
	require.NoError(t, err)
	assert.Nil(t, a)

	a, err = NewAuthenticator(config.OIDCConfig{TrustUpstream: true})
	require.NoError(t, err)
	assert.IsType(t, &UpstreamAuthenticator{}, a)

	a, err = NewAuthenticator(config.OIDCConfig{Issuer: "http://127.0.0.1:1/realms/storefront"})
	require.NoError(t, err)
	assert.IsType(t, &JWTAuthenticator{}, a)
}

func TestTokenFromRequest_HeaderWinsOverCookie(t *testing.T) {
	t.Parallel()

	req := bearer("from-header")
	req.Cookies = []*http.Cookie{{Name: auth.SessionCookieName, Value: "from-cookie"}}
	assert.Equal(t, "from-header", tokenFromRequest(req))

	req = AuthRequest{Cookies: []*http.Cookie{{Name: "other", Value: "x"}}}
	assert.Empty(t, tokenFromRequest(req))
}
