package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/db/models"
)

func TestExtractRoleClaims(t *testing.T) {
	src := RoleClaimSources{RolesClaim: "roles", ResourceAccessClient: "storefront-api"}

	tests := []struct {
		name    string
		claims  map[string]any
		src     RoleClaimSources
		want    []string
		wantErr bool
	}{
		{
			name:   "no role claims",
			claims: map[string]any{"sub": "u1"},
			src:    src,
			want:   []string{},
		},
		{
			name:   "flat roles claim",
			claims: map[string]any{"roles": []any{"Admin", "Manager"}},
			src:    src,
			want:   []string{"Admin", "Manager"},
		},
		{
			name:   "single string roles claim",
			claims: map[string]any{"roles": "Admin"},
			src:    src,
			want:   []string{"Admin"},
		},
		{
			name: "resource access for the configured client only",
			claims: map[string]any{
				"resource_access": map[string]any{
					"storefront-api": map[string]any{"roles": []any{"Manager", "Products.View"}},
					"account":        map[string]any{"roles": []any{"manage-account"}},
				},
			},
			src:  src,
			want: []string{"Manager", "Products.View"},
		},
		{
			name: "sources are concatenated in order",
			claims: map[string]any{
				"roles":           []any{"Admin"},
				"resource_access": map[string]any{"storefront-api": map[string]any{"roles": []any{"Manager"}}},
				"realm_access":    map[string]any{"roles": []any{"offline_access"}},
			},
			src:  RoleClaimSources{RolesClaim: "roles", ResourceAccessClient: "storefront-api", IncludeRealmRoles: true},
			want: []string{"Admin", "Manager", "offline_access"},
		},
		{
			name:   "realm roles ignored unless enabled",
			claims: map[string]any{"realm_access": map[string]any{"roles": []any{"offline_access"}}},
			src:    src,
			want:   []string{},
		},
		{
			name:    "malformed roles claim",
			claims:  map[string]any{"roles": map[string]any{"admin": true}},
			src:     src,
			wantErr: true,
		},
		{
			name:    "non-string role entry",
			claims:  map[string]any{"roles": []any{"Admin", 42}},
			src:     src,
			wantErr: true,
		},
		{
			name:    "malformed resource access",
			claims:  map[string]any{"resource_access": "storefront-api"},
			src:     src,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractRoleClaims(tt.claims, tt.src)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrincipalFromClaims(t *testing.T) {
	claims := map[string]any{
		"sub":         "f3b1c2d4",
		"email":       "ada@example.com",
		"given_name":  "Ada",
		"family_name": "Lovelace",
		"name":        "Ada Lovelace",
	}
	p, err := PrincipalFromClaims(claims)
	require.NoError(t, err)
	assert.Equal(t, "f3b1c2d4", p.Subject)
	assert.Equal(t, "ada@example.com", p.Email)
	assert.Equal(t, "Ada", p.GivenName)
	assert.Equal(t, "Lovelace", p.FamilyName)
	assert.Equal(t, "Ada Lovelace", p.Name)
	assert.Equal(t, claims, p.Claims)

	_, err = PrincipalFromClaims(map[string]any{"email": "x@example.com"})
	assert.Error(t, err)

	_, err = PrincipalFromClaims(map[string]any{"sub": 12})
	assert.Error(t, err)
}

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	_, ok := GetPrincipalFromContext(ctx)
	assert.False(t, ok)
	_, ok = GetUserFromContext(ctx)
	assert.False(t, ok)

	ctx = SetPrincipalContext(ctx, Principal{Subject: "s"})
	ctx = SetUserContext(ctx, &models.User{ID: "s"})

	p, ok := GetPrincipalFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "s", p.Subject)
	u, ok := GetUserFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "s", u.ID)
}

func TestRedirectCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	SetRedirectURICookie(rec, httptest.NewRequest(http.MethodGet, "/auth/sso/login", nil), "/shop")

	req := httptest.NewRequest(http.MethodGet, "/auth/sso/callback", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}

	rec = httptest.NewRecorder()
	assert.Equal(t, "/shop", PopRedirectURICookie(rec, req))
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.True(t, cleared[0].Expires.Before(time.Now()))

	assert.Equal(t, "", PopRedirectURICookie(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestGenerateState(t *testing.T) {
	a, err := GenerateState()
	require.NoError(t, err)
	b, err := GenerateState()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43)
}
