package server

import (
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/zitadel/oidc/v3/pkg/client/rp"
	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/auth"
	sfmiddleware "github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/middleware"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/services/iam"
)

// HandleSSOLogin starts the authorization code flow. An optional redirect_uri query
// parameter selects where the browser lands after the callback.
func HandleSSOLogin(rpAuth *auth.RelyingParty) http.HandlerFunc {
	libraryAuthHandler := rp.AuthURLHandler(func() string {
		state, _ := auth.GenerateState()
		return state
	}, rpAuth.RP())
	return func(w http.ResponseWriter, r *http.Request) {
		if redirectURI := r.URL.Query().Get("redirect_uri"); redirectURI != "" {
			auth.SetRedirectURICookie(w, r, redirectURI)
		}
		libraryAuthHandler.ServeHTTP(w, r)
	}
}

// HandleSSOCallback exchanges the code, provisions and reconciles the user, stores the
// access token in the session cookie and redirects.
func HandleSSOCallback(rpAuth *auth.RelyingParty, authenticator iam.Authenticator, sessions *iam.SessionEstablisher, logger logrus.FieldLogger) http.HandlerFunc {
	codeExchangeCallback := func(w http.ResponseWriter, r *http.Request, tokens *oidc.Tokens[*oidc.IDTokenClaims], _ string, _ rp.RelyingParty) {
		ctx := r.Context()

		principal, err := callbackPrincipal(r, authenticator, tokens)
		if err != nil {
			logger.WithError(err).Warn("SSO callback: could not read token claims")
			sfmiddleware.WriteError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		user, result, err := sessions.Login(ctx, principal)
		if err != nil {
			logger.WithError(err).WithField("user_id", principal.Subject).Error("SSO callback: failed to establish session")
			writeServiceError(w, r, logger, err)
			return
		}
		logger.WithFields(logrus.Fields{
			"user_id": user.ID,
			"added":   result.Added,
			"removed": result.Removed,
		}).Info("SSO login")

		auth.SetSessionCookie(w, r, tokens.AccessToken, tokens.Expiry)

		redirectURI := auth.PopRedirectURICookie(w, r)
		if redirectURI == "" {
			redirectURI = "/"
		}
		http.Redirect(w, r, redirectURI, http.StatusFound)
	}
	return rp.CodeExchangeHandler(codeExchangeCallback, rpAuth.RP())
}

// callbackPrincipal prefers the verified access token, which carries the role claims,
// and falls back to the ID token claims.
func callbackPrincipal(r *http.Request, authenticator iam.Authenticator, tokens *oidc.Tokens[*oidc.IDTokenClaims]) (auth.Principal, error) {
	if authenticator != nil && tokens.AccessToken != "" {
		h := http.Header{}
		h.Set("Authorization", "Bearer "+tokens.AccessToken)
		p, err := authenticator.Authenticate(r.Context(), iam.AuthRequest{Headers: h})
		if err == nil && p != nil {
			return *p, nil
		}
	}

	claims := tokens.IDTokenClaims
	all := make(map[string]any, len(claims.Claims)+5)
	for k, v := range claims.Claims {
		all[k] = v
	}
	all["sub"] = claims.Subject
	all["email"] = claims.Email
	all["given_name"] = claims.GivenName
	all["family_name"] = claims.FamilyName
	all["name"] = claims.Name
	return auth.PrincipalFromClaims(all)
}
