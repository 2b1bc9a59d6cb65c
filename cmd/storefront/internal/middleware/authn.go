package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/auth"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/db/models"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/logging"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/services/iam"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/services/provisioning"
)

// SessionResolver maps a verified principal onto a local user.
type SessionResolver interface {
	Resolve(ctx context.Context, principal auth.Principal) (*models.User, error)
}

// AuthnDependencies bundles collaborators required by the authentication middleware.
type AuthnDependencies struct {
	Authenticator iam.Authenticator
	Sessions      SessionResolver
	Logger        logrus.FieldLogger
}

// NewAuthnMiddleware rejects requests without valid credentials and stores the principal
// and its local user on the request context. First-seen users are provisioned and
// reconciled before the handler runs.
func NewAuthnMiddleware(deps AuthnDependencies) (func(http.Handler) http.Handler, error) {
	if deps.Authenticator == nil {
		return nil, errors.New("authn middleware requires an authenticator")
	}
	if deps.Sessions == nil {
		return nil, errors.New("authn middleware requires a session resolver")
	}
	logger := logging.Component(deps.Logger, "authn")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			principal, err := deps.Authenticator.Authenticate(ctx, iam.NewAuthRequest(r))
			if err != nil {
				logger.WithError(err).WithField("path", r.URL.Path).Debug("authentication failed")
				WriteError(w, http.StatusUnauthorized, "invalid credentials")
				return
			}
			if principal == nil {
				unauthenticated(w)
				return
			}

			user, err := deps.Sessions.Resolve(ctx, *principal)
			if err != nil {
				if errors.Is(err, provisioning.ErrMissingEmail) || errors.Is(err, provisioning.ErrMissingName) {
					WriteError(w, http.StatusUnprocessableEntity, err.Error())
					return
				}
				logger.WithError(err).WithField("user_id", principal.Subject).Error("failed to resolve session")
				WriteError(w, http.StatusInternalServerError, "authentication error")
				return
			}

			ctx = auth.SetPrincipalContext(ctx, *principal)
			ctx = auth.SetUserContext(ctx, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}, nil
}

func unauthenticated(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="storefront"`)
	WriteError(w, http.StatusUnauthorized, "authentication required")
}
