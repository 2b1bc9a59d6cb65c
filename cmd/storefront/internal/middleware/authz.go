package middleware

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/auth"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/logging"
)

// PermissionChecker answers authorization questions for a local user.
type PermissionChecker interface {
	HasPermission(ctx context.Context, userID, permission string) (bool, error)
}

// Authorizer builds per-route permission guards.
type Authorizer struct {
	checker PermissionChecker
	logger  *logrus.Entry
}

// NewAuthorizer creates an authorizer backed by checker.
func NewAuthorizer(checker PermissionChecker, logger logrus.FieldLogger) *Authorizer {
	return &Authorizer{checker: checker, logger: logging.Component(logger, "authz")}
}

// RequirePermission lets the request through only when the authenticated user holds permission.
// It must run after the authn middleware.
func (a *Authorizer) RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := auth.GetUserFromContext(r.Context())
			if !ok {
				unauthenticated(w)
				return
			}

			allowed, err := a.checker.HasPermission(r.Context(), user.ID, permission)
			if err != nil {
				a.logger.WithError(err).WithFields(logrus.Fields{"user_id": user.ID, "permission": permission}).
					Error("permission check failed")
				WriteError(w, http.StatusInternalServerError, "authorization error")
				return
			}
			if !allowed {
				a.logger.WithFields(logrus.Fields{"user_id": user.ID, "permission": permission}).Debug("permission denied")
				WriteError(w, http.StatusForbidden, "missing permission "+permission)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
