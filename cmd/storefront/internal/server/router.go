// Package server mounts the storefront identity HTTP API on a chi router.
package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/auth"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/logging"
	sfmiddleware "github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/middleware"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/permissions"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/services/iam"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/services/rbac"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/services/rolesync"
)

// RouterOptions controls the construction of the HTTP router.
// With a nil Authenticator only /health and the SSO endpoints are mounted.
type RouterOptions struct {
	RBAC          rbac.Service
	RoleSync      rolesync.Service
	Sessions      *iam.SessionEstablisher
	Authenticator iam.Authenticator
	RelyingParty  *auth.RelyingParty
	CORSOptions   *cors.Options
	Logger        logrus.FieldLogger
	HealthHandler http.HandlerFunc
	// RequestLogging enables chi's request logger.
	RequestLogging bool
}

// DefaultCORSOptions returns the storefront development CORS policy.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
			"http://localhost:5173",
			"http://127.0.0.1:5173",
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewRouter assembles the router. It fails when authenticated routes lack a collaborator.
func NewRouter(opts RouterOptions) (chi.Router, error) {
	logger := logging.Component(opts.Logger, "http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if opts.RequestLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/health", healthHandler)

	if opts.RelyingParty != nil && opts.Sessions != nil {
		r.Get("/auth/sso/login", HandleSSOLogin(opts.RelyingParty))
		r.Get("/auth/sso/callback", HandleSSOCallback(opts.RelyingParty, opts.Authenticator, opts.Sessions, logger))
	}

	if opts.Authenticator == nil {
		logger.Warn("authentication disabled, /api routes are not mounted")
		return r, nil
	}
	if opts.Sessions == nil || opts.RBAC == nil || opts.RoleSync == nil {
		return nil, errors.New("server: authenticated routes need the rbac, rolesync and session services")
	}

	authn, err := sfmiddleware.NewAuthnMiddleware(sfmiddleware.AuthnDependencies{
		Authenticator: opts.Authenticator,
		Sessions:      opts.Sessions,
		Logger:        opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	authz := sfmiddleware.NewAuthorizer(opts.RBAC, opts.Logger)
	h := &handlers{rbac: opts.RBAC, roleSync: opts.RoleSync, logger: logger}

	r.Route("/api", func(api chi.Router) {
		api.Use(authn)

		api.Get("/me", h.getMe)
		api.Get("/me/permissions", h.getMyPermissions)
		api.Post("/me/roles/sync", h.syncMyRoles)

		api.Route("/admin", func(admin chi.Router) {
			admin.With(authz.RequirePermission(permissions.PermissionsManage)).Post("/permissions/sync", h.syncPermissions)
			admin.With(authz.RequirePermission(permissions.PermissionsRead)).Get("/permissions", h.listPermissions)

			admin.With(authz.RequirePermission(permissions.RolesRead)).Get("/roles", h.listRoles)
			admin.With(authz.RequirePermission(permissions.RolesCreate)).Post("/roles", h.createRole)
			admin.With(authz.RequirePermission(permissions.RolesRead)).Get("/roles/{roleID}/permissions", h.getRolePermissions)

			admin.Group(func(manage chi.Router) {
				manage.Use(authz.RequirePermission(permissions.RolesManagePermissions))
				manage.Post("/roles/{roleID}/permissions", h.assignPermission)
				manage.Delete("/roles/{roleID}/permissions/{permission}", h.removePermission)
				manage.Put("/roles/by-name/{roleName}/permissions", h.assignPermissionsByName)
			})

			admin.With(authz.RequirePermission(permissions.UsersRead)).Get("/users/{userID}/permissions", h.getUserPermissions)
		})
	})

	return r, nil
}

type handlers struct {
	rbac     rbac.Service
	roleSync rolesync.Service
	logger   *logrus.Entry
}
