package cmd

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/auth"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/db/bunx"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/keycloak"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/repository"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/services/iam"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/services/provisioning"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/services/rbac"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/services/rolesync"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/telemetry"
)

// app holds the services shared by serve and the admin commands.
type app struct {
	db       *bun.DB
	rbac     rbac.Service
	roleSync rolesync.Service
	sessions *iam.SessionEstablisher
}

func openDB(ctx context.Context) (*bun.DB, error) {
	db, err := bunx.NewDB(ctx, cfg.DatabaseURL, cfg.MaxDBConnections)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func newMirror() keycloak.Mirror {
	if !cfg.Keycloak.Enabled() {
		logger.Info("keycloak mirror disabled (keycloak.base_url not set)")
		return nil
	}
	var opts []keycloak.Option
	if cfg.Keycloak.TokenCache {
		opts = append(opts, keycloak.WithTokenCache(keycloak.NewMemoryTokenCache()))
	}
	return keycloak.New(keycloak.Config{
		BaseURL:           cfg.Keycloak.BaseURL,
		Realm:             cfg.Keycloak.Realm,
		ClientID:          cfg.Keycloak.ClientID,
		GrantType:         cfg.Keycloak.GrantType,
		AdminClientID:     cfg.Keycloak.AdminClientID,
		AdminClientSecret: cfg.Keycloak.AdminClientSecret,
		Username:          cfg.Keycloak.Username,
		Password:          cfg.Keycloak.Password,
		Timeout:           cfg.Keycloak.Timeout,
	}, nil, logger, opts...)
}

// newApp connects to the database and wires every service. Callers close app.db.
func newApp(ctx context.Context) (*app, error) {
	db, err := openDB(ctx)
	if err != nil {
		return nil, err
	}

	metrics, err := telemetry.NewReconcileMetrics()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create metrics: %w", err)
	}

	repos := repository.NewBunRepositories(db)
	mirror := newMirror()

	rbacSvc, err := rbac.NewService(ctx, rbac.Dependencies{
		Permissions:     repos.Permissions,
		Roles:           repos.Roles,
		RolePermissions: repos.RolePermissions,
		UserRoles:       repos.UserRoles,
		Mirror:          mirror,
		Logger:          logger,
		Metrics:         metrics,
	}, rbac.Options{
		SuperRole:        cfg.RBAC.SuperRole,
		SuperRoleAliases: cfg.RBAC.SuperRoleAliases,
		RoleCacheTTL:     cfg.RBAC.RoleCacheTTL,
		RoleCacheSize:    cfg.RBAC.RoleCacheSize,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create permission service: %w", err)
	}

	roleSync, err := rolesync.NewService(rolesync.Dependencies{
		Roles:     repos.Roles,
		UserRoles: repos.UserRoles,
		Cache:     rbacSvc,
		Mirror:    mirror,
		Logger:    logger,
		Metrics:   metrics,
	}, rolesync.Options{
		ClaimSources: auth.RoleClaimSources{
			RolesClaim:           cfg.OIDC.RolesClaim,
			ResourceAccessClient: cfg.OIDC.ResourceAccessClient,
			IncludeRealmRoles:    cfg.OIDC.IncludeRealmRoles,
		},
		ProtectedRoles:       cfg.RBAC.ProtectedRoles,
		IgnoredRoles:         cfg.RBAC.IgnoredRoles,
		IgnoredRolePrefixes:  cfg.RBAC.IgnoredRolePrefixes,
		MirrorProtectedRoles: cfg.RBAC.MirrorProtectedRoles,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create role sync service: %w", err)
	}

	prov, err := provisioning.NewService(provisioning.Dependencies{
		Users:       repos.Users,
		Roles:       repos.Roles,
		UserRoles:   repos.UserRoles,
		Permissions: rbacSvc,
		Mirror:      mirror,
		Logger:      logger,
		Metrics:     metrics,
	}, cfg.RBAC.DefaultRole)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create provisioning service: %w", err)
	}

	return &app{
		db:       db,
		rbac:     rbacSvc,
		roleSync: roleSync,
		sessions: iam.NewSessionEstablisher(repos.Users, prov, roleSync, logger),
	}, nil
}
