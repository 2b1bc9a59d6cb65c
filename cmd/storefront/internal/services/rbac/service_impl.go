package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/db/models"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/keycloak"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/logging"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/permissions"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/repository"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/telemetry"
)

const (
	defaultRoleCacheTTL  = 30 * time.Second
	defaultRoleCacheSize = 4096
)

// Dependencies contains everything the service needs.
type Dependencies struct {
	Permissions     repository.PermissionRepository
	Roles           repository.RoleRepository
	RolePermissions repository.RolePermissionRepository
	UserRoles       repository.UserRoleRepository

	// Mirror receives best-effort pushes. Nil disables mirroring.
	Mirror  keycloak.Mirror
	Logger  logrus.FieldLogger
	Metrics *telemetry.ReconcileMetrics

	// Catalog defaults to permissions.Definitions.
	Catalog func() []permissions.Definition
}

// Options holds the role policy.
type Options struct {
	SuperRole        string
	SuperRoleAliases []string
	RoleCacheTTL     time.Duration
	RoleCacheSize    int
}

type service struct {
	permissions     repository.PermissionRepository
	roles           repository.RoleRepository
	rolePermissions repository.RolePermissionRepository
	userRoles       repository.UserRoleRepository

	mirror  keycloak.Mirror
	logger  *logrus.Entry
	metrics *telemetry.ReconcileMetrics
	catalog func() []permissions.Definition

	opts      Options
	policy    *GrantPolicy
	roleCache *expirable.LRU[string, []string]
}

// NewService builds the service and loads the initial grant snapshot.
func NewService(ctx context.Context, deps Dependencies, opts Options) (Service, error) {
	return newService(ctx, deps, opts)
}

func newService(ctx context.Context, deps Dependencies, opts Options) (*service, error) {
	if deps.Permissions == nil || deps.Roles == nil || deps.RolePermissions == nil || deps.UserRoles == nil {
		return nil, errors.New("rbac: repositories are required")
	}
	if strings.TrimSpace(opts.SuperRole) == "" {
		return nil, errors.New("rbac: super role is required")
	}
	if opts.RoleCacheTTL <= 0 {
		opts.RoleCacheTTL = defaultRoleCacheTTL
	}
	if opts.RoleCacheSize <= 0 {
		opts.RoleCacheSize = defaultRoleCacheSize
	}
	if deps.Catalog == nil {
		deps.Catalog = permissions.Definitions
	}

	policy, err := NewGrantPolicy(deps.RolePermissions)
	if err != nil {
		return nil, err
	}
	if err := policy.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("initial grant snapshot: %w", err)
	}

	return &service{
		permissions:     deps.Permissions,
		roles:           deps.Roles,
		rolePermissions: deps.RolePermissions,
		userRoles:       deps.UserRoles,
		mirror:          deps.Mirror,
		logger:          logging.Component(deps.Logger, "rbac"),
		metrics:         deps.Metrics,
		catalog:         deps.Catalog,
		opts:            opts,
		policy:          policy,
		roleCache:       expirable.NewLRU[string, []string](opts.RoleCacheSize, nil, opts.RoleCacheTTL),
	}, nil
}

func (s *service) SeedPermissions(ctx context.Context) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerRBAC, "rbac.SeedPermissions")
	defer span.End()

	var created []*models.Permission
	now := time.Now().UTC()
	for _, def := range s.catalog() {
		p := &models.Permission{
			Name:        def.Name,
			Description: def.Description(),
			Module:      def.Module,
			Action:      def.Action,
			CreatedAt:   now,
		}
		inserted, err := s.permissions.CreateIfAbsent(ctx, p)
		if err != nil {
			telemetry.RecordError(span, err)
			return len(created), fmt.Errorf("seed permission %s: %w", def.Name, err)
		}
		if inserted {
			created = append(created, p)
		}
	}
	span.SetAttributes(attribute.Int(telemetry.AttrPermissionsSeeded, len(created)))
	s.logger.WithField("seeded", len(created)).Info("permission catalog seeded")

	if _, err := s.EnsureSuperRoleHasAllPermissions(ctx); err != nil {
		telemetry.RecordError(span, err)
		return len(created), err
	}

	for _, p := range created {
		s.mirrorCreateRole(ctx, p.Name, p.Description)
	}
	return len(created), nil
}

// superRole resolves the configured super role, then its aliases.
func (s *service) superRole(ctx context.Context) (*models.Role, error) {
	names := append([]string{s.opts.SuperRole}, s.opts.SuperRoleAliases...)
	for _, name := range names {
		role, err := s.roles.GetByName(ctx, name)
		if err == nil {
			return role, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}
	return nil, repository.ErrNotFound
}

func (s *service) EnsureSuperRoleHasAllPermissions(ctx context.Context) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerRBAC, "rbac.EnsureSuperRoleHasAllPermissions",
		attribute.String(telemetry.AttrRoleName, s.opts.SuperRole))
	defer span.End()

	role, err := s.superRole(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.WithField("role", s.opts.SuperRole).Warn("super role not found, skipping grant completion")
		return 0, nil
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, fmt.Errorf("resolve super role: %w", err)
	}

	all, err := s.permissions.List(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, fmt.Errorf("list permissions: %w", err)
	}
	granted, err := s.rolePermissions.ListActivePermissions(ctx, role.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, fmt.Errorf("list super role grants: %w", err)
	}

	have := make(map[string]struct{}, len(granted))
	for _, p := range granted {
		have[p.ID] = struct{}{}
	}
	var missing []string
	for _, p := range all {
		if _, ok := have[p.ID]; !ok {
			missing = append(missing, p.ID)
		}
	}
	if len(missing) == 0 {
		s.logger.WithField("role", role.Name).Debug("super role already holds every permission")
		return 0, nil
	}

	if err := s.rolePermissions.Activate(ctx, role.ID, missing); err != nil {
		telemetry.RecordError(span, err)
		return 0, fmt.Errorf("grant super role: %w", err)
	}
	if err := s.policy.Refresh(ctx); err != nil {
		return len(missing), err
	}

	s.logger.WithFields(logrus.Fields{"role": role.Name, "granted": len(missing)}).Info("super role completed")
	return len(missing), nil
}

func (s *service) SyncPermissions(ctx context.Context) (SyncPermissionsResult, error) {
	seeded, err := s.SeedPermissions(ctx)
	if err != nil {
		return SyncPermissionsResult{Seeded: seeded}, err
	}
	// Seeding already completed the super role; a second pass catches permissions
	// that existed before but were never granted.
	granted, err := s.EnsureSuperRoleHasAllPermissions(ctx)
	if err != nil {
		return SyncPermissionsResult{Seeded: seeded}, err
	}
	return SyncPermissionsResult{Seeded: seeded, GrantedToSuperRole: granted}, nil
}

func (s *service) AssignPermissionsToRole(ctx context.Context, roleName string, permissionNames []string) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerRBAC, "rbac.AssignPermissionsToRole",
		attribute.String(telemetry.AttrRoleName, roleName))
	defer span.End()

	role, err := s.roles.GetByName(ctx, roleName)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, roleLookupError(roleName, err)
	}

	names := dedupe(permissionNames)
	perms, err := s.permissions.GetByNames(ctx, names)
	if err != nil {
		telemetry.RecordError(span, err)
		return 0, fmt.Errorf("resolve permissions: %w", err)
	}
	if len(perms) != len(names) {
		found := make(map[string]struct{}, len(perms))
		for _, p := range perms {
			found[p.Name] = struct{}{}
		}
		for _, n := range names {
			if _, ok := found[n]; !ok {
				return 0, fmt.Errorf("%w: %s", ErrPermissionNotFound, n)
			}
		}
	}

	granted, err := s.rolePermissions.ListActivePermissions(ctx, role.ID)
	if err != nil {
		return 0, fmt.Errorf("list role grants: %w", err)
	}
	have := make(map[string]struct{}, len(granted))
	for _, p := range granted {
		have[p.ID] = struct{}{}
	}
	var toGrant []string
	for _, p := range perms {
		if _, ok := have[p.ID]; !ok {
			toGrant = append(toGrant, p.ID)
		}
	}
	if len(toGrant) == 0 {
		return 0, nil
	}

	if err := s.rolePermissions.Activate(ctx, role.ID, toGrant); err != nil {
		telemetry.RecordError(span, err)
		return 0, fmt.Errorf("grant permissions: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"role": role.Name, "granted": len(toGrant)}).Info("permissions assigned to role")
	return len(toGrant), s.policy.Refresh(ctx)
}

func (s *service) AssignPermissionToRole(ctx context.Context, roleID, permissionName string) error {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerRBAC, "rbac.AssignPermissionToRole",
		attribute.String(telemetry.AttrPermission, permissionName))
	defer span.End()

	role, permission, err := s.resolveGrant(ctx, roleID, permissionName)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	if err := s.rolePermissions.Activate(ctx, role.ID, []string{permission.ID}); err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("grant permission: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"role": role.Name, "permission": permission.Name}).Info("permission granted")
	return s.policy.Refresh(ctx)
}

func (s *service) RemovePermissionFromRole(ctx context.Context, roleID, permissionName string) error {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerRBAC, "rbac.RemovePermissionFromRole",
		attribute.String(telemetry.AttrPermission, permissionName))
	defer span.End()

	role, permission, err := s.resolveGrant(ctx, roleID, permissionName)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	changed, err := s.rolePermissions.Deactivate(ctx, role.ID, permission.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("revoke permission: %w", err)
	}
	if !changed {
		return nil
	}
	s.logger.WithFields(logrus.Fields{"role": role.Name, "permission": permission.Name}).Info("permission revoked")
	return s.policy.Refresh(ctx)
}

func (s *service) resolveGrant(ctx context.Context, roleID, permissionName string) (*models.Role, *models.Permission, error) {
	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		return nil, nil, roleLookupError(roleID, err)
	}
	permission, err := s.permissions.GetByName(ctx, strings.TrimSpace(permissionName))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: %s", ErrPermissionNotFound, permissionName)
		}
		return nil, nil, fmt.Errorf("get permission: %w", err)
	}
	return role, permission, nil
}

func (s *service) HasPermission(ctx context.Context, userID, permissionName string) (bool, error) {
	roles, err := s.UserRoleNames(ctx, userID)
	if err != nil {
		return false, err
	}
	if len(roles) == 0 {
		return false, nil
	}
	return s.policy.Get().Allowed(roles, permissionName)
}

func (s *service) GetUserPermissions(ctx context.Context, userID string) ([]string, error) {
	roles, err := s.UserRoleNames(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.policy.Get().Permissions(roles), nil
}

func (s *service) CreateRole(ctx context.Context, name, description string) (*models.Role, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerRBAC, "rbac.CreateRole",
		attribute.String(telemetry.AttrRoleName, name))
	defer span.End()

	name = strings.TrimSpace(name)
	if !models.ValidRoleName(name) {
		return nil, ErrInvalidRoleName
	}

	if _, err := s.roles.GetByName(ctx, name); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrRoleExists, name)
	} else if !errors.Is(err, repository.ErrNotFound) {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("check role: %w", err)
	}

	role := &models.Role{Name: name, Description: strings.TrimSpace(description)}
	if err := s.roles.Create(ctx, role); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("%w: %s", ErrRoleExists, name)
		}
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("create role: %w", err)
	}
	s.logger.WithField("role", role.Name).Info("role created")

	s.mirrorCreateRole(ctx, role.Name, role.Description)
	return role, nil
}

func (s *service) GetRole(ctx context.Context, roleID string) (*models.Role, error) {
	role, err := s.roles.GetByID(ctx, roleID)
	if err != nil {
		return nil, roleLookupError(roleID, err)
	}
	return role, nil
}

func (s *service) ListRoles(ctx context.Context) ([]models.Role, error) {
	return s.roles.List(ctx)
}

func (s *service) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	return s.permissions.List(ctx)
}

func (s *service) GetRolePermissions(ctx context.Context, roleID string) ([]string, error) {
	if _, err := s.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	perms, err := s.rolePermissions.ListActivePermissions(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("list role permissions: %w", err)
	}
	names := make([]string, 0, len(perms))
	for _, p := range perms {
		names = append(names, p.Name)
	}
	return names, nil
}

func (s *service) UserRoleNames(ctx context.Context, userID string) ([]string, error) {
	if names, ok := s.roleCache.Get(userID); ok {
		return append([]string(nil), names...), nil
	}
	roles, err := s.userRoles.ListRoles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user roles: %w", err)
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	s.roleCache.Add(userID, names)
	return names, nil
}

func (s *service) InvalidateUser(userID string) {
	s.roleCache.Remove(userID)
}

func (s *service) RefreshGrantSnapshot(ctx context.Context) error {
	if err := s.policy.Refresh(ctx); err != nil {
		return err
	}
	s.roleCache.Purge()
	s.logger.WithField("version", s.policy.Get().Version).Debug("grant snapshot refreshed")
	return nil
}

func (s *service) mirrorCreateRole(ctx context.Context, name, description string) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.CreateClientRole(ctx, name, description); err != nil {
		s.metrics.RecordMirrorFailure(ctx, "CreateClientRole")
		s.logger.WithError(err).WithFields(logrus.Fields{"role": name, "op": "CreateClientRole"}).
			Warn("mirror push failed")
	}
}

func roleLookupError(key string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrRoleNotFound, key)
	}
	return fmt.Errorf("get role: %w", err)
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
