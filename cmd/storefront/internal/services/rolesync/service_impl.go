package rolesync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/auth"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/db/models"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/keycloak"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/logging"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/permissions"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/repository"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/telemetry"
)

// Dependencies contains everything the service needs.
type Dependencies struct {
	Roles     repository.RoleRepository
	UserRoles repository.UserRoleRepository
	Cache     CacheInvalidator

	// Mirror receives protected roles the token lost when Options.MirrorProtectedRoles
	// is set. Nil disables mirroring.
	Mirror  keycloak.Mirror
	Logger  logrus.FieldLogger
	Metrics *telemetry.ReconcileMetrics
}

// Options holds the reconciliation policy.
type Options struct {
	ClaimSources        auth.RoleClaimSources
	ProtectedRoles      []string
	IgnoredRoles        []string
	IgnoredRolePrefixes []string

	// Permissions filters out claim values that are permission names. Defaults to the catalog.
	Permissions permissions.Set

	// MirrorProtectedRoles re-assigns kept protected roles in the identity provider.
	// Each one is a blocking admin API call, so it is off unless asked for.
	MirrorProtectedRoles bool
}

type service struct {
	roles     repository.RoleRepository
	userRoles repository.UserRoleRepository
	cache     CacheInvalidator
	mirror    keycloak.Mirror
	logger    *logrus.Entry
	metrics   *telemetry.ReconcileMetrics

	sources   auth.RoleClaimSources
	protected map[string]struct{}
	ignored   map[string]struct{}
	prefixes  []string
	perms     permissions.Set

	mirrorProtected bool
}

// errInvalidRoleName rejects claim values that cannot become local roles.
var errInvalidRoleName = fmt.Errorf("role name must be between %d and %d characters",
	models.MinRoleNameLength, models.MaxRoleNameLength)

// NewService creates a role reconciliation service.
func NewService(deps Dependencies, opts Options) (Service, error) {
	if deps.Roles == nil || deps.UserRoles == nil {
		return nil, errors.New("rolesync: repositories are required")
	}
	if opts.Permissions == nil {
		opts.Permissions = permissions.NewSet()
	}

	prefixes := make([]string, 0, len(opts.IgnoredRolePrefixes))
	for _, p := range opts.IgnoredRolePrefixes {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			prefixes = append(prefixes, p)
		}
	}

	return &service{
		roles:     deps.Roles,
		userRoles: deps.UserRoles,
		cache:     deps.Cache,
		mirror:    deps.Mirror,
		logger:    logging.Component(deps.Logger, "rolesync"),
		metrics:   deps.Metrics,
		sources:   opts.ClaimSources,
		protected: lowerSet(opts.ProtectedRoles),
		ignored:   lowerSet(opts.IgnoredRoles),
		prefixes:  prefixes,
		perms:     opts.Permissions,

		mirrorProtected: opts.MirrorProtectedRoles,
	}, nil
}

func (s *service) SyncUserRolesFromToken(ctx context.Context, user *models.User, principal auth.Principal) (Result, error) {
	if user == nil {
		return Result{}, errors.New("rolesync: user is required")
	}
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerRoleSync, "rolesync.SyncUserRolesFromToken",
		attribute.String(telemetry.AttrUserID, user.ID))
	defer span.End()
	started := time.Now()

	raw, err := auth.ExtractRoleClaims(principal.Claims, s.sources)
	if err != nil {
		telemetry.RecordError(span, err)
		return Result{}, fmt.Errorf("extract role claims: %w", err)
	}
	wanted := s.filter(raw)

	log := s.logger.WithField("user_id", user.ID)
	result := Result{AddedRoles: []string{}, RemovedRoles: []string{}}

	// Every role the token grants is kept, even one that could not be materialized.
	tokenRoles := make(map[string]struct{}, len(wanted))
	for _, name := range wanted {
		tokenRoles[models.NormalizeRoleName(name)] = struct{}{}
	}

	// Materialize every wanted role locally, keyed by normalized name.
	target := make(map[string]*models.Role, len(wanted))
	for _, name := range wanted {
		role, err := s.ensureRole(ctx, name)
		if err != nil {
			result.Failed++
			log.WithError(err).WithField("role", name).Warn("could not materialize role, skipping")
			continue
		}
		target[role.NormalizedName] = role
	}

	currentRoles, err := s.userRoles.ListRoles(ctx, user.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return result, fmt.Errorf("list current roles: %w", err)
	}
	current := make(map[string]models.Role, len(currentRoles))
	for _, r := range currentRoles {
		current[r.NormalizedName] = r
	}

	var toAdd []*models.Role
	for _, name := range wanted {
		key := models.NormalizeRoleName(name)
		role, ok := target[key]
		if !ok {
			continue
		}
		if _, held := current[key]; !held {
			toAdd = append(toAdd, role)
		}
	}

	var toRemove, keptProtected []models.Role
	for _, r := range currentRoles {
		if _, ok := tokenRoles[r.NormalizedName]; ok {
			continue
		}
		if _, ok := s.protected[r.NormalizedName]; ok {
			keptProtected = append(keptProtected, r)
			continue
		}
		toRemove = append(toRemove, r)
	}

	for _, role := range toAdd {
		if err := s.userRoles.Add(ctx, user.ID, role.ID); err != nil {
			result.Failed++
			log.WithError(err).WithField("role", role.Name).Warn("failed to add role")
			continue
		}
		result.Added++
		result.AddedRoles = append(result.AddedRoles, role.Name)
	}

	for _, role := range toRemove {
		if err := s.userRoles.Remove(ctx, user.ID, role.ID); err != nil {
			result.Failed++
			log.WithError(err).WithField("role", role.Name).Warn("failed to remove role")
			continue
		}
		result.Removed++
		result.RemovedRoles = append(result.RemovedRoles, role.Name)
	}

	if s.cache != nil && (result.Added > 0 || result.Removed > 0) {
		s.cache.InvalidateUser(user.ID)
	}

	if s.mirrorProtected {
		s.pushProtected(ctx, log, user.ID, keptProtected)
	}

	span.SetAttributes(
		attribute.Int(telemetry.AttrRolesAdded, result.Added),
		attribute.Int(telemetry.AttrRolesRemoved, result.Removed),
		attribute.Int(telemetry.AttrRolesFailed, result.Failed),
	)
	s.metrics.RecordSync(ctx, result.Added, result.Removed, result.Failed,
		float64(time.Since(started).Microseconds())/1000)

	fields := logrus.Fields{"added": result.Added, "removed": result.Removed, "failed": result.Failed}
	if result.Failed > 0 {
		log.WithFields(fields).Warn("role reconciliation finished with failures")
	} else {
		log.WithFields(fields).Info("role reconciliation finished")
	}
	return result, nil
}

// filter drops noise and de-duplicates case-insensitively, keeping the first spelling.
func (s *service) filter(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, name := range raw {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		if s.isIgnored(key) || s.perms.Contains(name) {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	return out
}

func (s *service) isIgnored(key string) bool {
	if _, ok := s.ignored[key]; ok {
		return true
	}
	for _, p := range s.prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// ensureRole returns the local role for name, creating it when absent. A create that
// loses a race with a concurrent insert re-reads the winner.
func (s *service) ensureRole(ctx context.Context, name string) (*models.Role, error) {
	if !models.ValidRoleName(name) {
		return nil, errInvalidRoleName
	}
	role, err := s.roles.GetByName(ctx, name)
	if err == nil {
		return role, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	role = &models.Role{Name: name}
	if err := s.roles.Create(ctx, role); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return s.roles.GetByName(ctx, name)
		}
		return nil, err
	}
	s.logger.WithField("role", role.Name).Info("materialized role from token claims")
	return role, nil
}

// pushProtected pushes protected roles the user keeps locally back to the identity provider.
func (s *service) pushProtected(ctx context.Context, log *logrus.Entry, userID string, roles []models.Role) {
	if s.mirror == nil {
		return
	}
	for _, r := range roles {
		if err := s.mirror.AssignRoleToUser(ctx, userID, r.Name); err != nil {
			s.metrics.RecordMirrorFailure(ctx, "AssignRoleToUser")
			log.WithError(err).WithFields(logrus.Fields{"role": r.Name, "op": "AssignRoleToUser"}).
				Warn("mirror push failed")
		}
	}
}

func lowerSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n = models.NormalizeRoleName(n); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}
