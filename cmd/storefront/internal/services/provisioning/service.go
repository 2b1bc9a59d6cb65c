// Package provisioning creates local users the first time an identity is seen.
package provisioning

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
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/repository"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/telemetry"
)

var (
	// ErrMissingEmail is returned when a new principal carries no email claim.
	ErrMissingEmail = errors.New("principal has no email")
	// ErrMissingName is returned when no name can be derived for a new principal.
	ErrMissingName = errors.New("principal has no name")
)

// PermissionSource resolves the permissions a user holds.
type PermissionSource interface {
	GetUserPermissions(ctx context.Context, userID string) ([]string, error)
	InvalidateUser(userID string)
}

// Service provisions users from verified principals.
type Service interface {
	// SyncUser returns the local user for the principal and whether it was just created.
	SyncUser(ctx context.Context, principal auth.Principal) (*models.User, bool, error)
}

// Dependencies contains everything the service needs.
type Dependencies struct {
	Users     repository.UserRepository
	Roles     repository.RoleRepository
	UserRoles repository.UserRoleRepository

	// Permissions and Mirror together drive the best-effort permission push.
	Permissions PermissionSource
	Mirror      keycloak.Mirror
	Logger      logrus.FieldLogger
	Metrics     *telemetry.ReconcileMetrics

	Now func() time.Time
}

type service struct {
	users       repository.UserRepository
	roles       repository.RoleRepository
	userRoles   repository.UserRoleRepository
	permissions PermissionSource
	mirror      keycloak.Mirror
	logger      *logrus.Entry
	metrics     *telemetry.ReconcileMetrics
	now         func() time.Time

	defaultRole string
}

// NewService creates a provisioning service that assigns defaultRole to new users.
func NewService(deps Dependencies, defaultRole string) (Service, error) {
	if deps.Users == nil || deps.Roles == nil || deps.UserRoles == nil {
		return nil, errors.New("provisioning: repositories are required")
	}
	if strings.TrimSpace(defaultRole) == "" {
		return nil, errors.New("provisioning: default role is required")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &service{
		users:       deps.Users,
		roles:       deps.Roles,
		userRoles:   deps.UserRoles,
		permissions: deps.Permissions,
		mirror:      deps.Mirror,
		logger:      logging.Component(deps.Logger, "provisioning"),
		metrics:     deps.Metrics,
		now:         deps.Now,
		defaultRole: strings.TrimSpace(defaultRole),
	}, nil
}

func (s *service) SyncUser(ctx context.Context, principal auth.Principal) (*models.User, bool, error) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerProvisioning, "provisioning.SyncUser",
		attribute.String(telemetry.AttrUserID, principal.Subject))
	defer span.End()

	if strings.TrimSpace(principal.Subject) == "" {
		return nil, false, errors.New("principal has no subject")
	}

	user, err := s.users.GetByID(ctx, principal.Subject)
	if err == nil {
		if user, err = s.touch(ctx, user); err != nil {
			telemetry.RecordError(span, err)
			return nil, false, err
		}
		if err := s.ensureHasRole(ctx, user.ID); err != nil {
			telemetry.RecordError(span, err)
			return nil, false, err
		}
		return user, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		telemetry.RecordError(span, err)
		return nil, false, fmt.Errorf("get user: %w", err)
	}

	email := strings.TrimSpace(principal.Email)
	if email == "" {
		return nil, false, ErrMissingEmail
	}
	first, last, ok := splitName(principal)
	if !ok {
		return nil, false, ErrMissingName
	}

	now := s.now().UTC()
	user = &models.User{
		ID:             principal.Subject,
		Email:          email,
		FirstName:      first,
		LastName:       last,
		EmailConfirmed: true,
		LastLoginAt:    &now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Lost a first-login race; the winner's row is authoritative.
			winner, getErr := s.users.GetByID(ctx, principal.Subject)
			if getErr == nil {
				return winner, false, nil
			}
		}
		telemetry.RecordError(span, err)
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	span.SetAttributes(attribute.String(telemetry.AttrUserEmail, user.Email))

	log := s.logger.WithFields(logrus.Fields{"user_id": user.ID, "email": user.Email})
	if err := s.assignDefaultRole(ctx, user.ID); err != nil {
		telemetry.RecordError(span, err)
		return nil, false, err
	}
	s.metrics.RecordUserCreated(ctx)
	log.WithField("role", s.defaultRole).Info("user provisioned")

	s.pushPermissions(ctx, log, user.ID)
	return user, true, nil
}

func (s *service) touch(ctx context.Context, user *models.User) (*models.User, error) {
	now := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("update last login: %w", err)
	}
	user.LastLoginAt = &now
	return user, nil
}

// ensureHasRole gives a roleless user the default role. It completes a provisioning
// whose role assignment failed after the user row was written.
func (s *service) ensureHasRole(ctx context.Context, userID string) error {
	roles, err := s.userRoles.ListRoles(ctx, userID)
	if err != nil {
		return fmt.Errorf("list user roles: %w", err)
	}
	if len(roles) > 0 {
		return nil
	}
	if err := s.assignDefaultRole(ctx, userID); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{"user_id": userID, "role": s.defaultRole}).
		Info("restored default role for user without roles")
	return nil
}

func (s *service) assignDefaultRole(ctx context.Context, userID string) error {
	role, err := s.roles.GetByName(ctx, s.defaultRole)
	if errors.Is(err, repository.ErrNotFound) {
		role = &models.Role{Name: s.defaultRole}
		if err = s.roles.Create(ctx, role); errors.Is(err, repository.ErrConflict) {
			role, err = s.roles.GetByName(ctx, s.defaultRole)
		}
	}
	if err != nil {
		return fmt.Errorf("resolve default role %s: %w", s.defaultRole, err)
	}
	if err := s.userRoles.Add(ctx, userID, role.ID); err != nil {
		return fmt.Errorf("assign default role: %w", err)
	}
	if s.permissions != nil {
		s.permissions.InvalidateUser(userID)
	}
	return nil
}

// pushPermissions mirrors the user's permission set as client roles. Failures are logged.
func (s *service) pushPermissions(ctx context.Context, log *logrus.Entry, userID string) {
	if s.mirror == nil || s.permissions == nil {
		return
	}
	perms, err := s.permissions.GetUserPermissions(ctx, userID)
	if err != nil {
		log.WithError(err).Warn("could not resolve permissions for mirror push")
		return
	}
	for _, p := range perms {
		if err := s.mirror.AssignRoleToUser(ctx, userID, p); err != nil {
			s.metrics.RecordMirrorFailure(ctx, "AssignRoleToUser")
			log.WithError(err).WithFields(logrus.Fields{"permission": p, "op": "AssignRoleToUser"}).
				Warn("mirror push failed")
		}
	}
}

// splitName prefers given/family name claims and falls back to splitting name on its
// first space.
func splitName(p auth.Principal) (first, last string, ok bool) {
	first, last = strings.TrimSpace(p.GivenName), strings.TrimSpace(p.FamilyName)
	if first != "" || last != "" {
		return first, last, true
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return "", "", false
	}
	first, last, _ = strings.Cut(name, " ")
	return first, strings.TrimSpace(last), true
}
