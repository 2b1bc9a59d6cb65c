package repository

import (
	"context"
	"time"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/db/models"
)

// PermissionRepository persists catalog permissions.
type PermissionRepository interface {
	// CreateIfAbsent inserts the permission unless its name exists and reports whether it did.
	CreateIfAbsent(ctx context.Context, permission *models.Permission) (bool, error)
	GetByName(ctx context.Context, name string) (*models.Permission, error)
	GetByNames(ctx context.Context, names []string) ([]models.Permission, error)
	List(ctx context.Context) ([]models.Permission, error)
}

// RoleRepository persists roles. Name lookups are case-insensitive.
type RoleRepository interface {
	Create(ctx context.Context, role *models.Role) error
	GetByID(ctx context.Context, id string) (*models.Role, error)
	GetByName(ctx context.Context, name string) (*models.Role, error)
	List(ctx context.Context) ([]models.Role, error)
	Delete(ctx context.Context, id string) error
}

// RolePermissionRepository persists role grants.
type RolePermissionRepository interface {
	// ListActiveGrants returns every active grant joined with role and permission names.
	ListActiveGrants(ctx context.Context) ([]models.RoleGrant, error)
	// ListActivePermissions returns the permissions actively granted to a role.
	ListActivePermissions(ctx context.Context, roleID string) ([]models.Permission, error)
	// Activate grants each permission to the role in one transaction, reactivating old rows.
	Activate(ctx context.Context, roleID string, permissionIDs []string) error
	// Deactivate revokes a grant and reports whether an active grant was changed.
	Deactivate(ctx context.Context, roleID, permissionID string) (bool, error)
}

// UserRepository persists provisioned users.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// UserRoleRepository persists user to role assignments.
type UserRoleRepository interface {
	// Add assigns the role; an existing assignment is left untouched.
	Add(ctx context.Context, userID, roleID string) error
	Remove(ctx context.Context, userID, roleID string) error
	ListRoles(ctx context.Context, userID string) ([]models.Role, error)
}

// Repositories bundles the bun-backed implementations.
type Repositories struct {
	Permissions     PermissionRepository
	Roles           RoleRepository
	RolePermissions RolePermissionRepository
	Users           UserRepository
	UserRoles       UserRoleRepository
}
