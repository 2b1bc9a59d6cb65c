// Package rbac owns permission seeding, role grants and permission checks.
package rbac

import (
	"context"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/db/models"
)

// SyncPermissionsResult reports what SyncPermissions changed.
type SyncPermissionsResult struct {
	Seeded             int `json:"seeded"`
	GrantedToSuperRole int `json:"granted_to_super_role"`
}

// Service is the permission service. Writes go to storage and rebuild the grant
// snapshot; checks read the snapshot.
type Service interface {
	// SeedPermissions stores every catalog permission not yet present and returns
	// how many were inserted. New permissions are pushed to the mirror.
	SeedPermissions(ctx context.Context) (int, error)
	// EnsureSuperRoleHasAllPermissions grants every stored permission to the super role.
	EnsureSuperRoleHasAllPermissions(ctx context.Context) (int, error)
	// SyncPermissions seeds, then completes the super role.
	SyncPermissions(ctx context.Context) (SyncPermissionsResult, error)

	AssignPermissionsToRole(ctx context.Context, roleName string, permissionNames []string) (int, error)
	AssignPermissionToRole(ctx context.Context, roleID, permissionName string) error
	RemovePermissionFromRole(ctx context.Context, roleID, permissionName string) error

	HasPermission(ctx context.Context, userID, permissionName string) (bool, error)
	GetUserPermissions(ctx context.Context, userID string) ([]string, error)

	CreateRole(ctx context.Context, name, description string) (*models.Role, error)
	GetRole(ctx context.Context, roleID string) (*models.Role, error)
	ListRoles(ctx context.Context) ([]models.Role, error)
	ListPermissions(ctx context.Context) ([]models.Permission, error)
	GetRolePermissions(ctx context.Context, roleID string) ([]string, error)

	// UserRoleNames returns the user's role names through the per-user cache.
	UserRoleNames(ctx context.Context, userID string) ([]string, error)
	// InvalidateUser drops the cached role names of a user.
	InvalidateUser(userID string)
	// RefreshGrantSnapshot reloads grants changed outside this process.
	RefreshGrantSnapshot(ctx context.Context) error
}
