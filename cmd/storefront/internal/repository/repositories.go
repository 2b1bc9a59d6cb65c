package repository

import "github.com/uptrace/bun"

// NewBunRepositories wires every bun repository against one database handle.
func NewBunRepositories(db *bun.DB) *Repositories {
	return &Repositories{
		Permissions:     NewBunPermissionRepository(db),
		Roles:           NewBunRoleRepository(db),
		RolePermissions: NewBunRolePermissionRepository(db),
		Users:           NewBunUserRepository(db),
		UserRoles:       NewBunUserRoleRepository(db),
	}
}
