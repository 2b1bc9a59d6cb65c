package rbac

import "errors"

var (
	// ErrRoleNotFound is returned when a role id or name does not resolve.
	ErrRoleNotFound = errors.New("role not found")
	// ErrPermissionNotFound is returned when a permission name is not stored.
	ErrPermissionNotFound = errors.New("permission not found")
	// ErrInvalidRoleName is returned for role names outside 2 to 100 characters.
	ErrInvalidRoleName = errors.New("role name must be between 2 and 100 characters")
	// ErrRoleExists is returned when a role with the same normalized name exists.
	ErrRoleExists = errors.New("role already exists")
)
