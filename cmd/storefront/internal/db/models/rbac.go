package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/uptrace/bun"
)

// Permission is a named capability ("Products.Create"). Rows are append-only.
type Permission struct {
	bun.BaseModel `bun:"table:permissions,alias:p"`

	ID          string    `bun:"id,pk"`
	Name        string    `bun:"name,notnull,unique"`
	Description string    `bun:"description"`
	Module      string    `bun:"module,notnull"`
	Action      string    `bun:"action,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
}

// Role is a named bundle of permissions. NormalizedName backs case-insensitive lookups.
type Role struct {
	bun.BaseModel `bun:"table:roles,alias:r"`

	ID             string    `bun:"id,pk"`
	Name           string    `bun:"name,notnull"`
	NormalizedName string    `bun:"normalized_name,notnull,unique"`
	Description    string    `bun:"description"`
	CreatedAt      time.Time `bun:"created_at,notnull"`
	UpdatedAt      time.Time `bun:"updated_at,notnull"`
}

// Role names are 2 to 100 characters once trimmed.
const (
	MinRoleNameLength = 2
	MaxRoleNameLength = 100
)

// ValidRoleName reports whether the trimmed name fits the role name length rule.
func ValidRoleName(name string) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	return n >= MinRoleNameLength && n <= MaxRoleNameLength
}

// NormalizeRoleName is the lookup key for a role name.
func NormalizeRoleName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// RolePermission grants a permission to a role. Revocation flips Active; the row stays.
type RolePermission struct {
	bun.BaseModel `bun:"table:role_permissions,alias:rp"`

	ID           string    `bun:"id,pk"`
	RoleID       string    `bun:"role_id,notnull,unique:role_permission_pair"`
	PermissionID string    `bun:"permission_id,notnull,unique:role_permission_pair"`
	Active       bool      `bun:"active,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`

	Role       *Role       `bun:"rel:belongs-to,join:role_id=id"`
	Permission *Permission `bun:"rel:belongs-to,join:permission_id=id"`
}

// RoleGrant is one active (role, permission) pair, flattened for snapshot loading.
type RoleGrant struct {
	RoleID         string `bun:"role_id"`
	RoleName       string `bun:"role_name"`
	NormalizedName string `bun:"normalized_name"`
	PermissionID   string `bun:"permission_id"`
	PermissionName string `bun:"permission_name"`
}
