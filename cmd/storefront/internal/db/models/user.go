package models

import (
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// User is a locally provisioned identity. ID is the identity provider subject.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID             string     `bun:"id,pk"`
	Email          string     `bun:"email,notnull,unique"`
	FirstName      string     `bun:"first_name,notnull"`
	LastName       string     `bun:"last_name,notnull"`
	EmailConfirmed bool       `bun:"email_confirmed,notnull"`
	CreatedAt      time.Time  `bun:"created_at,notnull"`
	UpdatedAt      time.Time  `bun:"updated_at,notnull"`
	LastLoginAt    *time.Time `bun:"last_login_at"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// UserRole assigns a role to a user. At most one row exists per pair.
type UserRole struct {
	bun.BaseModel `bun:"table:user_roles,alias:ur"`

	ID         string    `bun:"id,pk"`
	UserID     string    `bun:"user_id,notnull,unique:user_role_pair"`
	RoleID     string    `bun:"role_id,notnull,unique:user_role_pair"`
	AssignedAt time.Time `bun:"assigned_at,notnull"`

	Role *Role `bun:"rel:belongs-to,join:role_id=id"`
}
