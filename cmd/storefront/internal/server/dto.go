package server

import (
	"time"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/db/models"
)

type userResponse struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	FullName       string     `json:"full_name"`
	EmailConfirmed bool       `json:"email_confirmed"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
	Roles          []string   `json:"roles"`
	Permissions    []string   `json:"permissions"`
}

func newUserResponse(u *models.User, roles, permissions []string) userResponse {
	if roles == nil {
		roles = []string{}
	}
	if permissions == nil {
		permissions = []string{}
	}
	return userResponse{
		ID:             u.ID,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		FullName:       u.FullName(),
		EmailConfirmed: u.EmailConfirmed,
		LastLoginAt:    u.LastLoginAt,
		Roles:          roles,
		Permissions:    permissions,
	}
}

type roleResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func newRoleResponse(r *models.Role) roleResponse {
	return roleResponse{ID: r.ID, Name: r.Name, Description: r.Description, CreatedAt: r.CreatedAt}
}

type permissionResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Module      string `json:"module"`
	Action      string `json:"action"`
}

type createRoleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type grantPermissionRequest struct {
	Permission string `json:"permission"`
}

type grantPermissionsRequest struct {
	Permissions []string `json:"permissions"`
}

type permissionListResponse struct {
	Permissions []string `json:"permissions"`
}

type rolePermissionsResponse struct {
	RoleID      string   `json:"role_id"`
	Permissions []string `json:"permissions"`
}

type userPermissionsResponse struct {
	UserID      string   `json:"user_id"`
	Permissions []string `json:"permissions"`
}

type grantResponse struct {
	Granted int `json:"granted"`
}
