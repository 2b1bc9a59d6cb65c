// Package rolesync reconciles a user's local roles with the roles carried in their token.
package rolesync

import (
	"context"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/auth"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/db/models"
)

// Result summarizes one reconciliation pass.
type Result struct {
	Added        int      `json:"added"`
	Removed      int      `json:"removed"`
	Failed       int      `json:"failed"`
	AddedRoles   []string `json:"added_roles"`
	RemovedRoles []string `json:"removed_roles"`
}

// Service reconciles local role assignments against token claims.
type Service interface {
	// SyncUserRolesFromToken makes the user's local roles match the token's role claims,
	// minus ignored names, without ever removing a protected role.
	//
	// Per-role failures are logged and counted in Result.Failed; they do not abort the pass.
	// An error is returned only when the claims are malformed or the current roles cannot
	// be read.
	SyncUserRolesFromToken(ctx context.Context, user *models.User, principal auth.Principal) (Result, error)
}

// CacheInvalidator drops cached role data for a user after its assignments change.
type CacheInvalidator interface {
	InvalidateUser(userID string)
}
