package repository

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/db/bunx"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/db/models"
)

// BunUserRoleRepository implements UserRoleRepository using Bun ORM
type BunUserRoleRepository struct {
	db *bun.DB
}

// NewBunUserRoleRepository creates a new Bun-based user role repository
func NewBunUserRoleRepository(db *bun.DB) UserRoleRepository {
	return &BunUserRoleRepository{db: db}
}

func (r *BunUserRoleRepository) Add(ctx context.Context, userID, roleID string) error {
	assignment := &models.UserRole{
		ID:         bunx.NewUUIDv7(),
		UserID:     userID,
		RoleID:     roleID,
		AssignedAt: time.Now().UTC(),
	}
	_, err := r.db.NewInsert().
		Model(assignment).
		On("CONFLICT (user_id, role_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return wrap("assign role", err)
	}
	return nil
}

// Remove deletes the assignment. Removing an absent assignment is not an error.
func (r *BunUserRoleRepository) Remove(ctx context.Context, userID, roleID string) error {
	_, err := r.db.NewDelete().
		Model((*models.UserRole)(nil)).
		Where("user_id = ?", userID).
		Where("role_id = ?", roleID).
		Exec(ctx)
	if err != nil {
		return wrap("remove role", err)
	}
	return nil
}

func (r *BunUserRoleRepository) ListRoles(ctx context.Context, userID string) ([]models.Role, error) {
	var roles []models.Role
	err := r.db.NewSelect().
		Model(&roles).
		Join("JOIN user_roles AS ur ON ur.role_id = r.id").
		Where("ur.user_id = ?", userID).
		Order("r.normalized_name ASC").
		Scan(ctx)
	if err != nil {
		return nil, wrap("list user roles", err)
	}
	return roles, nil
}
