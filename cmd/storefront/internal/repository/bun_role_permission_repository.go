package repository

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/db/bunx"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/db/models"
)

// BunRolePermissionRepository implements RolePermissionRepository using Bun ORM
type BunRolePermissionRepository struct {
	db *bun.DB
}

// NewBunRolePermissionRepository creates a new Bun-based grant repository
func NewBunRolePermissionRepository(db *bun.DB) RolePermissionRepository {
	return &BunRolePermissionRepository{db: db}
}

func (r *BunRolePermissionRepository) ListActiveGrants(ctx context.Context) ([]models.RoleGrant, error) {
	var grants []models.RoleGrant
	err := r.db.NewSelect().
		TableExpr("role_permissions AS rp").
		ColumnExpr("rp.role_id AS role_id").
		ColumnExpr("r.name AS role_name").
		ColumnExpr("r.normalized_name AS normalized_name").
		ColumnExpr("rp.permission_id AS permission_id").
		ColumnExpr("p.name AS permission_name").
		Join("JOIN roles AS r ON r.id = rp.role_id").
		Join("JOIN permissions AS p ON p.id = rp.permission_id").
		Where("rp.active = ?", true).
		OrderExpr("r.normalized_name ASC, p.name ASC").
		Scan(ctx, &grants)
	if err != nil {
		return nil, wrap("list active grants", err)
	}
	return grants, nil
}

func (r *BunRolePermissionRepository) ListActivePermissions(ctx context.Context, roleID string) ([]models.Permission, error) {
	var permissions []models.Permission
	err := r.db.NewSelect().
		Model(&permissions).
		Join("JOIN role_permissions AS rp ON rp.permission_id = p.id").
		Where("rp.role_id = ?", roleID).
		Where("rp.active = ?", true).
		Order("p.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, wrap("list role permissions", err)
	}
	return permissions, nil
}

// Activate upserts an active grant per permission. Existing rows, active or not, are reactivated.
func (r *BunRolePermissionRepository) Activate(ctx context.Context, roleID string, permissionIDs []string) error {
	if len(permissionIDs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, permissionID := range permissionIDs {
			grant := &models.RolePermission{
				ID:           bunx.NewUUIDv7(),
				RoleID:       roleID,
				PermissionID: permissionID,
				Active:       true,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			_, err := tx.NewInsert().
				Model(grant).
				On("CONFLICT (role_id, permission_id) DO UPDATE").
				Set("active = EXCLUDED.active").
				Set("updated_at = EXCLUDED.updated_at").
				Exec(ctx)
			if err != nil {
				return wrap("activate grant", err)
			}
		}
		return nil
	})
}

func (r *BunRolePermissionRepository) Deactivate(ctx context.Context, roleID, permissionID string) (bool, error) {
	res, err := r.db.NewUpdate().
		Model((*models.RolePermission)(nil)).
		Set("active = ?", false).
		Set("updated_at = ?", time.Now().UTC()).
		Where("role_id = ?", roleID).
		Where("permission_id = ?", permissionID).
		Where("active = ?", true).
		Exec(ctx)
	if err != nil {
		return false, wrap("deactivate grant", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap("get rows affected", err)
	}
	return n > 0, nil
}
