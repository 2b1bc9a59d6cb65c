package repository

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/db/bunx"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/db/models"
)

// BunPermissionRepository implements PermissionRepository using Bun ORM
type BunPermissionRepository struct {
	db *bun.DB
}

// NewBunPermissionRepository creates a new Bun-based permission repository
func NewBunPermissionRepository(db *bun.DB) PermissionRepository {
	return &BunPermissionRepository{db: db}
}

func (r *BunPermissionRepository) CreateIfAbsent(ctx context.Context, permission *models.Permission) (bool, error) {
	if permission.ID == "" {
		permission.ID = bunx.NewUUIDv7()
	}
	if permission.CreatedAt.IsZero() {
		permission.CreatedAt = time.Now().UTC()
	}

	res, err := r.db.NewInsert().
		Model(permission).
		On("CONFLICT (name) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, wrap("create permission", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, wrap("create permission rows affected", err)
	}
	return n > 0, nil
}

func (r *BunPermissionRepository) GetByName(ctx context.Context, name string) (*models.Permission, error) {
	permission := new(models.Permission)
	err := r.db.NewSelect().
		Model(permission).
		Where("name = ?", name).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("permission", name)
		}
		return nil, wrap("get permission by name", err)
	}
	return permission, nil
}

func (r *BunPermissionRepository) GetByNames(ctx context.Context, names []string) ([]models.Permission, error) {
	var permissions []models.Permission
	if len(names) == 0 {
		return permissions, nil
	}
	err := r.db.NewSelect().
		Model(&permissions).
		Where("name IN (?)", bun.In(names)).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, wrap("get permissions by name", err)
	}
	return permissions, nil
}

func (r *BunPermissionRepository) List(ctx context.Context) ([]models.Permission, error) {
	var permissions []models.Permission
	err := r.db.NewSelect().
		Model(&permissions).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, wrap("list permissions", err)
	}
	return permissions, nil
}
