package repository

import (
	"context"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/db/bunx"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/db/models"
)

// BunRoleRepository implements RoleRepository using Bun ORM
type BunRoleRepository struct {
	db *bun.DB
}

// NewBunRoleRepository creates a new Bun-based role repository
func NewBunRoleRepository(db *bun.DB) RoleRepository {
	return &BunRoleRepository{db: db}
}

// Create inserts a new role. A duplicate normalized name yields ErrConflict.
func (r *BunRoleRepository) Create(ctx context.Context, role *models.Role) error {
	if role.ID == "" {
		role.ID = bunx.NewUUIDv7()
	}
	role.Name = strings.TrimSpace(role.Name)
	role.NormalizedName = models.NormalizeRoleName(role.Name)
	now := time.Now().UTC()
	if role.CreatedAt.IsZero() {
		role.CreatedAt = now
	}
	role.UpdatedAt = now

	if _, err := r.db.NewInsert().Model(role).Exec(ctx); err != nil {
		return wrap("create role", err)
	}
	return nil
}

// GetByID retrieves a role by ID
func (r *BunRoleRepository) GetByID(ctx context.Context, id string) (*models.Role, error) {
	role := new(models.Role)
	err := r.db.NewSelect().
		Model(role).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("role", id)
		}
		return nil, wrap("get role", err)
	}
	return role, nil
}

// GetByName retrieves a role by name, ignoring case
func (r *BunRoleRepository) GetByName(ctx context.Context, name string) (*models.Role, error) {
	role := new(models.Role)
	err := r.db.NewSelect().
		Model(role).
		Where("normalized_name = ?", models.NormalizeRoleName(name)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("role", name)
		}
		return nil, wrap("get role by name", err)
	}
	return role, nil
}

// List returns every role ordered by name
func (r *BunRoleRepository) List(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	err := r.db.NewSelect().
		Model(&roles).
		Order("normalized_name ASC").
		Scan(ctx)
	if err != nil {
		return nil, wrap("list roles", err)
	}
	return roles, nil
}

// Delete deletes a role by ID. Grants and assignments cascade.
func (r *BunRoleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.NewDelete().
		Model((*models.Role)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return wrap("delete role", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return wrap("get rows affected", err)
	}
	if rowsAffected == 0 {
		return notFound("role", id)
	}
	return nil
}
