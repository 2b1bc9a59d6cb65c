package repository

import (
	"context"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/db/models"
)

// BunUserRepository implements UserRepository using Bun ORM
type BunUserRepository struct {
	db *bun.DB
}

// NewBunUserRepository creates a new Bun-based user repository
func NewBunUserRepository(db *bun.DB) UserRepository {
	return &BunUserRepository{db: db}
}

// Create inserts a user. The ID must already hold the identity provider subject.
func (r *BunUserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	user.Email = strings.TrimSpace(user.Email)

	if _, err := r.db.NewInsert().Model(user).Exec(ctx); err != nil {
		return wrap("create user", err)
	}
	return nil
}

// GetByID retrieves a user by their ID
func (r *BunUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("user", id)
		}
		return nil, wrap("get user by ID", err)
	}
	return user, nil
}

// GetByEmail retrieves a user by their email
func (r *BunUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user := new(models.User)
	err := r.db.NewSelect().
		Model(user).
		Where("email = ?", strings.TrimSpace(email)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("user", email)
		}
		return nil, wrap("get user by email", err)
	}
	return user, nil
}

// UpdateLastLogin stamps the user's last login time
func (r *BunUserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	at = at.UTC()
	res, err := r.db.NewUpdate().
		Model((*models.User)(nil)).
		Set("last_login_at = ?", at).
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return wrap("update last login", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap("get rows affected", err)
	}
	if n == 0 {
		return notFound("user", id)
	}
	return nil
}
