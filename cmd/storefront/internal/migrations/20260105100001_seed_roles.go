package migrations

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/db/bunx"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20260105100001, down_20260105100001)
}

var seededRoles = []struct {
	name        string
	description string
}{
	{name: "Admin", description: "Full access to every storefront permission"},
	{name: "Customer", description: "Baseline role assigned to every provisioned user"},
}

// up_20260105100001 seeds the default super and baseline roles. Permissions are seeded
// at runtime from the catalog, not here.
func up_20260105100001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] seeding default roles...")
	now := time.Now().UTC()
	for _, seed := range seededRoles {
		role := &models.Role{
			ID:             bunx.NewUUIDv7(),
			Name:           seed.name,
			NormalizedName: models.NormalizeRoleName(seed.name),
			Description:    seed.description,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		_, err := db.NewInsert().
			Model(role).
			On("CONFLICT (normalized_name) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to seed role %s: %w", seed.name, err)
		}
	}
	fmt.Println(" OK")
	return nil
}

func down_20260105100001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] removing default roles...")
	names := make([]string, 0, len(seededRoles))
	for _, seed := range seededRoles {
		names = append(names, models.NormalizeRoleName(seed.name))
	}
	_, err := db.NewDelete().
		Model((*models.Role)(nil)).
		Where("normalized_name IN (?)", bun.In(names)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to remove default roles: %w", err)
	}
	fmt.Println(" OK")
	return nil
}
