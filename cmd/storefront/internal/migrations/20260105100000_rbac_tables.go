package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20260105100000, down_20260105100000)
}

// up_20260105100000 creates the permission, role, grant, user and assignment tables.
func up_20260105100000(ctx context.Context, db *bun.DB) error {
	tables := []struct {
		name  string
		model any
		fks   []string
	}{
		{name: "permissions", model: (*models.Permission)(nil)},
		{name: "roles", model: (*models.Role)(nil)},
		{
			name:  "role_permissions",
			model: (*models.RolePermission)(nil),
			fks: []string{
				`("role_id") REFERENCES "roles" ("id") ON DELETE CASCADE`,
				`("permission_id") REFERENCES "permissions" ("id") ON DELETE CASCADE`,
			},
		},
		{name: "users", model: (*models.User)(nil)},
		{
			name:  "user_roles",
			model: (*models.UserRole)(nil),
			fks: []string{
				`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`,
				`("role_id") REFERENCES "roles" ("id") ON DELETE CASCADE`,
			},
		},
	}

	for _, table := range tables {
		fmt.Printf(" [up] creating %s table...", table.name)
		q := db.NewCreateTable().Model(table.model).IfNotExists()
		for _, fk := range table.fks {
			q = q.ForeignKey(fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
		fmt.Println(" OK")
	}

	indexes := []struct {
		model  any
		name   string
		column string
	}{
		{model: (*models.RolePermission)(nil), name: "idx_role_permissions_permission_id", column: "permission_id"},
		{model: (*models.UserRole)(nil), name: "idx_user_roles_role_id", column: "role_id"},
	}
	for _, idx := range indexes {
		_, err := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.column).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}

	return nil
}

func down_20260105100000(ctx context.Context, db *bun.DB) error {
	for _, table := range []string{"user_roles", "users", "role_permissions", "roles", "permissions"} {
		fmt.Printf(" [down] dropping %s table...", table)
		q := db.NewDropTable().Table(table).IfExists()
		if IsPostgreSQL(db) {
			q = q.Cascade()
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop %s table: %w", table, err)
		}
		fmt.Println(" OK")
	}
	return nil
}
