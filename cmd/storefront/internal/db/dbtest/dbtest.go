// Package dbtest opens migrated databases for package tests.
//
// By default every call gets a fresh in-memory SQLite database. With
// TEST_INTEGRATION set, a PostgreSQL container is started instead.
package dbtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"

	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/db/bunx"
	"github.com/emrepehlivan-git/ECommerce-sub000/cmd/storefront/internal/migrations"
)

// New returns a migrated database that is closed when the test ends.
func New(t testing.TB) *bun.DB {
	t.Helper()

	ctx := context.Background()
	dsn := ":memory:"
	if os.Getenv("TEST_INTEGRATION") != "" {
		dsn = startPostgres(t)
	}

	db, err := bunx.NewDB(ctx, dsn, 5)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := migrations.Up(ctx, db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

func startPostgres(t testing.TB) string {
	t.Helper()

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("storefront_test"),
		postgres.WithUsername("storefront"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres connection string: %v", err)
	}
	return dsn
}
