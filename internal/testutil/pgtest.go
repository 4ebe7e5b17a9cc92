// README: Helpers for DB-backed tests (skip unless MOTO_TEST_DSN is set).
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"motoshop/internal/infra"
)

// Pool connects to MOTO_TEST_DSN, applies migrations and truncates every table.
func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("MOTO_TEST_DSN")
	if dsn == "" {
		t.Skip("MOTO_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := infra.Migrate(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}

	if _, err := db.Exec(ctx, `TRUNCATE TABLE
		task_timeline, task_assignments, tasks, quotes,
		order_state_events, service_orders, bookings, bays`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
	return db
}
