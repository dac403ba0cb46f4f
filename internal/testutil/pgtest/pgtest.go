// Package pgtest prepares a migrated, empty Postgres database for
// integration tests.
package pgtest

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/liquifund/liquidity/internal/db"
)

// tables lists every table truncated between tests.
var tables = []string{
	"audit_log",
	"idempotency_keys",
	"user_sessions",
	"support_messages",
	"kyc_profiles",
	"withdrawals",
	"referrals",
	"payments",
	"rentals",
	"wallet_entries",
	"wallets",
	"users",
}

// Setup connects to DATABASE_URL, applies migrations and truncates every
// table. Tests are skipped when DATABASE_URL is not set.
func Setup(t *testing.T) *pgxpool.Pool {
	t.Helper()

	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("DATABASE_URL not set; skipping integration test")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, connString)
	if err != nil {
		t.Fatalf("connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := db.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	stmt := "TRUNCATE TABLE " + strings.Join(tables, ", ") + " CASCADE"
	if _, err := pool.Exec(ctx, stmt); err != nil {
		t.Fatalf("truncate test database: %v", err)
	}
	if _, err := pool.Exec(ctx, `UPDATE system_settings SET maintenance_mode = FALSE, email_notifications = TRUE WHERE id = 1`); err != nil {
		t.Fatalf("reset system settings: %v", err)
	}
	return pool
}
