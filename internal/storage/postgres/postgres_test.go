//go:build integration

package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/invoicegen/platform/internal/database"
	"github.com/invoicegen/platform/internal/logger"
)

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping postgres integration tests")
	}

	db, err := database.Connect(context.Background(), database.Options{
		Driver: database.DriverPGX,
		DSN:    dsn,
		Logger: logger.Discard(),
	})
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}

	migrator := database.NewSQLMigrator(db.DB.DB, database.MigrationsFS(), database.MigrationsDir, logger.Discard())
	if err := db.RunMigrations(context.Background(), migrator); err != nil {
		db.Close()
		t.Fatalf("migrate: %v", err)
	}

	cleanupTables(t, db.DB)

	return db.DB
}

func cleanupTables(t *testing.T, db *sqlx.DB) {
	t.Helper()
	stmts := []string{
		"TRUNCATE invoice_items CASCADE",
		"TRUNCATE invoices CASCADE",
		"TRUNCATE users CASCADE",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("cleanup %s: %v", stmt, err)
		}
	}
}
