// Package testutil provides database, bus and unit-of-work fixtures for
// tests. Storage tests run on SQLite by default and on PostgreSQL when
// TEST_DATABASE_URL is set.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"craftbot.io/craftbot/internal/infrastructure"
	"craftbot.io/craftbot/internal/repository"
)

// OpenSQLite opens a migrated SQLite database under t.TempDir(). The pool
// holds a single connection, so a test must not query the *sql.DB while a
// unit of work holds an open transaction.
func OpenSQLite(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", infrastructure.SQLiteDSN(filepath.Join(t.TempDir(), "craftbot.db")))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if err := repository.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db
}

// OpenDB opens PostgreSQL when a DSN is configured and SQLite otherwise.
func OpenDB(t *testing.T, prefix string) *sql.DB {
	t.Helper()
	if PostgresDSN() != "" {
		return OpenPostgres(t, prefix)
	}
	return OpenSQLite(t)
}
