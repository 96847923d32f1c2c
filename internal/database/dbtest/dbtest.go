// Package dbtest opens throwaway SQLite databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"

	"github.com/jerin288/jdt-tool-web/internal/database"
)

// New returns a migrated database in a temp directory. It is closed when
// the test ends.
func New(tb testing.TB) *database.DB {
	tb.Helper()

	url := "sqlite://" + filepath.Join(tb.TempDir(), "test.db")
	db, err := database.New(url, "")
	if err != nil {
		tb.Fatalf("open test database: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })

	if err := db.RunMigrations(); err != nil {
		tb.Fatalf("migrate test database: %v", err)
	}
	return db
}
