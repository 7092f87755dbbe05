// Package dbtest opens throwaway SQLite stores with the production schema.
package dbtest

import (
	"path/filepath"
	"testing"

	"cabinetkey/db"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// New returns an in-memory database with migrations applied. A single
// connection is used so every goroutine sees the same memory database;
// SQLite then serializes whole transactions.
func New(t *testing.T) *gorm.DB {
	t.Helper()
	conn := Open(t, ":memory:")
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("test database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	migrate(t, conn)
	return conn
}

// NewFile returns a WAL-mode database file under t.TempDir() with migrations
// applied, and its DSN. It keeps several connections, so transactions from
// this handle and from a second one opened with Open really overlap.
func NewFile(t *testing.T) (*gorm.DB, string) {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "cabinet.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	conn := Open(t, dsn)
	migrate(t, conn)
	return conn, dsn
}

// Open opens dsn without migrating; the handle is closed at test cleanup.
func Open(t *testing.T, dsn string) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("test database handle: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

func migrate(t *testing.T, conn *gorm.DB) {
	t.Helper()
	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
}

// NewRepo is New wrapped in a Repo.
func NewRepo(t *testing.T) *db.Repo {
	t.Helper()
	return db.NewRepo(New(t))
}
