// Package testutil builds throwaway sqlite databases for package tests.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"bookhub/pkg/database"
	"bookhub/pkg/models"
)

func NewDB(t *testing.T) *sqlx.DB {
	t.Helper()
	cfg := database.Config{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "test.db"),
	}
	db, err := database.Open(cfg)
	require.NoError(t, err, "open db")
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(db), "migrate")
	return db
}

// SeedUser inserts a user with an unusable password hash.
func SeedUser(t *testing.T, db *sqlx.DB, id, username string, staff, superuser bool) {
	t.Helper()
	_, err := db.Exec(db.Rebind(`
		INSERT INTO users (id, username, password_hash, is_staff, is_superuser, created_at)
		VALUES (?, ?, '!', ?, ?, ?)
	`), id, username, staff, superuser, time.Now().UTC())
	require.NoError(t, err, "seed user")
}

func SeedBook(t *testing.T, db *sqlx.DB, title, isbn string, available bool) int64 {
	t.Helper()
	var id int64
	err := db.QueryRowx(db.Rebind(`
		INSERT INTO books (title, summary, isbn, available, published_date, publisher)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`), title, "A book about "+title+".", isbn, available,
		models.NewDate(time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)), "Test Press").Scan(&id)
	require.NoError(t, err, "seed book")
	return id
}

func BookAvailable(t *testing.T, db *sqlx.DB, id int64) bool {
	t.Helper()
	var available bool
	require.NoError(t, db.Get(&available, db.Rebind(`SELECT available FROM books WHERE id = ?`), id))
	return available
}

func CountRows(t *testing.T, db *sqlx.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, db.Rebind(query), args...))
	return n
}
