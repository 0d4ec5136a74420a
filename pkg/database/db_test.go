package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := Open(Config{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "nested", "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := tempDB(t)
	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))

	var tables []string
	require.NoError(t, db.Select(&tables, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`))
	assert.Equal(t, []string{"authors", "book_authors", "book_genres", "books", "borrow_requests", "genres", "users"}, tables)
}

func TestWithTxRollsBack(t *testing.T) {
	db := tempDB(t)
	require.NoError(t, Migrate(db))
	ctx := context.Background()

	boom := errors.New("boom")
	err := WithTx(ctx, db, func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(`INSERT INTO genres (name) VALUES ('Poetry')`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM genres`))
	assert.Zero(t, n)

	require.NoError(t, WithTx(ctx, db, func(tx *sqlx.Tx) error {
		_, err := tx.Exec(`INSERT INTO genres (name) VALUES ('Poetry')`)
		return err
	}))
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM genres`))
	assert.Equal(t, 1, n)
}

func TestForUpdate(t *testing.T) {
	assert.Equal(t, "", ForUpdate(tempDB(t)))
	assert.Equal(t, " FOR UPDATE", ForUpdate(driverName(DriverPostgres)))
}

type driverName string

func (d driverName) DriverName() string { return string(d) }

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "mysql"})
	assert.Error(t, err)
}
