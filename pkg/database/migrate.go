package database

import (
	"embed"
	"fmt"

	"github.com/jmoiron/sqlx"
)

//go:embed schema/*.sql
var schemaFS embed.FS

func Migrate(db *sqlx.DB) error {
	name := "schema/sqlite.sql"
	if db.DriverName() == DriverPostgres {
		name = "schema/postgres.sql"
	}

	b, err := schemaFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}

	if _, err := db.Exec(string(b)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
