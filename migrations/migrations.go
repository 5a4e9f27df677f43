// Package migrations carries the schema as embedded goose SQL. The storage
// layer applies pending migrations on open, so a fresh database file is
// usable without a separate migrate step.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

// FS holds the numbered migration files.
//
//go:embed *.sql
var FS embed.FS

// Run brings the schema up to the latest version.
func Run(db *sql.DB) error {
	goose.SetBaseFS(FS)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
