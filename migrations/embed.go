// Package migrations carries the goose SQL migrations so binaries and tests do not depend on the working directory.
package migrations

import (
	"database/sql"
	"embed"

	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var FS embed.FS

const Dialect = "postgres"

// Setup points goose at the embedded files.
func Setup() error {
	goose.SetBaseFS(FS)
	return goose.SetDialect(Dialect)
}

// Up applies every pending migration.
func Up(db *sql.DB) error {
	if err := Setup(); err != nil {
		return err
	}
	return goose.Up(db, ".")
}
