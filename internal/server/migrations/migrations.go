// Package migrations embeds the goose SQL migrations for the server schema.
// The SQL is kept portable so the same files apply to Postgres and SQLite.
package migrations

import (
	"context"
	"database/sql"
	"embed"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var Migrations embed.FS

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Up applies every pending migration to db.
func Up(ctx context.Context, db *sql.DB, dialect dbx.Dialect) error {
	goose.SetBaseFS(Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect.GooseDialect()); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}
