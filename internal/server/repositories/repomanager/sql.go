package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/migrations"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accesstokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// migrateUp is a seam for testing migrations.Up.
var migrateUp = migrations.Up

// SQLRepositoryManager owns a *sql.DB and the SQL repositories bound to it.
type SQLRepositoryManager struct {
	db           *sql.DB
	dialect      dbx.Dialect
	users        users.Repository
	accessTokens accesstokens.Repository
}

func (m *SQLRepositoryManager) Users() users.Repository {
	return m.users
}

func (m *SQLRepositoryManager) AccessTokens() accesstokens.Repository {
	return m.accessTokens
}

// RunMigrations applies the embedded schema in the manager's dialect.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context) error {
	if err := migrateUp(ctx, m.db, m.dialect); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	return nil
}

func (m *SQLRepositoryManager) Close() error {
	return m.db.Close()
}

func newSQLRepositoryManager(db *sql.DB, dialect dbx.Dialect) *SQLRepositoryManager {
	m := &SQLRepositoryManager{db: db, dialect: dialect}
	if dialect == dbx.SQLite {
		m.users = users.NewSQLiteRepository(db)
		m.accessTokens = accesstokens.NewSQLiteRepository(db)
	} else {
		m.users = users.NewPostgresRepository(db)
		m.accessTokens = accesstokens.NewPostgresRepository(db)
	}
	return m
}

// NewPostgresRepositoryManager opens dsn through the pgx stdlib driver.
func NewPostgresRepositoryManager(dsn string) (*SQLRepositoryManager, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	return newSQLRepositoryManager(db, dbx.Postgres), nil
}

// NewSQLiteRepositoryManager opens dsn with the pure-Go sqlite driver.
// The pool is capped at one connection: sqlite serialises writers anyway
// and an in-memory database exists only on the connection that made it.
func NewSQLiteRepositoryManager(dsn string) (*SQLRepositoryManager, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	db.SetMaxOpenConns(1)
	return newSQLRepositoryManager(db, dbx.SQLite), nil
}
