// Package repomanager opens the configured storage backend and vends the
// repositories built on top of it.
package repomanager

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accesstokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

// Storage backends accepted by New.
const (
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
	StorageMemory   = "memory"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Users() users.Repository
	AccessTokens() accesstokens.Repository
	Close() error
}

// New picks a manager by storage name. dsn is ignored for the memory backend.
func New(storage, dsn string) (RepositoryManager, error) {
	switch storage {
	case StoragePostgres:
		return NewPostgresRepositoryManager(dsn)
	case StorageSQLite:
		return NewSQLiteRepositoryManager(dsn)
	case StorageMemory:
		return NewInMemoryRepositoryManager(), nil
	default:
		return nil, fmt.Errorf("unknown storage %q", storage)
	}
}
