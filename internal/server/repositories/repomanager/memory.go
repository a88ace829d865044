package repomanager

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accesstokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

// InMemoryRepositoryManager keeps everything in process memory. Data is
// lost on restart.
type InMemoryRepositoryManager struct {
	users        *users.InMemoryRepository
	accessTokens *accesstokens.InMemoryRepository
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{
		users:        users.NewInMemoryRepository(),
		accessTokens: accesstokens.NewInMemoryRepository(),
	}
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context) error { return nil }

func (m *InMemoryRepositoryManager) Users() users.Repository {
	return m.users
}

func (m *InMemoryRepositoryManager) AccessTokens() accesstokens.Repository {
	return m.accessTokens
}

func (m *InMemoryRepositoryManager) Close() error { return nil }
