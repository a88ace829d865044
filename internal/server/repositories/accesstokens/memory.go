package accesstokens

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// InMemoryRepository keeps tokens in a map guarded by a mutex, which makes
// CreateIfAbsent atomic within the process.
type InMemoryRepository struct {
	mu     sync.Mutex
	tokens map[string]models.AccessToken
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{tokens: make(map[string]models.AccessToken)}
}

func (r *InMemoryRepository) CreateIfAbsent(ctx context.Context, token *models.AccessToken) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[token.Token]; ok {
		return false, nil
	}
	r.tokens[token.Token] = *token
	return true, nil
}

func (r *InMemoryRepository) Find(ctx context.Context, token string) (*models.AccessToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &t, nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[token]; !ok {
		return false, nil
	}
	delete(r.tokens, token)
	return true, nil
}

func (r *InMemoryRepository) DeleteAllForUser(ctx context.Context, username string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for k, t := range r.tokens {
		if t.UserName == username {
			delete(r.tokens, k)
			n++
		}
	}
	return n, nil
}
