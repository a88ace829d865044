package users

import (
	"context"
	"sort"
	"sync"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// InMemoryRepository keeps users in a map. Records are copied on the way in
// and out so callers cannot mutate stored state.
type InMemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*models.User
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{users: make(map[string]*models.User)}
}

func (r *InMemoryRepository) CreateIfAbsent(ctx context.Context, user *models.User) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.UserName]; ok {
		return false, nil
	}
	r.users[user.UserName] = user.Clone()
	return true, nil
}

func (r *InMemoryRepository) GetUserByLogin(ctx context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[username]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u.Clone(), nil
}

func (r *InMemoryRepository) Replace(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[user.UserName]; !ok {
		return common.ErrorNotFound
	}
	r.users[user.UserName] = user.Clone()
	return nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[username]; !ok {
		return false, nil
	}
	delete(r.users, username)
	return true, nil
}

func (r *InMemoryRepository) List(ctx context.Context) ([]*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*models.User, 0, len(r.users))
	for _, u := range r.users {
		result = append(result, u.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserName < result[j].UserName })
	return result, nil
}
