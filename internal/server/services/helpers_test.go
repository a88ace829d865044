package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accesstokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const testSalt = "pepper"

var errStore = errors.New("store unavailable")

type env struct {
	users    *users.InMemoryRepository
	tokens   *accesstokens.InMemoryRepository
	metrics  *metrics.Metrics
	hasher   *cryptox.Hasher
	sessions *SessionService
	accounts *AccountService
	seeder   *Seeder
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		users:   users.NewInMemoryRepository(),
		tokens:  accesstokens.NewInMemoryRepository(),
		metrics: metrics.NewMetrics(prometheus.NewRegistry()),
		hasher:  cryptox.NewHasher(testSalt),
	}
	e.sessions = NewSessionService(e.users, e.tokens, logging.Nop{}, e.metrics)
	e.accounts = NewAccountService(e.users, e.sessions, e.hasher, logging.Nop{}, e.metrics)
	e.seeder = NewSeeder(e.users, e.hasher, logging.Nop{})
	return e
}

// addUser stores a user directly, bypassing scope checks.
func (e *env) addUser(t *testing.T, username, password string, scopes ...string) *models.User {
	t.Helper()
	u := &models.User{
		ID:           username + "-id",
		UserName:     username,
		PasswordHash: e.hasher.Hash(password),
		Name:         username,
		Scopes:       scopes,
	}
	ok, err := e.users.CreateIfAbsent(context.Background(), u)
	require.NoError(t, err)
	require.True(t, ok)
	return e.reload(t, username)
}

func (e *env) reload(t *testing.T, username string) *models.User {
	t.Helper()
	u, err := e.users.GetUserByLogin(context.Background(), username)
	require.NoError(t, err)
	return u
}

func (e *env) login(t *testing.T, username, password string) *models.AccessToken {
	t.Helper()
	tok, err := e.accounts.Login(context.Background(), username, password)
	require.NoError(t, err)
	return tok
}

// failingUsers fails the operations whose error is set and delegates the rest.
type failingUsers struct {
	users.Repository
	getErr     error
	createErr  error
	replaceErr error
	deleteErr  error
	listErr    error
	deleteMiss bool
}

func (f *failingUsers) GetUserByLogin(ctx context.Context, username string) (*models.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.Repository.GetUserByLogin(ctx, username)
}

func (f *failingUsers) CreateIfAbsent(ctx context.Context, u *models.User) (bool, error) {
	if f.createErr != nil {
		return false, f.createErr
	}
	return f.Repository.CreateIfAbsent(ctx, u)
}

func (f *failingUsers) Replace(ctx context.Context, u *models.User) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	return f.Repository.Replace(ctx, u)
}

func (f *failingUsers) Delete(ctx context.Context, username string) (bool, error) {
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	if f.deleteMiss {
		return false, nil
	}
	return f.Repository.Delete(ctx, username)
}

func (f *failingUsers) List(ctx context.Context) ([]*models.User, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Repository.List(ctx)
}

type failingTokens struct {
	accesstokens.Repository
	createErr    error
	findErr      error
	deleteErr    error
	deleteAllErr error
}

func (f *failingTokens) CreateIfAbsent(ctx context.Context, t *models.AccessToken) (bool, error) {
	if f.createErr != nil {
		return false, f.createErr
	}
	return f.Repository.CreateIfAbsent(ctx, t)
}

func (f *failingTokens) Find(ctx context.Context, token string) (*models.AccessToken, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.Repository.Find(ctx, token)
}

func (f *failingTokens) Delete(ctx context.Context, token string) (bool, error) {
	if f.deleteErr != nil {
		return false, f.deleteErr
	}
	return f.Repository.Delete(ctx, token)
}

func (f *failingTokens) DeleteAllForUser(ctx context.Context, username string) (int64, error) {
	if f.deleteAllErr != nil {
		return 0, f.deleteAllErr
	}
	return f.Repository.DeleteAllForUser(ctx, username)
}
