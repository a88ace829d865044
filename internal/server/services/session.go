// Package services contains server-side business logic: token sessions,
// account management and bootstrap seeding. Services speak the error
// taxonomy in package common; transports map it to their own codes.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accesstokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

// tokenBytes random bytes give a 32 character hex token.
const tokenBytes = 16

// TokenGenerator returns a fresh random token string.
type TokenGenerator func() (string, error)

func randomToken() (string, error) {
	return common.MakeRandHexString(tokenBytes)
}

// SessionService issues, resolves and revokes opaque access tokens.
// Tokens never expire; they live until revoked.
type SessionService struct {
	users    users.Repository
	tokens   accesstokens.Repository
	log      logging.Logger
	metrics  *metrics.Metrics
	generate TokenGenerator
	now      func() time.Time
}

func NewSessionService(u users.Repository, t accesstokens.Repository, log logging.Logger, m *metrics.Metrics) *SessionService {
	return &SessionService{
		users:    u,
		tokens:   t,
		log:      log.With("module", "sessions"),
		metrics:  m,
		generate: randomToken,
		now:      time.Now,
	}
}

// CreateToken issues a token for user. A generated string that is already
// taken is discarded and another one drawn until the store accepts one, so
// the returned token is always unique among live tokens. The loop stops
// only on success, a generator or store failure, or ctx cancellation.
func (s *SessionService) CreateToken(ctx context.Context, user *models.User) (*models.AccessToken, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, common.ErrorInternal
		}

		tok, err := s.generate()
		if err != nil {
			s.log.Error(ctx, "token generation failed", "error", err)
			return nil, common.ErrorInternal
		}

		at := &models.AccessToken{Token: tok, UserName: user.UserName, CreatedAt: s.now()}
		inserted, err := s.tokens.CreateIfAbsent(ctx, at)
		if err != nil {
			s.log.Error(ctx, "token insert failed", "user", user.UserName, "error", err)
			return nil, common.ErrorInternal
		}
		if inserted {
			s.metrics.TokenIssued()
			return at, nil
		}

		s.metrics.TokenCollision()
		s.log.Warn(ctx, "token collision, regenerating", "user", user.UserName)
	}
}

// Resolve maps a presented token to its owner. Unknown tokens and tokens
// whose owner no longer exists both yield common.ErrorUnauthorized.
func (s *SessionService) Resolve(ctx context.Context, token string) (*models.User, *models.AccessToken, error) {
	if token == "" {
		return nil, nil, common.ErrorUnauthorized
	}

	at, err := s.tokens.Find(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrorUnauthorized
		}
		s.log.Error(ctx, "token lookup failed", "error", err)
		return nil, nil, common.ErrorInternal
	}

	user, err := s.users.GetUserByLogin(ctx, at.UserName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.log.Warn(ctx, "token refers to a missing user", "user", at.UserName)
			return nil, nil, common.ErrorUnauthorized
		}
		s.log.Error(ctx, "user lookup failed", "user", at.UserName, "error", err)
		return nil, nil, common.ErrorInternal
	}

	return user, at, nil
}

// Revoke deletes exactly the given token and reports whether it existed.
func (s *SessionService) Revoke(ctx context.Context, token string) (bool, error) {
	deleted, err := s.tokens.Delete(ctx, token)
	if err != nil {
		s.log.Error(ctx, "token delete failed", "error", err)
		return false, common.ErrorInternal
	}
	if deleted {
		s.metrics.TokensRevoked(1)
	}
	return deleted, nil
}

// RevokeAll deletes every token of username and returns how many there
// were. Zero is not an error.
func (s *SessionService) RevokeAll(ctx context.Context, username string) (int64, error) {
	n, err := s.tokens.DeleteAllForUser(ctx, username)
	if err != nil {
		s.log.Error(ctx, "token purge failed", "user", username, "error", err)
		return 0, common.ErrorInternal
	}
	s.metrics.TokensRevoked(n)
	return n, nil
}
