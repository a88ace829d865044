package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/gophauth/internal/server/scopes"
	"github.com/google/uuid"
)

// Built-in account provisioned on first start.
const (
	protectedPassword = "ThisIsAPassword456"
	protectedName     = "KarmaLover"
	protectedCreator  = "system"
	protectedEmail    = "karma@karmalover.ca"
)

// Seeder makes sure the protected account exists and holds every scope.
type Seeder struct {
	users  users.Repository
	hasher *cryptox.Hasher
	log    logging.Logger
	newID  func() string
	now    func() time.Time
}

func NewSeeder(u users.Repository, hasher *cryptox.Hasher, log logging.Logger) *Seeder {
	return &Seeder{
		users:  u,
		hasher: hasher,
		log:    log.With("module", "seeder"),
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

// Seed creates the protected account if it is missing, then resets its
// scopes to the full universe on every run. Its password is left alone
// once the account exists.
func (s *Seeder) Seed(ctx context.Context) error {
	user, err := s.users.GetUserByLogin(ctx, ProtectedUserName)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		user, err = s.create(ctx)
		if err != nil {
			return err
		}
	case err != nil:
		return fmt.Errorf("seed lookup: %w", err)
	}

	user.Scopes = scopes.All()
	if err := s.users.Replace(ctx, user); err != nil {
		return fmt.Errorf("seed scopes: %w", err)
	}
	return nil
}

func (s *Seeder) create(ctx context.Context) (*models.User, error) {
	user := &models.User{
		ID:           s.newID(),
		UserName:     ProtectedUserName,
		PasswordHash: s.hasher.Hash(protectedPassword),
		Name:         protectedName,
		Scopes:       scopes.All(),
		Creator:      protectedCreator,
		Email:        protectedEmail,
		CreatedAt:    s.now(),
	}

	created, err := s.users.CreateIfAbsent(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("seed create: %w", err)
	}
	if !created {
		// Another instance won the race; use its record.
		existing, err := s.users.GetUserByLogin(ctx, ProtectedUserName)
		if err != nil {
			return nil, fmt.Errorf("seed lookup: %w", err)
		}
		return existing, nil
	}

	s.log.Info(ctx, "created protected user", "user", ProtectedUserName, "password", protectedPassword)
	return user, nil
}
