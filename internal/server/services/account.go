package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/gophauth/internal/server/scopes"
	"github.com/google/uuid"
)

// ProtectedUserName is the built-in account nobody may edit or delete
// through the API.
const ProtectedUserName = "karma"

// CreateUserRequest is an administrative account creation. Scopes must be
// non-nil; an empty list is allowed.
type CreateUserRequest struct {
	UserName string
	Password string
	Name     string
	Email    string
	Scopes   []string
}

// EditUserRequest changes another (or the same) account. Empty Password and
// Name are left untouched; nil Scopes is left untouched, non-nil Scopes
// replaces the list entirely.
type EditUserRequest struct {
	UserName string
	Password string
	Name     string
	Scopes   []string
}

// AccountService implements login, signup and the authenticated account
// operations. Every method taking a requester returns
// common.ErrorUnauthorized when it is nil.
type AccountService struct {
	users    users.Repository
	sessions *SessionService
	hash     func(plaintext string) string
	log      logging.Logger
	metrics  *metrics.Metrics
	newID    func() string
	now      func() time.Time
}

func NewAccountService(u users.Repository, sessions *SessionService, hasher *cryptox.Hasher, log logging.Logger, m *metrics.Metrics) *AccountService {
	return &AccountService{
		users:    u,
		sessions: sessions,
		hash:     hasher.Hash,
		log:      log.With("module", "accounts"),
		metrics:  m,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Login checks credentials and issues a token. An unknown user and a wrong
// password produce the same error, and the password is hashed before the
// lookup either way.
func (s *AccountService) Login(ctx context.Context, username, password string) (tok *models.AccessToken, err error) {
	defer func() { s.metrics.Login(err) }()

	if username == "" || password == "" {
		return nil, common.ErrorMalformed
	}

	supplied := s.hash(password)

	user, err := s.users.GetUserByLogin(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		s.log.Error(ctx, "user lookup failed", "user", username, "error", err)
		return nil, common.ErrorInternal
	}
	if !cryptox.Equal(user.PasswordHash, supplied) {
		return nil, common.ErrorUnauthorized
	}

	return s.sessions.CreateToken(ctx, user)
}

// Signup registers a self-service account holding only users.default.
func (s *AccountService) Signup(ctx context.Context, username, password, name string) (u *models.User, err error) {
	defer func() { s.metrics.AccountOperation("signup", err) }()

	if username == "" || password == "" || name == "" {
		return nil, common.ErrorMalformed
	}

	return s.insert(ctx, &models.User{
		UserName:     username,
		PasswordHash: s.hash(password),
		Name:         name,
		Scopes:       []string{scopes.Default},
	})
}

// AdminCreate creates an account on behalf of requester, who must hold
// users.create and every scope being granted.
func (s *AccountService) AdminCreate(ctx context.Context, requester *models.User, req CreateUserRequest) (u *models.User, err error) {
	defer func() { s.metrics.AccountOperation("create", err) }()

	if requester == nil {
		return nil, common.ErrorUnauthorized
	}
	if !scopes.Has(requester.Scopes, scopes.Create) {
		return nil, common.ErrorForbidden
	}
	if req.UserName == "" || req.Password == "" || req.Scopes == nil {
		return nil, common.ErrorMalformed
	}
	if !scopes.CanGrant(requester.Scopes, req.Scopes) {
		return nil, common.ErrorForbidden
	}
	s.warnUnknownScopes(ctx, req.UserName, req.Scopes)

	return s.insert(ctx, &models.User{
		UserName:     req.UserName,
		PasswordHash: s.hash(req.Password),
		Name:         req.Name,
		Scopes:       req.Scopes,
		Creator:      requester.UserName,
		Email:        req.Email,
	})
}

func (s *AccountService) insert(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = s.newID()
	user.CreatedAt = s.now()

	created, err := s.users.CreateIfAbsent(ctx, user)
	if err != nil {
		s.log.Error(ctx, "user insert failed", "user", user.UserName, "error", err)
		return nil, common.ErrorInternal
	}
	if !created {
		return nil, common.ErrorAlreadyExists
	}
	return user, nil
}

// Edit updates the account named in req. The requester needs users.edit,
// and either users.edit.all or to be editing itself. The protected
// account is never editable. A new password revokes every token of the
// target.
func (s *AccountService) Edit(ctx context.Context, requester *models.User, req EditUserRequest) (u *models.User, err error) {
	defer func() { s.metrics.AccountOperation("edit", err) }()

	if requester == nil {
		return nil, common.ErrorUnauthorized
	}
	if !scopes.Has(requester.Scopes, scopes.Edit) {
		return nil, common.ErrorForbidden
	}
	if req.UserName == "" {
		return nil, common.ErrorMalformed
	}

	target, err := s.lookup(ctx, req.UserName)
	if err != nil {
		return nil, err
	}

	allowed := scopes.Has(requester.Scopes, scopes.EditAll) || requester.UserName == target.UserName
	if !allowed || target.UserName == ProtectedUserName {
		return nil, common.ErrorForbidden
	}
	if req.Scopes != nil && !scopes.CanGrant(requester.Scopes, req.Scopes) {
		return nil, common.ErrorForbidden
	}
	s.warnUnknownScopes(ctx, target.UserName, req.Scopes)

	if req.Password != "" {
		target.PasswordHash = s.hash(req.Password)
		if _, err := s.sessions.RevokeAll(ctx, target.UserName); err != nil {
			return nil, err
		}
	}
	if req.Scopes != nil {
		target.Scopes = req.Scopes
	}
	if req.Name != "" {
		target.Name = req.Name
	}

	if err := s.replace(ctx, target); err != nil {
		return nil, err
	}
	return target, nil
}

// ChangePassword sets a new password for requester. All of its tokens,
// the presented one included, are revoked before the hash is stored.
func (s *AccountService) ChangePassword(ctx context.Context, requester *models.User, password string) (err error) {
	defer func() { s.metrics.AccountOperation("change_password", err) }()

	if requester == nil {
		return common.ErrorUnauthorized
	}
	if password == "" {
		return common.ErrorMalformed
	}

	if _, err := s.sessions.RevokeAll(ctx, requester.UserName); err != nil {
		return err
	}

	updated := requester.Clone()
	updated.PasswordHash = s.hash(password)
	return s.replace(ctx, updated)
}

// Delete removes an account. Requires users.delete; a user may only delete
// itself, and never the protected account. Tokens go first so a failed
// delete leaves no live session behind.
func (s *AccountService) Delete(ctx context.Context, requester *models.User, username string) (err error) {
	defer func() { s.metrics.AccountOperation("delete", err) }()

	if requester == nil {
		return common.ErrorUnauthorized
	}
	if !scopes.Has(requester.Scopes, scopes.Delete) {
		return common.ErrorForbidden
	}
	if username == "" {
		return common.ErrorMalformed
	}

	target, err := s.lookup(ctx, username)
	if err != nil {
		return err
	}
	if target.UserName != requester.UserName || target.UserName == ProtectedUserName {
		return common.ErrorForbidden
	}

	if _, err := s.sessions.RevokeAll(ctx, target.UserName); err != nil {
		return err
	}

	deleted, err := s.users.Delete(ctx, target.UserName)
	if err != nil {
		s.log.Error(ctx, "user delete failed", "user", target.UserName, "error", err)
		return common.ErrorInternal
	}
	if !deleted {
		return common.ErrorInternal
	}
	return nil
}

// Logout revokes exactly the presented token.
func (s *AccountService) Logout(ctx context.Context, requester *models.User, token *models.AccessToken) error {
	if requester == nil || token == nil {
		return common.ErrorUnauthorized
	}

	deleted, err := s.sessions.Revoke(ctx, token.Token)
	if err != nil {
		return err
	}
	if !deleted {
		return common.ErrorInternal
	}
	return nil
}

// Purge revokes every token of requester and returns the count.
func (s *AccountService) Purge(ctx context.Context, requester *models.User) (int64, error) {
	if requester == nil {
		return 0, common.ErrorUnauthorized
	}
	return s.sessions.RevokeAll(ctx, requester.UserName)
}

func (s *AccountService) ListUsers(ctx context.Context, requester *models.User) ([]models.PublicUser, error) {
	if requester == nil {
		return nil, common.ErrorUnauthorized
	}
	if !scopes.Has(requester.Scopes, scopes.List) {
		return nil, common.ErrorForbidden
	}

	all, err := s.users.List(ctx)
	if err != nil {
		s.log.Error(ctx, "user list failed", "error", err)
		return nil, common.ErrorInternal
	}

	out := make([]models.PublicUser, 0, len(all))
	for _, u := range all {
		out = append(out, u.Public())
	}
	return out, nil
}

func (s *AccountService) Identify(ctx context.Context, requester *models.User) (models.PublicUser, error) {
	if requester == nil {
		return models.PublicUser{}, common.ErrorUnauthorized
	}
	return requester.Public(), nil
}

// warnUnknownScopes logs granted scopes outside the recognised set. They are
// stored as given; only CanGrant decides what may be granted.
func (s *AccountService) warnUnknownScopes(ctx context.Context, username string, granted []string) {
	for _, sc := range granted {
		if !scopes.IsKnown(sc) {
			s.log.Warn(ctx, "unrecognised scope granted", "user", username, "scope", sc)
		}
	}
}

func (s *AccountService) lookup(ctx context.Context, username string) (*models.User, error) {
	user, err := s.users.GetUserByLogin(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		s.log.Error(ctx, "user lookup failed", "user", username, "error", err)
		return nil, common.ErrorInternal
	}
	return user, nil
}

func (s *AccountService) replace(ctx context.Context, user *models.User) error {
	if err := s.users.Replace(ctx, user); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		s.log.Error(ctx, "user update failed", "user", user.UserName, "error", err)
		return common.ErrorInternal
	}
	return nil
}
