package services

import (
	"bytes"
	"context"
	"testing"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/gophauth/internal/server/scopes"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAliceScenario(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	u, err := e.accounts.Signup(ctx, "alice", "pw1", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.UserName)
	assert.NotEmpty(t, u.ID)

	tok := e.login(t, "alice", "pw1")

	requester, at, err := e.sessions.Resolve(ctx, tok.Token)
	require.NoError(t, err)

	pub, err := e.accounts.Identify(ctx, requester)
	require.NoError(t, err)
	assert.Equal(t, models.PublicUser{UserName: "alice", Name: "Alice", Scopes: []string{"users.default"}}, pub)

	require.NoError(t, e.accounts.Logout(ctx, requester, at))

	_, _, err = e.sessions.Resolve(ctx, tok.Token)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addUser(t, "alice", "pw1")

	_, err := e.accounts.Login(ctx, "alice", "")
	assert.ErrorIs(t, err, common.ErrorMalformed)
	_, err = e.accounts.Login(ctx, "", "pw1")
	assert.ErrorIs(t, err, common.ErrorMalformed)

	_, errUnknown := e.accounts.Login(ctx, "nobody", "pw1")
	_, errWrong := e.accounts.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, errUnknown, common.ErrorUnauthorized)
	assert.Equal(t, errUnknown, errWrong, "unknown user and wrong password must be indistinguishable")

	tok, err := e.accounts.Login(ctx, "alice", "pw1")
	require.NoError(t, err)
	assert.Equal(t, "alice", tok.UserName)

	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.LoginsTotal.WithLabelValues("ok")))
	assert.Equal(t, 4.0, testutil.ToFloat64(e.metrics.LoginsTotal.WithLabelValues("error")))
}

func TestLogin_SaltMatters(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	_, err := e.accounts.Signup(ctx, "alice", "pw1", "Alice")
	require.NoError(t, err)

	salted := NewAccountService(e.users, e.sessions, cryptox.NewHasher("different"), logging.Nop{}, nil)

	_, err = salted.Login(ctx, "alice", "pw1")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestLogin_StoreFailure(t *testing.T) {
	e := newEnv(t)
	s := NewAccountService(&failingUsers{Repository: e.users, getErr: errStore}, e.sessions, e.hasher, logging.Nop{}, nil)

	_, err := s.Login(context.Background(), "alice", "pw")
	assert.ErrorIs(t, err, common.ErrorInternal)
}

// lookupRecorder notes each user lookup in a shared call log.
type lookupRecorder struct {
	users.Repository
	calls *[]string
}

func (l lookupRecorder) GetUserByLogin(ctx context.Context, username string) (*models.User, error) {
	*l.calls = append(*l.calls, "lookup")
	return l.Repository.GetUserByLogin(ctx, username)
}

func TestLogin_HashesBeforeLookup(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addUser(t, "alice", "pw1")

	var calls []string
	s := NewAccountService(lookupRecorder{Repository: e.users, calls: &calls}, e.sessions, e.hasher, logging.Nop{}, nil)
	s.hash = func(plaintext string) string {
		calls = append(calls, "hash")
		return e.hasher.Hash(plaintext)
	}

	_, err := s.Login(ctx, "nobody", "pw1")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	assert.Equal(t, []string{"hash", "lookup"}, calls, "an unknown user costs the same hash as a known one")

	calls = nil
	_, err = s.Login(ctx, "alice", "pw1")
	require.NoError(t, err)
	assert.Equal(t, []string{"hash", "lookup"}, calls)
}

func TestSignup(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	for _, args := range [][3]string{{"", "pw", "N"}, {"bob", "", "N"}, {"bob", "pw", ""}} {
		_, err := e.accounts.Signup(ctx, args[0], args[1], args[2])
		assert.ErrorIs(t, err, common.ErrorMalformed, "%v", args)
	}

	_, err := e.accounts.Signup(ctx, "bob", "pw", "Bob")
	require.NoError(t, err)

	_, err = e.accounts.Signup(ctx, "bob", "other", "Other Bob")
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	bob := e.reload(t, "bob")
	assert.Equal(t, "Bob", bob.Name, "a rejected signup must not touch the existing user")
	assert.Equal(t, []string{scopes.Default}, bob.Scopes)
	assert.Empty(t, bob.Creator)

	s := NewAccountService(&failingUsers{Repository: e.users, createErr: errStore}, e.sessions, e.hasher, logging.Nop{}, nil)
	_, err = s.Signup(ctx, "carol", "pw", "Carol")
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestAdminCreate(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	admin := e.addUser(t, "admin", "pw", scopes.Create, scopes.Default, scopes.List)
	plain := e.addUser(t, "plain", "pw", scopes.Default)

	_, err := e.accounts.AdminCreate(ctx, nil, CreateUserRequest{})
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = e.accounts.AdminCreate(ctx, plain, CreateUserRequest{UserName: "x", Password: "p", Scopes: []string{}})
	assert.ErrorIs(t, err, common.ErrorForbidden)

	_, err = e.accounts.AdminCreate(ctx, admin, CreateUserRequest{UserName: "x", Password: "p"})
	assert.ErrorIs(t, err, common.ErrorMalformed, "scopes must be present")

	_, err = e.accounts.AdminCreate(ctx, admin, CreateUserRequest{Password: "p", Scopes: []string{}})
	assert.ErrorIs(t, err, common.ErrorMalformed)

	_, err = e.accounts.AdminCreate(ctx, admin, CreateUserRequest{UserName: "x", Password: "p", Scopes: []string{scopes.Delete}})
	assert.ErrorIs(t, err, common.ErrorForbidden, "cannot grant a scope the requester lacks")
	_, err = e.users.GetUserByLogin(ctx, "x")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	u, err := e.accounts.AdminCreate(ctx, admin, CreateUserRequest{
		UserName: "x", Password: "p", Name: "X", Email: "x@example.com", Scopes: []string{scopes.List},
	})
	require.NoError(t, err)
	assert.Equal(t, "admin", u.Creator)

	stored := e.reload(t, "x")
	assert.Equal(t, []string{scopes.List}, stored.Scopes)
	assert.Equal(t, "x@example.com", stored.Email)
	e.login(t, "x", "p")

	_, err = e.accounts.AdminCreate(ctx, admin, CreateUserRequest{UserName: "x", Password: "p", Scopes: []string{}})
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	// An empty grant list is allowed.
	_, err = e.accounts.AdminCreate(ctx, admin, CreateUserRequest{UserName: "y", Password: "p", Scopes: []string{}})
	assert.NoError(t, err)
}

func TestUnknownScopesAreGrantedWithWarning(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	admin := e.addUser(t, "admin", "pw", scopes.Create, scopes.Edit, scopes.EditAll, scopes.Default, "billing.read")

	var buf bytes.Buffer
	s := NewAccountService(e.users, e.sessions, e.hasher, logging.NewJSONLogger(&buf, "warn"), nil)

	_, err := s.AdminCreate(ctx, admin, CreateUserRequest{UserName: "bob", Password: "pw", Scopes: []string{scopes.Default}})
	require.NoError(t, err)
	assert.Empty(t, buf.String(), "known scopes log nothing")

	_, err = s.AdminCreate(ctx, admin, CreateUserRequest{UserName: "carol", Password: "pw", Scopes: []string{"billing.read"}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "unrecognised scope granted")
	assert.Contains(t, buf.String(), `"scope":"billing.read"`)
	assert.Equal(t, []string{"billing.read"}, e.reload(t, "carol").Scopes)

	buf.Reset()
	_, err = s.Edit(ctx, admin, EditUserRequest{UserName: "bob", Scopes: []string{scopes.Default, "billing.read"}})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"user":"bob"`)
	assert.Contains(t, buf.String(), `"scope":"billing.read"`)
}

func TestEdit_Permissions(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	require.NoError(t, e.seeder.Seed(ctx))

	editor := e.addUser(t, "editor", "pw", scopes.Edit, scopes.Default)
	superEditor := e.addUser(t, "super", "pw", scopes.Edit, scopes.EditAll, scopes.Default, scopes.List)
	noEdit := e.addUser(t, "noedit", "pw", scopes.Default)
	e.addUser(t, "victim", "pw", scopes.Default)

	_, err := e.accounts.Edit(ctx, nil, EditUserRequest{UserName: "victim"})
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = e.accounts.Edit(ctx, noEdit, EditUserRequest{UserName: "noedit", Name: "n"})
	assert.ErrorIs(t, err, common.ErrorForbidden)

	_, err = e.accounts.Edit(ctx, editor, EditUserRequest{})
	assert.ErrorIs(t, err, common.ErrorMalformed)

	_, err = e.accounts.Edit(ctx, editor, EditUserRequest{UserName: "ghost"})
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = e.accounts.Edit(ctx, editor, EditUserRequest{UserName: "victim", Name: "pwned"})
	assert.ErrorIs(t, err, common.ErrorForbidden, "editing others needs users.edit.all")

	u, err := e.accounts.Edit(ctx, editor, EditUserRequest{UserName: "editor", Name: "Me"})
	require.NoError(t, err)
	assert.Equal(t, "Me", u.Name)

	u, err = e.accounts.Edit(ctx, superEditor, EditUserRequest{UserName: "victim", Name: "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", e.reload(t, "victim").Name)
	assert.Equal(t, "victim", u.UserName)

	_, err = e.accounts.Edit(ctx, superEditor, EditUserRequest{UserName: ProtectedUserName, Name: "x"})
	assert.ErrorIs(t, err, common.ErrorForbidden)

	karma := e.reload(t, ProtectedUserName)
	_, err = e.accounts.Edit(ctx, karma, EditUserRequest{UserName: ProtectedUserName, Name: "x"})
	assert.ErrorIs(t, err, common.ErrorForbidden, "even the protected account cannot edit itself")
}

func TestEdit_ScopesAreCheckedBeforeAnyChange(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	superEditor := e.addUser(t, "super", "pw", scopes.Edit, scopes.EditAll)
	e.addUser(t, "victim", "old", scopes.Default)
	victimTok := e.login(t, "victim", "old")

	_, err := e.accounts.Edit(ctx, superEditor, EditUserRequest{
		UserName: "victim", Password: "new", Name: "New", Scopes: []string{scopes.Delete},
	})
	assert.ErrorIs(t, err, common.ErrorForbidden)

	victim := e.reload(t, "victim")
	assert.Equal(t, "victim", victim.Name)
	assert.Equal(t, []string{scopes.Default}, victim.Scopes)
	assert.True(t, e.hasher.Matches(victim.PasswordHash, "old"))
	_, _, err = e.sessions.Resolve(ctx, victimTok.Token)
	assert.NoError(t, err, "a rejected edit must not revoke tokens")
}

func TestEdit_PasswordAndScopes(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	superEditor := e.addUser(t, "super", "pw", scopes.Edit, scopes.EditAll, scopes.List)
	e.addUser(t, "victim", "old", scopes.Default)
	t1 := e.login(t, "victim", "old")
	t2 := e.login(t, "victim", "old")

	_, err := e.accounts.Edit(ctx, superEditor, EditUserRequest{UserName: "victim", Password: "new", Scopes: []string{scopes.List}})
	require.NoError(t, err)

	for _, tok := range []string{t1.Token, t2.Token} {
		_, _, err = e.sessions.Resolve(ctx, tok)
		assert.ErrorIs(t, err, common.ErrorUnauthorized)
	}

	victim := e.reload(t, "victim")
	assert.Equal(t, []string{scopes.List}, victim.Scopes)
	assert.Equal(t, "victim", victim.Name, "empty name is left alone")

	_, err = e.accounts.Login(ctx, "victim", "old")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	e.login(t, "victim", "new")

	// An empty, non-nil scope list clears scopes; nil leaves them.
	_, err = e.accounts.Edit(ctx, superEditor, EditUserRequest{UserName: "victim", Scopes: []string{}})
	require.NoError(t, err)
	assert.Empty(t, e.reload(t, "victim").Scopes)

	// No password: tokens survive.
	t3 := e.login(t, "victim", "new")
	_, err = e.accounts.Edit(ctx, superEditor, EditUserRequest{UserName: "victim", Name: "V"})
	require.NoError(t, err)
	_, _, err = e.sessions.Resolve(ctx, t3.Token)
	assert.NoError(t, err)
}

func TestEdit_StoreFailures(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	me := e.addUser(t, "me", "pw", scopes.Edit)

	s := NewAccountService(&failingUsers{Repository: e.users, replaceErr: errStore}, e.sessions, e.hasher, logging.Nop{}, nil)
	_, err := s.Edit(ctx, me, EditUserRequest{UserName: "me", Name: "x"})
	assert.ErrorIs(t, err, common.ErrorInternal)

	s = NewAccountService(&failingUsers{Repository: e.users, replaceErr: common.ErrorNotFound}, e.sessions, e.hasher, logging.Nop{}, nil)
	_, err = s.Edit(ctx, me, EditUserRequest{UserName: "me", Name: "x"})
	assert.ErrorIs(t, err, common.ErrorNotFound)

	s = NewAccountService(&failingUsers{Repository: e.users, getErr: errStore}, e.sessions, e.hasher, logging.Nop{}, nil)
	_, err = s.Edit(ctx, me, EditUserRequest{UserName: "me"})
	assert.ErrorIs(t, err, common.ErrorInternal)

	broken := NewSessionService(e.users, &failingTokens{Repository: e.tokens, deleteAllErr: errStore}, logging.Nop{}, nil)
	s = NewAccountService(e.users, broken, e.hasher, logging.Nop{}, nil)
	_, err = s.Edit(ctx, me, EditUserRequest{UserName: "me", Password: "new"})
	assert.ErrorIs(t, err, common.ErrorInternal)
	assert.True(t, e.hasher.Matches(e.reload(t, "me").PasswordHash, "pw"), "failed revocation must not persist the new password")
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addUser(t, "alice", "old", scopes.Default)
	tok := e.login(t, "alice", "old")
	other := e.login(t, "alice", "old")
	alice, _, err := e.sessions.Resolve(ctx, tok.Token)
	require.NoError(t, err)

	assert.ErrorIs(t, e.accounts.ChangePassword(ctx, nil, "x"), common.ErrorUnauthorized)
	assert.ErrorIs(t, e.accounts.ChangePassword(ctx, alice, ""), common.ErrorMalformed)

	require.NoError(t, e.accounts.ChangePassword(ctx, alice, "new"))

	for _, tk := range []string{tok.Token, other.Token} {
		_, _, err = e.sessions.Resolve(ctx, tk)
		assert.ErrorIs(t, err, common.ErrorUnauthorized)
	}
	_, err = e.accounts.Login(ctx, "alice", "old")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	e.login(t, "alice", "new")

	// The requester value is not mutated.
	assert.True(t, e.hasher.Matches(alice.PasswordHash, "old"))
}

func TestChangePassword_RevocationFailureKeepsOldPassword(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.addUser(t, "alice", "old")

	broken := NewSessionService(e.users, &failingTokens{Repository: e.tokens, deleteAllErr: errStore}, logging.Nop{}, nil)
	s := NewAccountService(e.users, broken, e.hasher, logging.Nop{}, nil)

	assert.ErrorIs(t, s.ChangePassword(ctx, alice, "new"), common.ErrorInternal)
	e.login(t, "alice", "old")
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	require.NoError(t, e.seeder.Seed(ctx))
	deleter := e.addUser(t, "deleter", "pw", scopes.Delete)
	noDelete := e.addUser(t, "nodelete", "pw", scopes.Default)
	e.addUser(t, "other", "pw", scopes.Default)
	karma := e.reload(t, ProtectedUserName)

	assert.ErrorIs(t, e.accounts.Delete(ctx, nil, "deleter"), common.ErrorUnauthorized)
	assert.ErrorIs(t, e.accounts.Delete(ctx, noDelete, "nodelete"), common.ErrorForbidden)
	assert.ErrorIs(t, e.accounts.Delete(ctx, deleter, ""), common.ErrorMalformed)
	assert.ErrorIs(t, e.accounts.Delete(ctx, deleter, "ghost"), common.ErrorNotFound)
	assert.ErrorIs(t, e.accounts.Delete(ctx, deleter, "other"), common.ErrorForbidden, "only self-deletion is allowed")
	assert.ErrorIs(t, e.accounts.Delete(ctx, karma, ProtectedUserName), common.ErrorForbidden)

	t1 := e.login(t, "deleter", "pw")
	t2 := e.login(t, "deleter", "pw")

	require.NoError(t, e.accounts.Delete(ctx, deleter, "deleter"))

	_, err := e.users.GetUserByLogin(ctx, "deleter")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	for _, tok := range []string{t1.Token, t2.Token} {
		_, err = e.tokens.Find(ctx, tok)
		assert.ErrorIs(t, err, common.ErrorNotFound, "tokens are purged, not just dangling")
	}
}

func TestDelete_StoreFailures(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	me := e.addUser(t, "me", "pw", scopes.Delete)

	s := NewAccountService(&failingUsers{Repository: e.users, deleteErr: errStore}, e.sessions, e.hasher, logging.Nop{}, nil)
	assert.ErrorIs(t, s.Delete(ctx, me, "me"), common.ErrorInternal)

	s = NewAccountService(&failingUsers{Repository: e.users, deleteMiss: true}, e.sessions, e.hasher, logging.Nop{}, nil)
	assert.ErrorIs(t, s.Delete(ctx, me, "me"), common.ErrorInternal)

	broken := NewSessionService(e.users, &failingTokens{Repository: e.tokens, deleteAllErr: errStore}, logging.Nop{}, nil)
	s = NewAccountService(e.users, broken, e.hasher, logging.Nop{}, nil)
	assert.ErrorIs(t, s.Delete(ctx, me, "me"), common.ErrorInternal)
	e.reload(t, "me")
}

func TestLogoutAndPurge(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	e.addUser(t, "alice", "pw")
	t1 := e.login(t, "alice", "pw")
	t2 := e.login(t, "alice", "pw")
	alice, at1, err := e.sessions.Resolve(ctx, t1.Token)
	require.NoError(t, err)

	assert.ErrorIs(t, e.accounts.Logout(ctx, nil, at1), common.ErrorUnauthorized)
	assert.ErrorIs(t, e.accounts.Logout(ctx, alice, nil), common.ErrorUnauthorized)

	require.NoError(t, e.accounts.Logout(ctx, alice, at1))
	assert.ErrorIs(t, e.accounts.Logout(ctx, alice, at1), common.ErrorInternal, "second logout finds nothing to delete")

	_, _, err = e.sessions.Resolve(ctx, t2.Token)
	require.NoError(t, err, "logout touches only the presented token")

	_, err = e.accounts.Purge(ctx, nil)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	n, err := e.accounts.Purge(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = e.accounts.Purge(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListUsersAndIdentify(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	lister := e.addUser(t, "lister", "pw", scopes.List)
	plain := e.addUser(t, "plain", "pw")

	_, err := e.accounts.ListUsers(ctx, nil)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	_, err = e.accounts.ListUsers(ctx, plain)
	assert.ErrorIs(t, err, common.ErrorForbidden)

	list, err := e.accounts.ListUsers(ctx, lister)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "lister", list[0].UserName)
	assert.Equal(t, []string{}, list[1].Scopes)

	s := NewAccountService(&failingUsers{Repository: e.users, listErr: errStore}, e.sessions, e.hasher, logging.Nop{}, nil)
	_, err = s.ListUsers(ctx, lister)
	assert.ErrorIs(t, err, common.ErrorInternal)

	_, err = e.accounts.Identify(ctx, nil)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	pub, err := e.accounts.Identify(ctx, plain)
	require.NoError(t, err)
	assert.Equal(t, "plain", pub.UserName)
}
