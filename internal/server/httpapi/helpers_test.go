package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/accesstokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	srv      *httptest.Server
	users    *users.InMemoryRepository
	tokens   *accesstokens.InMemoryRepository
	accounts *services.AccountService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	u := users.NewInMemoryRepository()
	tk := accesstokens.NewInMemoryRepository()
	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)
	hasher := cryptox.NewHasher("salt")

	sessions := services.NewSessionService(u, tk, logging.Nop{}, m)
	accounts := services.NewAccountService(u, sessions, hasher, logging.Nop{}, m)
	require.NoError(t, services.NewSeeder(u, hasher, logging.Nop{}).Seed(context.Background()))

	router := NewRouter(sessions, accounts, RouterConfig{
		Logger:         logging.Nop{},
		Metrics:        m,
		Gatherer:       registry,
		RequestTimeout: 5 * time.Second,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testAPI{srv: srv, users: u, tokens: tk, accounts: accounts}
}

type response struct {
	status int
	body   []byte
	header http.Header
}

func (r response) decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.body, v), string(r.body))
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) response {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, rd)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return a.send(t, req)
}

func (a *testAPI) send(t *testing.T, req *http.Request) response {
	t.Helper()
	resp, err := a.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return response{status: resp.StatusCode, body: b, header: resp.Header}
}

func (a *testAPI) login(t *testing.T, username, password string) string {
	t.Helper()
	resp := a.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusOK, resp.status, string(resp.body))
	var tok tokenResponse
	resp.decode(t, &tok)
	return tok.AccessToken
}

func (a *testAPI) signup(t *testing.T, username, password, name string) {
	t.Helper()
	resp := a.do(t, http.MethodPost, "/auth/signup", "", map[string]string{"username": username, "password": password, "name": name})
	require.Equal(t, http.StatusCreated, resp.status, string(resp.body))
}
