package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/client/models"
	"github.com/dmitrijs2005/gophauth/internal/common"
)

// Client is a thin wrapper over the /auth endpoints. It is safe for
// concurrent use.
type Client struct {
	baseURL string
	http    *http.Client

	mu      sync.RWMutex
	session *models.Session
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type credentials struct {
	UserName string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Name     string `json:"name,omitempty"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	CreatedAt   int64  `json:"created_at"`
	User        string `json:"user"`
}

type usernameResponse struct {
	UserName string `json:"username"`
}

type purgeResponse struct {
	Revoked int64 `json:"revoked"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Session returns the current session, or nil before Login.
func (c *Client) Session() *models.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

func (c *Client) setSession(s *models.Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

// Version returns the banner served at GET /.
func (c *Client) Version(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errorForStatus(resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.TrimPrefix(string(b), "Version:")), nil
}

func (c *Client) Signup(ctx context.Context, userName, password, name string) (string, error) {
	var out usernameResponse
	err := c.do(ctx, http.MethodPost, "/auth/signup", false,
		credentials{UserName: userName, Password: password, Name: name}, &out)
	if err != nil {
		return "", err
	}
	return out.UserName, nil
}

// Login authenticates and remembers the issued token for later calls.
func (c *Client) Login(ctx context.Context, userName, password string) (*models.Session, error) {
	var out tokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", false,
		credentials{UserName: userName, Password: password}, &out)
	if err != nil {
		return nil, err
	}

	s := &models.Session{
		AccessToken: out.AccessToken,
		UserName:    out.User,
		CreatedAt:   time.UnixMilli(out.CreatedAt),
	}
	c.setSession(s)
	return s, nil
}

// Logout revokes the current token. The local session is dropped even if
// the server reports an error.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/logout", true, nil, nil)
	if !errors.Is(err, ErrNotLoggedIn) {
		c.setSession(nil)
	}
	return err
}

func (c *Client) Identify(ctx context.Context) (*models.User, error) {
	var out models.User
	if err := c.do(ctx, http.MethodPost, "/auth/identify", true, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Users(ctx context.Context) ([]models.User, error) {
	var out []models.User
	if err := c.do(ctx, http.MethodPost, "/auth/users", true, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ChangePassword sets a new password. The server revokes every token of
// the user, so the local session is dropped on success.
func (c *Client) ChangePassword(ctx context.Context, password string) error {
	err := c.do(ctx, http.MethodPost, "/auth/change_password", true, credentials{Password: password}, nil)
	if err != nil {
		return err
	}
	c.setSession(nil)
	return nil
}

// Purge revokes every token of the current user and reports how many were
// removed.
func (c *Client) Purge(ctx context.Context) (int64, error) {
	var out purgeResponse
	if err := c.do(ctx, http.MethodPost, "/auth/purge", true, nil, &out); err != nil {
		return 0, err
	}
	c.setSession(nil)
	return out.Revoked, nil
}

func (c *Client) do(ctx context.Context, method, path string, auth bool, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		s := c.Session()
		if s == nil {
			return ErrNotLoggedIn
		}
		req.Header.Set("Authorization", "Bearer "+s.AccessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		kind := errorForStatus(resp.StatusCode)
		var er errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&er)
		if er.Error == "" || er.Error == kind.Error() {
			return kind
		}
		return fmt.Errorf("%w: %s", kind, er.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", common.ErrorInternal, err)
	}
	return nil
}
