package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

const maxBodyBytes = 1 << 20

// accountRequest is the union of every /auth request body. Scopes stays
// nil when the field is absent, which the services distinguish from an
// empty list.
type accountRequest struct {
	UserName string   `json:"username"`
	Password string   `json:"password"`
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Scopes   []string `json:"scopes"`
}

type usernameResponse struct {
	UserName string `json:"username"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	CreatedAt   int64  `json:"created_at"`
	User        string `json:"user"`
}

type purgeResponse struct {
	Revoked int64 `json:"revoked"`
}

// decodeRequest accepts JSON and urlencoded form bodies. Form scopes may be
// sent as repeated "scopes" or "scopes[]" keys. An empty body decodes to
// the zero request; the services then reject missing fields.
func decodeRequest(w http.ResponseWriter, r *http.Request) (accountRequest, error) {
	var req accountRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/x-www-form-urlencoded" {
		if err := r.ParseForm(); err != nil {
			return req, fmt.Errorf("%w: %v", common.ErrorMalformed, err)
		}
		req.UserName = r.PostForm.Get("username")
		req.Password = r.PostForm.Get("password")
		req.Name = r.PostForm.Get("name")
		req.Email = r.PostForm.Get("email")
		for _, key := range []string{"scopes", "scopes[]"} {
			if vals, ok := r.PostForm[key]; ok {
				req.Scopes = append(req.Scopes, vals...)
			}
		}
		return req, nil
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return req, fmt.Errorf("%w: %v", common.ErrorMalformed, err)
	}
	return req, nil
}

func (h *Handlers) version(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "Version: "+common.Version)
}

// login handles POST /auth/login
func (h *Handlers) login(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(w, r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	tok, err := h.accounts.Login(r.Context(), req.UserName, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: tok.Token,
		CreatedAt:   tok.CreatedAt.UnixMilli(),
		User:        tok.UserName,
	})
}

// signup handles POST /auth/signup
func (h *Handlers) signup(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(w, r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	u, err := h.accounts.Signup(r.Context(), req.UserName, req.Password, req.Name)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.Info(r.Context(), "user signed up", "user", u.UserName)
	writeJSON(w, http.StatusCreated, usernameResponse{UserName: u.UserName})
}

// create handles POST /auth/create
func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
	requester, _ := principal(r)
	req, err := decodeRequest(w, r)
	if requester == nil {
		err = common.ErrorUnauthorized
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	u, err := h.accounts.AdminCreate(r.Context(), requester, services.CreateUserRequest{
		UserName: req.UserName,
		Password: req.Password,
		Name:     req.Name,
		Email:    req.Email,
		Scopes:   req.Scopes,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.Info(r.Context(), "user created", "user", u.UserName, "creator", u.Creator)
	writeJSON(w, http.StatusCreated, usernameResponse{UserName: u.UserName})
}

// edit handles PATCH /auth/edit
func (h *Handlers) edit(w http.ResponseWriter, r *http.Request) {
	requester, _ := principal(r)
	req, err := decodeRequest(w, r)
	if requester == nil {
		err = common.ErrorUnauthorized
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	u, err := h.accounts.Edit(r.Context(), requester, services.EditUserRequest{
		UserName: req.UserName,
		Password: req.Password,
		Name:     req.Name,
		Scopes:   req.Scopes,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, usernameResponse{UserName: u.UserName})
}

// changePassword handles POST /auth/change_password
func (h *Handlers) changePassword(w http.ResponseWriter, r *http.Request) {
	requester, _ := principal(r)
	req, err := decodeRequest(w, r)
	if requester == nil {
		err = common.ErrorUnauthorized
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.accounts.ChangePassword(r.Context(), requester, req.Password); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// delete handles POST /auth/delete
func (h *Handlers) delete(w http.ResponseWriter, r *http.Request) {
	requester, _ := principal(r)
	req, err := decodeRequest(w, r)
	if requester == nil {
		err = common.ErrorUnauthorized
	}
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.accounts.Delete(r.Context(), requester, req.UserName); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.Info(r.Context(), "user deleted", "user", req.UserName)
	w.WriteHeader(http.StatusOK)
}

// purge handles POST /auth/purge
func (h *Handlers) purge(w http.ResponseWriter, r *http.Request) {
	requester, _ := principal(r)

	n, err := h.accounts.Purge(r.Context(), requester)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, purgeResponse{Revoked: n})
}

// logout handles POST /auth/logout
func (h *Handlers) logout(w http.ResponseWriter, r *http.Request) {
	requester, tok := principal(r)

	if err := h.accounts.Logout(r.Context(), requester, tok); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// identify handles POST /auth/identify
func (h *Handlers) identify(w http.ResponseWriter, r *http.Request) {
	requester, _ := principal(r)

	pub, err := h.accounts.Identify(r.Context(), requester)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, pub)
}

// users handles POST /auth/users
func (h *Handlers) users(w http.ResponseWriter, r *http.Request) {
	requester, _ := principal(r)

	list, err := h.accounts.ListUsers(r.Context(), requester)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
