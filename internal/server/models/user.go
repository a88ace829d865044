// Package models defines server-side data models persisted by repositories.
package models

import (
	"slices"
	"time"
)

// User is a principal. UserName is the identity key and never changes;
// ID is an internal identifier that is never exposed to clients.
type User struct {
	ID           string
	UserName     string
	PasswordHash string
	Name         string
	Scopes       []string
	Creator      string
	Email        string
	CreatedAt    time.Time
}

// Clone returns a deep copy so in-memory stores never share slices with callers.
func (u *User) Clone() *User {
	c := *u
	c.Scopes = slices.Clone(u.Scopes)
	return &c
}

// PublicUser is what clients see of a user: no hash, no internal id.
type PublicUser struct {
	UserName string   `json:"username"`
	Name     string   `json:"name"`
	Scopes   []string `json:"scopes"`
	Creator  string   `json:"creator,omitempty"`
	Email    string   `json:"email,omitempty"`
}

func (u *User) Public() PublicUser {
	scopes := slices.Clone(u.Scopes)
	if scopes == nil {
		scopes = []string{}
	}
	return PublicUser{
		UserName: u.UserName,
		Name:     u.Name,
		Scopes:   scopes,
		Creator:  u.Creator,
		Email:    u.Email,
	}
}
