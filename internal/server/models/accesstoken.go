package models

import "time"

// AccessToken is an opaque bearer credential. It references its owner by
// username and has no expiry.
type AccessToken struct {
	Token     string    `json:"access_token"`
	UserName  string    `json:"user"`
	CreatedAt time.Time `json:"-"`
}
