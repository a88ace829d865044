// Package models holds the shapes the client exchanges with the server.
package models

import "time"

// Session is an issued access token as seen by the client.
type Session struct {
	AccessToken string
	UserName    string
	CreatedAt   time.Time
}

// User is the public projection of an account.
type User struct {
	UserName string   `json:"username"`
	Name     string   `json:"name"`
	Scopes   []string `json:"scopes"`
	Creator  string   `json:"creator,omitempty"`
	Email    string   `json:"email,omitempty"`
}
