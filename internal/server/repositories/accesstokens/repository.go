// Package accesstokens declares the token store contract and its
// implementations.
package accesstokens

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository stores access tokens keyed by the opaque token string.
type Repository interface {
	// CreateIfAbsent inserts token unless the token string is already live.
	// The check and the insert are a single atomic store operation; false, nil
	// means the string collided and nothing was written.
	CreateIfAbsent(ctx context.Context, token *models.AccessToken) (bool, error)

	// Find returns common.ErrorNotFound when the token is not live.
	Find(ctx context.Context, token string) (*models.AccessToken, error)

	// Delete removes exactly one token and reports whether it existed.
	Delete(ctx context.Context, token string) (bool, error)

	// DeleteAllForUser removes every token owned by username and returns how
	// many were removed. Zero is not an error.
	DeleteAllForUser(ctx context.Context, username string) (int64, error)
}
