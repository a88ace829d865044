// Package users declares the user store contract and its implementations.
package users

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository stores users keyed by username. Implementations report failures
// as errors and never panic across this boundary.
type Repository interface {
	// GetUserByLogin returns common.ErrorNotFound when the username is unknown.
	GetUserByLogin(ctx context.Context, username string) (*models.User, error)

	// CreateIfAbsent inserts user unless the username is taken, atomically.
	// It reports false, nil when the username already exists.
	CreateIfAbsent(ctx context.Context, user *models.User) (bool, error)

	// Replace overwrites the stored record with the same username.
	// It returns common.ErrorNotFound when there is no such record.
	Replace(ctx context.Context, user *models.User) error

	// Delete removes the user and reports whether a record was deleted.
	Delete(ctx context.Context, username string) (bool, error)

	// List returns every user ordered by username.
	List(ctx context.Context) ([]*models.User, error)
}
