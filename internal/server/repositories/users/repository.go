// Package users declares the credential-store contract for registry
// accounts and its PostgreSQL implementation.
package users

import (
	"context"

	"github.com/dmitrijs2005/registryauth/internal/server/models"
)

// Repository is the credential store seen by the service layer.
type Repository interface {
	// Create persists a new user and returns it with the store-assigned id.
	// A username collision yields common.ErrAlreadyExists; the unique index
	// on username is what makes the service's check-then-insert sequence
	// safe under concurrency.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByUsername returns the user with the given username or
	// common.ErrNotFound.
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}
