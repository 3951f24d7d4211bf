// Package users provides the account repository backing owner features.
package users

import (
	"context"

	"github.com/sealbox/sealbox/internal/server/models"
)

type Repository interface {
	// Create inserts a new account. A duplicate username yields
	// common.ErrorLoginAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByLogin returns the account for a username or common.ErrorNotFound.
	GetByLogin(ctx context.Context, userName string) (*models.User, error)

	// GetByID returns the account for an id or common.ErrorNotFound.
	GetByID(ctx context.Context, id string) (*models.User, error)
}
