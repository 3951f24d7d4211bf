// Package refreshtokens stores server-side refresh tokens for rotation.
package refreshtokens

import (
	"context"
	"time"

	"github.com/sealbox/sealbox/internal/server/models"
)

type Repository interface {
	// Create stores a refresh token valid for the given duration.
	Create(ctx context.Context, userID, token string, validity time.Duration) error

	// Find returns the token row or common.ErrorNotFound.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete removes a token; deleting an absent token is not an error,
	// rotation races are benign.
	Delete(ctx context.Context, token string) error
}
