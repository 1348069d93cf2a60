// Package refreshtokens declares the server-side repository contract for
// the per-user refresh token and its PostgreSQL implementation.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/fluma/internal/server/models"
)

// Repository keeps at most one refresh token per user.
type Repository interface {
	// Save stores token as the user's refresh token, replacing any previous one.
	Save(ctx context.Context, userID string, token string, expires time.Time) error

	// FindByUserID returns the user's refresh token or common.ErrorNotFound.
	FindByUserID(ctx context.Context, userID string) (*models.RefreshToken, error)

	// DeleteByUserID removes the user's refresh token. Deleting a token that
	// is not there is not an error.
	DeleteByUserID(ctx context.Context, userID string) error
}
