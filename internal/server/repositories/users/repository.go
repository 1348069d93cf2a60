// Package users declares the credential store contract and its PostgreSQL
// implementation.
package users

import (
	"context"

	"github.com/dmitrijs2005/fluma/internal/server/models"
)

type Repository interface {
	// Create inserts user and fills in its ID and CreatedAt. A username that is
	// already taken yields common.ErrorAlreadyExists.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// ExistsByUsername reports whether a user with this username is on file.
	ExistsByUsername(ctx context.Context, userName string) (bool, error)

	// GetUserByLogin returns common.ErrorNotFound when the username is unknown.
	GetUserByLogin(ctx context.Context, userName string) (*models.User, error)
}
