package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fluma/internal/common"
	"github.com/dmitrijs2005/fluma/internal/dbx"
	"github.com/dmitrijs2005/fluma/internal/server/models"
	"github.com/dmitrijs2005/fluma/internal/server/repositories/users"
)

// Authenticator verifies a username/password pair. Every credential failure
// is reported as common.ErrInvalidCredentials; other errors mean the check
// itself could not be performed.
type Authenticator interface {
	Authenticate(ctx context.Context, userName, password string) (*models.Principal, error)
}

// dummyPasswordHash is verified against when the user does not exist, so an
// unknown username costs the same as a wrong password.
//
//nolint:gosec // not a credential
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// PasswordAuthenticator checks credentials against the users repository.
// Lookups join the transaction carried by ctx, if any.
type PasswordAuthenticator struct {
	db     dbx.DBTX
	users  func(db dbx.DBTX) users.Repository
	hasher PasswordHasher
}

func NewPasswordAuthenticator(db dbx.DBTX, usersRepo func(db dbx.DBTX) users.Repository, hasher PasswordHasher) *PasswordAuthenticator {
	return &PasswordAuthenticator{db: db, users: usersRepo, hasher: hasher}
}

func (a *PasswordAuthenticator) Authenticate(ctx context.Context, userName, password string) (*models.Principal, error) {
	user, err := a.users(dbx.Conn(ctx, a.db)).GetUserByLogin(ctx, userName)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_, _ = a.hasher.Verify(password, dummyPasswordHash)
			return nil, common.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("error loading user: %w", err)
	}

	ok, err := a.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("error verifying password: %w", err)
	}
	if !ok {
		return nil, common.ErrInvalidCredentials
	}

	return &models.Principal{UserID: user.ID, UserName: user.UserName, Authority: user.Authority}, nil
}
