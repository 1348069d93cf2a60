// Package services contains server-side business logic. This file implements
// AuthService, which handles signup, login, reissuing of JWT pairs and logout
// on top of the server-stored refresh tokens.
package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/fluma/internal/common"
	"github.com/dmitrijs2005/fluma/internal/dbx"
	"github.com/dmitrijs2005/fluma/internal/server/auth"
	"github.com/dmitrijs2005/fluma/internal/server/models"
	"github.com/dmitrijs2005/fluma/internal/server/repositories/repomanager"
)

// TokenProvider issues token pairs and inspects tokens presented by clients.
type TokenProvider interface {
	GenerateTokenPair(p *models.Principal) (*models.TokenPair, error)
	ValidateRefreshToken(token string) error
	PrincipalFromAccessToken(token string) (*models.Principal, error)
}

// AuthService provides authentication-related operations:
// - Signup: create members
// - Login: verify credentials and mint tokens
// - Reissue: rotate the stored refresh token and mint a new pair
// - Logout: forget the stored refresh token
type AuthService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	hasher        auth.PasswordHasher
	authenticator auth.Authenticator
	tokens        TokenProvider
}

// NewAuthService wires an AuthService from its collaborators.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, hasher auth.PasswordHasher,
	authenticator auth.Authenticator, tokens TokenProvider) *AuthService {
	return &AuthService{
		db:            db,
		repomanager:   m,
		hasher:        hasher,
		authenticator: authenticator,
		tokens:        tokens,
	}
}

// Signup registers a new member and returns it without the password hash.
// A taken username yields common.ErrDuplicateUser.
func (s *AuthService) Signup(ctx context.Context, userName, password, nickname string) (*models.UserSummary, error) {
	if strings.TrimSpace(userName) == "" {
		return nil, fmt.Errorf("%w: username is required", common.ErrValidation)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", common.ErrValidation)
	}
	if strings.TrimSpace(nickname) == "" {
		nickname = userName
	}

	var created *models.User
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		exists, err := repo.ExistsByUsername(ctx, userName)
		if err != nil {
			return fmt.Errorf("%w: error checking username: %w", common.ErrorInternal, err)
		}
		if exists {
			return common.ErrDuplicateUser
		}

		hash, err := s.hasher.Hash(password)
		if err != nil {
			return fmt.Errorf("%w: error hashing password: %w", common.ErrorInternal, err)
		}

		created, err = repo.Create(ctx, &models.User{
			UserName:     userName,
			PasswordHash: hash,
			Nickname:     nickname,
			Authority:    models.AuthorityUser,
		})
		if err != nil {
			if errors.Is(err, common.ErrorAlreadyExists) {
				return common.ErrDuplicateUser
			}
			return fmt.Errorf("%w: error creating user: %w", common.ErrorInternal, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created.Summary(), nil
}

// Login verifies the credentials and, on success, issues a token pair whose
// refresh token replaces whatever the member had on file.
func (s *AuthService) Login(ctx context.Context, userName, password string) (*models.TokenPair, error) {
	var pair *models.TokenPair
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		principal, err := s.authenticator.Authenticate(ctx, userName, password)
		if err != nil {
			return err
		}

		pair, err = s.issue(ctx, tx, principal)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Reissue exchanges a (possibly expired) access token and the current
// refresh token for a new pair. The checks run in a fixed order: refresh
// token validity, access token identity, presence of a stored token, then
// equality with the stored token.
func (s *AuthService) Reissue(ctx context.Context, accessToken, refreshToken string) (*models.TokenPair, error) {
	if err := s.tokens.ValidateRefreshToken(refreshToken); err != nil {
		return nil, err
	}

	principal, err := s.tokens.PrincipalFromAccessToken(accessToken)
	if err != nil {
		return nil, err
	}

	var pair *models.TokenPair
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		stored, err := s.repomanager.RefreshTokens(tx).FindByUserID(ctx, principal.UserID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrLoggedOut
			}
			return fmt.Errorf("%w: error searching refresh token: %w", common.ErrorInternal, err)
		}

		if subtle.ConstantTimeCompare([]byte(stored.Token), []byte(refreshToken)) != 1 {
			return common.ErrTokenMismatch
		}

		pair, err = s.issue(ctx, tx, principal)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Logout removes the member's stored refresh token. Logging out twice is
// not an error.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.repomanager.RefreshTokens(s.db).DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("%w: error deleting refresh token: %w", common.ErrorInternal, err)
	}
	return nil
}

func (s *AuthService) issue(ctx context.Context, tx dbx.DBTX, principal *models.Principal) (*models.TokenPair, error) {
	pair, err := s.tokens.GenerateTokenPair(principal)
	if err != nil {
		return nil, fmt.Errorf("%w: error generating token pair: %w", common.ErrorInternal, err)
	}

	if err := s.repomanager.RefreshTokens(tx).Save(ctx, principal.UserID, pair.RefreshToken, pair.RefreshTokenExpires); err != nil {
		return nil, fmt.Errorf("%w: error saving refresh token: %w", common.ErrorInternal, err)
	}
	return pair, nil
}
