// Package services contains application services for the fluma CLI.
// This file defines the authentication service: signup, login, reissue and
// logout against the server, with the resulting session kept in the local
// metadata store so it survives between invocations.
package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dmitrijs2005/fluma/internal/api"
	"github.com/dmitrijs2005/fluma/internal/client/client"
	"github.com/dmitrijs2005/fluma/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/fluma/internal/common"
	"github.com/dmitrijs2005/fluma/internal/dbx"
)

// Session metadata keys.
const (
	keyUserName     = "username"
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
)

var sessionKeys = []string{keyUserName, keyAccessToken, keyRefreshToken}

// Session is what the CLI remembers about the signed-in user.
type Session struct {
	UserName     string
	AccessToken  string
	RefreshToken string
}

// AuthService defines authentication operations for the CLI.
//
// All methods must honor context cancellation/timeouts.
type AuthService interface {
	Signup(ctx context.Context, userName string, password []byte, nickname string) (*api.SignupResponse, error)
	Login(ctx context.Context, userName string, password []byte) (*api.TokenResponse, error)
	Reissue(ctx context.Context) (*api.TokenResponse, error)
	Logout(ctx context.Context) error
	Session(ctx context.Context) (*Session, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// authService is the concrete AuthService backed by a remote Client
// and a local SQL database for the session.
type authService struct {
	client client.Client
	db     *sql.DB
}

// NewAuthService constructs an AuthService bound to the given API client and
// DB. Tokens the client reissues on its own are written back to the session.
func NewAuthService(c client.Client, db *sql.DB) AuthService {
	a := &authService{client: c, db: db}
	c.OnTokensRefreshed(func(ctx context.Context, t *api.TokenResponse) error {
		return a.saveTokens(ctx, "", t)
	})
	return a
}

func (a *authService) metadataRepo(db dbx.DBTX) metadata.Repository {
	return metadata.NewSQLiteRepository(db)
}

func (a *authService) Signup(ctx context.Context, userName string, password []byte, nickname string) (*api.SignupResponse, error) {
	return a.client.Signup(ctx, userName, string(password), nickname)
}

// Login authenticates against the server and replaces the stored session.
func (a *authService) Login(ctx context.Context, userName string, password []byte) (*api.TokenResponse, error) {
	resp, err := a.client.Login(ctx, userName, string(password))
	if err != nil {
		return nil, err
	}

	if err := a.saveTokens(ctx, userName, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Reissue exchanges the stored pair for a new one.
func (a *authService) Reissue(ctx context.Context) (*api.TokenResponse, error) {
	if err := a.restore(ctx); err != nil {
		return nil, err
	}

	resp, err := a.client.Reissue(ctx)
	if err != nil {
		return nil, err
	}

	if err := a.saveTokens(ctx, "", resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Logout revokes the refresh token on the server and forgets the session.
// The local session is dropped even when the server already considers the
// user logged out.
func (a *authService) Logout(ctx context.Context) error {
	if err := a.restore(ctx); err != nil {
		return err
	}

	err := a.client.Logout(ctx)
	if err != nil && !errors.Is(err, common.ErrLoggedOut) && !errors.Is(err, common.ErrRefreshTokenExpired) {
		return err
	}

	return a.metadataRepo(a.db).Delete(ctx, sessionKeys...)
}

// Session returns the stored session or client.ErrNotLoggedIn.
func (a *authService) Session(ctx context.Context) (*Session, error) {
	values, err := a.metadataRepo(a.db).Get(ctx, sessionKeys...)
	if err != nil {
		return nil, err
	}

	s := &Session{
		UserName:     string(values[keyUserName]),
		AccessToken:  string(values[keyAccessToken]),
		RefreshToken: string(values[keyRefreshToken]),
	}
	if s.RefreshToken == "" {
		return nil, client.ErrNotLoggedIn
	}
	return s, nil
}

func (a *authService) restore(ctx context.Context) error {
	s, err := a.Session(ctx)
	if err != nil {
		return err
	}
	a.client.SetTokens(s.AccessToken, s.RefreshToken)
	return nil
}

// saveTokens persists t in one transaction. An empty userName keeps the
// stored one.
func (a *authService) saveTokens(ctx context.Context, userName string, t *api.TokenResponse) error {
	values := map[string][]byte{
		keyAccessToken:  []byte(t.AccessToken),
		keyRefreshToken: []byte(t.RefreshToken),
	}
	if userName != "" {
		values[keyUserName] = []byte(userName)
	}

	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return a.metadataRepo(tx).Put(ctx, values)
	})
}

// Ping proxies a liveness check to the underlying client.
func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

// Close releases resources held by the underlying client.
func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}
