// Package client talks to the fluma auth server over gRPC and keeps the
// CLI's local SQLite database.
//
// GRPCClient attaches the current access token to every call and, when the
// server reports an expired access token, reissues the pair once and retries
// the call. Server errors are mapped back to the sentinels in
// internal/common so callers can match them with errors.Is; transport
// failures become ErrUnavailable.
package client

import (
	"context"

	"github.com/dmitrijs2005/fluma/internal/api"
)

type Client interface {
	Close() error
	Signup(ctx context.Context, userName, password, nickname string) (*api.SignupResponse, error)
	Login(ctx context.Context, userName, password string) (*api.TokenResponse, error)
	Reissue(ctx context.Context) (*api.TokenResponse, error)
	Logout(ctx context.Context) error
	Ping(ctx context.Context) error
	SetTokens(accessToken, refreshToken string)
	OnTokensRefreshed(fn TokensRefreshedFunc)
}
