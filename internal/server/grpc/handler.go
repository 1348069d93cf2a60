package grpc

import (
	"context"

	"github.com/dmitrijs2005/fluma/internal/api"
	"github.com/dmitrijs2005/fluma/internal/logging"
	"github.com/dmitrijs2005/fluma/internal/server/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) Signup(ctx context.Context, req *api.SignupRequest) (*api.SignupResponse, error) {

	s.logger.Info(ctx, "Signup request", "username", req.Username)

	user, err := s.auth.Signup(ctx, req.Username, req.Password, req.Nickname)
	if err != nil {
		return nil, s.fail(ctx, "signup", err)
	}

	s.logger.Info(ctx, "Signed up", "username", user.UserName, "id", user.ID)
	return &api.SignupResponse{
		ID:        user.ID,
		Username:  user.UserName,
		Nickname:  user.Nickname,
		Authority: string(user.Authority),
	}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *api.LoginRequest) (*api.TokenResponse, error) {

	pair, err := s.auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		return nil, s.fail(ctx, "login", err)
	}

	return tokenResponse(pair), nil
}

func (s *GRPCServer) Reissue(ctx context.Context, req *api.ReissueRequest) (*api.TokenResponse, error) {

	pair, err := s.auth.Reissue(ctx, req.AccessToken, req.RefreshToken)
	if err != nil {
		return nil, s.fail(ctx, "reissue", err)
	}

	return tokenResponse(pair), nil
}

func (s *GRPCServer) Logout(ctx context.Context, req *api.LogoutRequest) (*api.LogoutResponse, error) {

	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	if err := s.auth.Logout(ctx, principal.UserID); err != nil {
		return nil, s.fail(ctx, "logout", err)
	}

	s.logger.Info(ctx, "Logged out", "user_id", principal.UserID)
	return &api.LogoutResponse{}, nil
}

func (s *GRPCServer) Ping(ctx context.Context, req *api.PingRequest) (*api.PingResponse, error) {

	return &api.PingResponse{Status: "OK"}, nil

}

// fail converts err to a status error. Internal errors are logged here with
// their full text since the status hides it from the caller.
func (s *GRPCServer) fail(ctx context.Context, op string, err error) error {
	st := api.ToStatus(err)
	if status.Code(st) == codes.Internal {
		s.logger.Error(ctx, op+" failed", logging.ErrorAttrs(err)...)
	}
	return st
}

func tokenResponse(p *models.TokenPair) *api.TokenResponse {
	return &api.TokenResponse{
		GrantType:            p.GrantType,
		AccessToken:          p.AccessToken,
		RefreshToken:         p.RefreshToken,
		AccessTokenExpiresAt: p.AccessTokenExpiresAt,
	}
}
