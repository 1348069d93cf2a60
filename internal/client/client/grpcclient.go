package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/fluma/internal/api"
	"github.com/dmitrijs2005/fluma/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// TokensRefreshedFunc is called after the client reissued its tokens on its
// own, so the new pair can be persisted.
type TokensRefreshedFunc func(ctx context.Context, t *api.TokenResponse) error

type GRPCClient struct {
	endpointURL string
	dialOpts    []grpc.DialOption
	conn        *grpc.ClientConn
	client      api.AuthServiceClient

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	onRefresh    TokensRefreshedFunc
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	if token != "" {
		md.Set(common.AccessTokenHeaderName, token)
	}

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	accessToken, refreshToken := s.tokens()

	err := invoker(withAccessToken(ctx, accessToken), method, req, reply, cc, opts...)
	if err == nil {
		return nil
	}

	if method == api.AuthService_Reissue_FullMethodName || refreshToken == "" {
		return err
	}
	if api.Reason(err) != api.ReasonTokenExpired {
		return err
	}

	refreshed, rerr := s.client.Reissue(ctx, &api.ReissueRequest{AccessToken: accessToken, RefreshToken: refreshToken})
	if rerr != nil {
		return rerr
	}
	if err := s.storeTokens(ctx, refreshed); err != nil {
		return err
	}

	// tokens reissued, retrying with the new access token
	return invoker(withAccessToken(ctx, refreshed.AccessToken), method, req, reply, cc, opts...)
}

// NewGRPCClient connects lazily to endpointURL. Extra dial options are
// appended to the defaults.
func NewGRPCClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, dialOpts: opts}
	err := c.InitGRPCClient()
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {

	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
	}, s.dialOpts...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = api.NewAuthServiceClient(conn)
	return nil
}

func (s *GRPCClient) tokens() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken, s.refreshToken
}

// SetTokens installs a previously saved pair.
func (s *GRPCClient) SetTokens(accessToken, refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken, s.refreshToken = accessToken, refreshToken
}

func (s *GRPCClient) OnTokensRefreshed(fn TokensRefreshedFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRefresh = fn
}

func (s *GRPCClient) storeTokens(ctx context.Context, t *api.TokenResponse) error {
	s.mu.Lock()
	s.accessToken, s.refreshToken = t.AccessToken, t.RefreshToken
	fn := s.onRefresh
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, t)
	}
	return nil
}

func (s *GRPCClient) Signup(ctx context.Context, userName, password, nickname string) (*api.SignupResponse, error) {

	req := &api.SignupRequest{Username: userName, Password: password, Nickname: nickname}

	resp, err := s.client.Signup(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}

	return resp, nil
}

func (s *GRPCClient) Login(ctx context.Context, userName, password string) (*api.TokenResponse, error) {

	req := &api.LoginRequest{Username: userName, Password: password}

	resp, err := s.client.Login(ctx, req)
	if err != nil {
		return nil, s.mapError(err)
	}

	s.SetTokens(resp.AccessToken, resp.RefreshToken)

	return resp, nil
}

// Reissue exchanges the current pair for a new one.
func (s *GRPCClient) Reissue(ctx context.Context) (*api.TokenResponse, error) {

	accessToken, refreshToken := s.tokens()
	if refreshToken == "" {
		return nil, ErrNotLoggedIn
	}

	resp, err := s.client.Reissue(ctx, &api.ReissueRequest{AccessToken: accessToken, RefreshToken: refreshToken})
	if err != nil {
		return nil, s.mapError(err)
	}

	s.SetTokens(resp.AccessToken, resp.RefreshToken)

	return resp, nil
}

func (s *GRPCClient) Logout(ctx context.Context) error {

	if accessToken, _ := s.tokens(); accessToken == "" {
		return ErrNotLoggedIn
	}

	if _, err := s.client.Logout(ctx, &api.LogoutRequest{}); err != nil {
		return s.mapError(err)
	}

	s.SetTokens("", "")
	return nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {

	resp, err := s.client.Ping(ctx, &api.PingRequest{})
	if err != nil {
		return s.mapError(err)
	}

	if resp.Status != "OK" {
		return ErrUnavailable
	}

	return nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	if api.Reason(err) != "" {
		return api.FromStatus(err)
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
