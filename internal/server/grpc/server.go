// Package grpc is the gRPC transport of the auth service.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/fluma/internal/api"
	"github.com/dmitrijs2005/fluma/internal/logging"
	"github.com/dmitrijs2005/fluma/internal/server/metrics"
	"github.com/dmitrijs2005/fluma/internal/server/models"
	"google.golang.org/grpc"
)

// AuthService is the business logic the transport delegates to.
type AuthService interface {
	Signup(ctx context.Context, userName, password, nickname string) (*models.UserSummary, error)
	Login(ctx context.Context, userName, password string) (*models.TokenPair, error)
	Reissue(ctx context.Context, accessToken, refreshToken string) (*models.TokenPair, error)
	Logout(ctx context.Context, userID string) error
}

// AccessTokenValidator fully validates access tokens presented in metadata.
type AccessTokenValidator interface {
	ValidateAccessToken(token string) (*models.Principal, error)
}

type GRPCServer struct {
	api.UnimplementedAuthServiceServer
	address string
	auth    AuthService
	tokens  AccessTokenValidator
	metrics *metrics.Metrics
	logger  logging.Logger
}

// NewGRPCServer builds the server. m may be nil when no metrics are collected.
func NewGRPCServer(a string, l logging.Logger, svc AuthService, tokens AccessTokenValidator, m *metrics.Metrics) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		auth:    svc,
		tokens:  tokens,
		metrics: m,
	}
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled, then stops
// gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {

	// creates gRPC-server
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.observeInterceptor, s.accessTokenInterceptor))

	// registers service
	api.RegisterAuthServiceServer(srv, s)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
