package grpc

import (
	"context"
	"path"
	"time"

	"github.com/dmitrijs2005/fluma/internal/api"
	"github.com/dmitrijs2005/fluma/internal/common"
	"github.com/dmitrijs2005/fluma/internal/server/metrics"
	"github.com/dmitrijs2005/fluma/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const principalKey ctxKey = "principal"

// protectedMethods require a valid access token in metadata.
var protectedMethods = map[string]bool{
	api.AuthService_Logout_FullMethodName: true,
}

// PrincipalFromContext returns the identity the access-token interceptor
// stored in ctx.
func PrincipalFromContext(ctx context.Context) (*models.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*models.Principal)
	return p, ok
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {

	if protectedMethods[info.FullMethod] {

		var accessToken string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			values := md.Get(common.AccessTokenHeaderName)
			if len(values) > 0 {
				accessToken = values[0]
			}
		}
		if len(accessToken) == 0 {
			return nil, status.Error(codes.Unauthenticated, "missing token")
		}

		principal, err := s.tokens.ValidateAccessToken(accessToken)
		if err != nil {
			return nil, api.ToStatus(err)
		}

		ctx = context.WithValue(ctx, principalKey, principal)

	}

	return handler(ctx, req)
}

// observeInterceptor logs every call with its outcome and records metrics.
func (s *GRPCServer) observeInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	took := time.Since(start)

	method := path.Base(info.FullMethod)
	code := status.Code(err)
	outcome := outcomeOf(code)

	args := []any{"method", method, "code", code.String(), "duration", took}
	switch outcome {
	case metrics.OutcomeOK:
		s.logger.Info(ctx, "request served", args...)
	case metrics.OutcomeRejected:
		s.logger.Warn(ctx, "request rejected", append(args, "reason", api.Reason(err))...)
	default:
		// handlers already logged the cause of Internal errors
		if code == codes.Internal {
			s.logger.Debug(ctx, "request failed", args...)
		} else {
			s.logger.Error(ctx, "request failed", append(args, "error", err)...)
		}
	}

	if s.metrics != nil {
		s.metrics.Observe(method, outcome, took)
	}
	return resp, err
}

func outcomeOf(code codes.Code) string {
	switch code {
	case codes.OK:
		return metrics.OutcomeOK
	case codes.Internal, codes.Unknown, codes.Unavailable, codes.DataLoss:
		return metrics.OutcomeError
	default:
		return metrics.OutcomeRejected
	}
}
