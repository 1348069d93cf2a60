package api

import (
	"errors"

	"github.com/dmitrijs2005/fluma/internal/common"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorDomain is the ErrorInfo domain of every status error the service returns.
const ErrorDomain = "fluma.auth"

// ErrorInfo reasons.
const (
	ReasonDuplicateUser       = "DUPLICATE_USER"
	ReasonValidationFailed    = "VALIDATION_FAILED"
	ReasonInvalidCredentials  = "INVALID_CREDENTIALS"
	ReasonRefreshTokenExpired = "REFRESH_TOKEN_EXPIRED"
	ReasonTokenExpired        = "TOKEN_EXPIRED"
	ReasonInvalidToken        = "INVALID_TOKEN"
	ReasonLoggedOut           = "LOGGED_OUT"
	ReasonTokenMismatch       = "TOKEN_MISMATCH"
	ReasonInternal            = "INTERNAL"
)

type errorKind struct {
	err    error
	code   codes.Code
	reason string
}

var errorKinds = []errorKind{
	{common.ErrDuplicateUser, codes.AlreadyExists, ReasonDuplicateUser},
	{common.ErrValidation, codes.InvalidArgument, ReasonValidationFailed},
	{common.ErrInvalidCredentials, codes.Unauthenticated, ReasonInvalidCredentials},
	{common.ErrRefreshTokenExpired, codes.Unauthenticated, ReasonRefreshTokenExpired},
	{common.ErrTokenExpired, codes.Unauthenticated, ReasonTokenExpired},
	{common.ErrInvalidToken, codes.Unauthenticated, ReasonInvalidToken},
	{common.ErrLoggedOut, codes.Unauthenticated, ReasonLoggedOut},
	{common.ErrTokenMismatch, codes.PermissionDenied, ReasonTokenMismatch},
	{common.ErrorInternal, codes.Internal, ReasonInternal},
}

// ToStatus converts a service error into a gRPC status error carrying an
// ErrorInfo detail. Errors outside the known kinds become Internal without
// exposing their text. Internal errors never expose their text either.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	code, reason, msg := codes.Internal, ReasonInternal, common.ErrorInternal.Error()
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			code, reason = k.code, k.reason
			if code != codes.Internal {
				msg = err.Error()
			}
			break
		}
	}

	st := status.New(code, msg)
	if withInfo, derr := st.WithDetails(&errdetails.ErrorInfo{Reason: reason, Domain: ErrorDomain}); derr == nil {
		st = withInfo
	}
	return st.Err()
}

// Reason returns the ErrorInfo reason attached to a status error, or "".
func Reason(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return ""
	}
	for _, d := range st.Details() {
		if info, ok := d.(*errdetails.ErrorInfo); ok && info.GetDomain() == ErrorDomain {
			return info.GetReason()
		}
	}
	return ""
}

// FromStatus maps a status error returned by the service back to the
// matching sentinel from internal/common, wrapping the original error.
// Errors without a known reason are returned unchanged.
func FromStatus(err error) error {
	reason := Reason(err)
	for _, k := range errorKinds {
		if k.reason == reason {
			return &remoteError{kind: k.err, cause: err}
		}
	}
	return err
}

type remoteError struct {
	kind  error
	cause error
}

func (e *remoteError) Error() string   { return e.cause.Error() }
func (e *remoteError) Unwrap() []error { return []error{e.kind, e.cause} }
