package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/passm/internal/common"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
)

var statusCodes = []struct {
	err  error
	code codes.Code
}{
	{common.ErrValidation, codes.InvalidArgument},
	{common.ErrInvalidCredentials, codes.Unauthenticated},
	{common.ErrInvalidToken, codes.Unauthenticated},
	{common.ErrTokenExpired, codes.Unauthenticated},
	{common.ErrWrongCurrentPassword, codes.PermissionDenied},
	{common.ErrDuplicateAccount, codes.AlreadyExists},
	{common.ErrorNotFound, codes.NotFound},
	{common.ErrElevationRequired, codes.PermissionDenied},
	{common.ErrNoPendingChallenge, codes.FailedPrecondition},
	{common.ErrChallengeExpired, codes.FailedPrecondition},
	{common.ErrCodeMismatch, codes.InvalidArgument},
	{common.ErrDeliveryFailed, codes.Unavailable},
	{common.ErrStoreUnavailable, codes.Unavailable},
	{context.Canceled, codes.Canceled},
	{context.DeadlineExceeded, codes.DeadlineExceeded},
}

// toStatus converts a service error into a gRPC status error. Unknown
// errors are logged and reported as Internal without detail.
func (s *GRPCServer) toStatus(ctx context.Context, method string, err error) error {
	var rl *common.RateLimitError
	if errors.As(err, &rl) {
		st := status.New(codes.ResourceExhausted, rl.Error())
		if withInfo, derr := st.WithDetails(&errdetails.RetryInfo{RetryDelay: durationpb.New(rl.RetryAfter)}); derr == nil {
			st = withInfo
		}
		return st.Err()
	}

	for _, sc := range statusCodes {
		if errors.Is(err, sc.err) {
			return status.Error(sc.code, err.Error())
		}
	}

	s.logger.Error(ctx, "unexpected error", "method", method, "error", err)
	return status.Error(codes.Internal, "internal error")
}
