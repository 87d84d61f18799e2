package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/cryptexdrive/internal/common"
	"github.com/dmitrijs2005/cryptexdrive/internal/server/auth"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	errUnauthorized = status.Error(codes.Unauthenticated, "unauthorized")
	errInternal     = status.Error(codes.Internal, "internal error")
)

// toStatus maps a service error onto the public status. Anything that is not
// a known client-facing condition is logged and reported without detail.
func (s *GRPCServer) toStatus(ctx context.Context, op string, err error) error {
	var tokenErr *auth.TokenError
	switch {
	case errors.As(err, &tokenErr),
		errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrChallengeMissing),
		errors.Is(err, common.ErrChallengeExpired),
		errors.Is(err, common.ErrChallengeMismatch):
		return errUnauthorized
	case errors.Is(err, common.ErrForbidden):
		return status.Error(codes.PermissionDenied, "admin only")
	case errors.Is(err, common.ErrRateLimited):
		return status.Error(codes.ResourceExhausted, "rate limited")
	case errors.Is(err, common.ErrDuplicateIdentity):
		return status.Error(codes.AlreadyExists, "already exists")
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrInvalidName):
		return status.Error(codes.InvalidArgument, err.Error())
	}

	s.logger.Error(ctx, "request failed", "op", op, "error", err)
	return errInternal
}
