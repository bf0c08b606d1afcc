package grpcapi

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Leganyst/coaching-platform/internal/service"
)

// toStatus maps service errors onto gRPC codes. Infrastructure errors are
// reported as Internal without their text.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var (
		validation *service.ValidationError
		admission  *service.AdmissionError
		conflict   *service.ConflictError
		overlap    *service.OverlapError
		state      *service.StateError
	)
	switch {
	case errors.As(err, &validation):
		return status.Error(codes.InvalidArgument, validation.Error())
	case errors.Is(err, service.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.As(err, &conflict), errors.As(err, &overlap), errors.Is(err, service.ErrOverrideExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.As(err, &admission):
		return status.Error(codes.FailedPrecondition, admission.Error())
	case errors.As(err, &state):
		return status.Error(codes.FailedPrecondition, state.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
