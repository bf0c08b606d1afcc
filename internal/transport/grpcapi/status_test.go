package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Leganyst/coaching-platform/internal/service"
)

func TestToStatus(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{&service.ValidationError{FieldErrors: map[string]string{"end": "must be after start"}}, codes.InvalidArgument},
		{fmt.Errorf("booking: %w", service.ErrNotFound), codes.NotFound},
		{service.ErrForbidden, codes.PermissionDenied},
		{&service.ConflictError{}, codes.AlreadyExists},
		{&service.OverlapError{CustomerID: uuid.New(), ExistingID: uuid.New()}, codes.AlreadyExists},
		{service.ErrOverrideExists, codes.AlreadyExists},
		{&service.AdmissionError{Reason: service.AdmissionInsufficientCredits}, codes.FailedPrecondition},
		{&service.StateError{Entity: "booking", Status: "cancelled", Action: "cancel"}, codes.FailedPrecondition},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{status.Error(codes.Unavailable, "down"), codes.Unavailable},
		{errors.New("connection reset"), codes.Internal},
	}
	for _, c := range cases {
		if got := status.Code(toStatus(c.err)); got != c.want {
			t.Fatalf("%v: expected %s, got %s", c.err, c.want, got)
		}
	}

	if st, _ := status.FromError(toStatus(errors.New("password=secret"))); st.Message() != "internal error" {
		t.Fatalf("expected internal errors to be masked, got %q", st.Message())
	}
}
