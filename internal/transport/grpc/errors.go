package grpc

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"scheduleit/backend/internal/domain"
	"scheduleit/backend/internal/service"
	"scheduleit/backend/internal/service/appointments"
)

const overlapMessage = "That time overlaps another appointment. Pick a different slot."

// statusError logs err at the level its class deserves and converts it into a
// gRPC status. Internal details never reach the client.
func statusError(log *slog.Logger, err error, attrs ...any) error {
	var (
		vErr  *service.ValidationError
		nfErr *service.NotFoundError
		rvErr *domain.RuleViolationError
	)
	withErr := append([]any{slog.Any("err", err)}, attrs...)

	switch {
	case appointments.IsOverlap(err):
		log.Info("appointment slot conflict", attrs...)
		return status.Error(codes.FailedPrecondition, overlapMessage)
	case errors.As(err, &vErr):
		log.Warn("invalid request", withErr...)
		return status.Error(codes.InvalidArgument, vErr.Error())
	case errors.As(err, &nfErr):
		log.Info("not found", withErr...)
		return status.Error(codes.NotFound, nfErr.Error())
	case errors.As(err, &rvErr):
		log.Info("rule violation", withErr...)
		return status.Error(codes.FailedPrecondition, rvErr.Error())
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("request deadline exceeded", withErr...)
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	default:
		log.Error("request failed", withErr...)
		return status.Error(codes.Internal, "internal error")
	}
}
