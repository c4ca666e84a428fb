package interceptors

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/voltx/rec-hub/internal/domain"
)

// CodeForKind maps a ledger error kind to a gRPC status code.
func CodeForKind(kind domain.Kind) codes.Code {
	switch kind {
	case domain.KindUnauthenticated:
		return codes.Unauthenticated
	case domain.KindUnauthorized:
		return codes.PermissionDenied
	case domain.KindInvalidInput, domain.KindInvalidRecipient, domain.KindInvalidAmount:
		return codes.InvalidArgument
	case domain.KindUnknownFacility, domain.KindUnknownEntry:
		return codes.NotFound
	case domain.KindDuplicateFacility:
		return codes.AlreadyExists
	case domain.KindInsufficientBalance, domain.KindInsufficientAllowance,
		domain.KindFacilityInactive, domain.KindMissingReason, domain.KindSystemPaused:
		return codes.FailedPrecondition
	case domain.KindArithmeticOverflow:
		return codes.OutOfRange
	default:
		return codes.Internal
	}
}

// UnaryErrorInterceptor turns ledger errors into gRPC statuses. Errors that
// are neither ledger errors nor statuses are logged and hidden behind
// codes.Internal.
func UnaryErrorInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err == nil {
			return resp, nil
		}
		if _, ok := status.FromError(err); ok {
			return nil, err
		}
		if kind := domain.KindOf(err); kind != "" {
			return nil, status.Error(CodeForKind(kind), err.Error())
		}

		log.Error("gRPC handler failed", zap.String("method", info.FullMethod), zap.Error(err))
		return nil, status.Error(codes.Internal, "internal error")
	}
}
