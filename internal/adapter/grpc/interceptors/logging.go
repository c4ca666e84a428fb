package interceptors

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// UnaryLoggingInterceptor logs each call once it finishes. Internal failures
// log at error level; rejected calls (bad input, auth, paused) at warn.
func UnaryLoggingInterceptor(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("duration", time.Since(start)),
			zap.String("code", code.String()),
		}

		switch {
		case err == nil:
			log.Info("gRPC request completed", fields...)
		case code == codes.Internal || code == codes.Unknown:
			fields = append(fields, zap.Error(err))
			log.Error("gRPC request failed", fields...)
		default:
			fields = append(fields, zap.Error(err))
			log.Warn("gRPC request rejected", fields...)
		}

		return resp, err
	}
}
