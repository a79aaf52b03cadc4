package interceptors

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const requestIDKey = "x-request-id"

// LoggingInterceptor logs all gRPC requests with duration and status
func LoggingInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		duration := time.Since(start)
		st, _ := status.FromError(err)

		logEvent := logger.Debug()
		if err != nil {
			logEvent = logger.Error().Err(err)
		}
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ids := md.Get(requestIDKey); len(ids) > 0 {
				logEvent = logEvent.Str("request_id", ids[0])
			}
		}

		logEvent.
			Str("method", info.FullMethod).
			Dur("duration_ms", duration).
			Str("status", st.Code().String()).
			Msg("gRPC request completed")

		return resp, err
	}
}
