package interceptors

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var info = &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

func TestRecoveryInterceptor(t *testing.T) {
	intercept := RecoveryInterceptor(zerolog.Nop())

	_, err := intercept(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		panic("boom")
	})
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err))

	resp, err := intercept(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestLoggingAndTracingPassThrough(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(requestIDKey, "req-9"))
	wantErr := status.Error(codes.NotFound, "missing")

	for name, intercept := range map[string]grpc.UnaryServerInterceptor{
		"logging": LoggingInterceptor(zerolog.Nop()),
		"tracing": TracingInterceptor(),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := intercept(ctx, nil, info, func(context.Context, interface{}) (interface{}, error) {
				return nil, wantErr
			})
			assert.Equal(t, wantErr, err)
		})
	}
}
