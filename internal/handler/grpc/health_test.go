package grpc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

// testServer serves the health service over an in-memory listener
func testServer(t *testing.T, monitor *HealthMonitor) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	server := NewServer(monitor, zerolog.Nop())
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func TestHealthMonitor_Probe(t *testing.T) {
	var storeErr error
	monitor := NewHealthMonitor("books-service", map[string]Check{
		"store": func(context.Context) error { return storeErr },
	}, time.Minute, zerolog.Nop())
	client := testServer(t, monitor)
	ctx := context.Background()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: "books-service"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status, "not serving before the first probe")

	require.True(t, monitor.Probe(ctx))
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: "books-service"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	storeErr = errors.New("connection refused")
	require.False(t, monitor.Probe(ctx))
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{Service: "books-service"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)
}

func TestHealthMonitor_UnknownService(t *testing.T) {
	monitor := NewHealthMonitor("books-service", nil, time.Minute, zerolog.Nop())
	client := testServer(t, monitor)

	_, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "payments"})
	assert.Error(t, err)
}

func TestHealthMonitor_StartStopsWithContext(t *testing.T) {
	monitor := NewHealthMonitor("books-service", nil, time.Millisecond, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		monitor.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}
