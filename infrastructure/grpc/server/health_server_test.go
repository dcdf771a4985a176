package server

import (
	"context"
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func TestHealthServer_Reports_Status(t *testing.T) {
	req := require.New(t)
	hs := NewHealthServer(slog.Default())
	srv := hs.NewGRPCServer()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	req.NoError(err)
	go func() { _ = srv.Serve(listener) }()
	defer srv.Stop()

	conn, err := grpc.NewClient(listener.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	req.NoError(err)
	defer func() { _ = conn.Close() }()
	client := grpc_health_v1.NewHealthClient(conn)
	ctx := context.Background()

	check := func(service string) grpc_health_v1.HealthCheckResponse_ServingStatus {
		resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
		req.NoError(err)
		return resp.GetStatus()
	}

	// Given a fresh server, the chat is not serving yet
	req.Equal(grpc_health_v1.HealthCheckResponse_NOT_SERVING, check(ChatServiceName))

	// When the chat is ready
	hs.SetServing(true)
	req.Equal(grpc_health_v1.HealthCheckResponse_SERVING, check(ChatServiceName))
	req.Equal(grpc_health_v1.HealthCheckResponse_SERVING, check(""))

	// When the process shuts down
	hs.Shutdown()
	req.Equal(grpc_health_v1.HealthCheckResponse_NOT_SERVING, check(ChatServiceName))
}
