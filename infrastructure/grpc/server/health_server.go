package server

import (
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ChatServiceName is the health service name reported for the chat endpoint.
const ChatServiceName = "kutter.Chat"

// HealthServer exposes the standard gRPC health protocol on the ops port.
type HealthServer struct {
	log    *slog.Logger
	health *health.Server
}

func NewHealthServer(log *slog.Logger) *HealthServer {
	h := health.NewServer()
	h.SetServingStatus(ChatServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return &HealthServer{log: log, health: h}
}

// NewGRPCServer builds a server carrying health and reflection services.
func (s *HealthServer) NewGRPCServer() *grpc.Server {
	srv := grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(srv, s.health)
	reflection.Register(srv)
	return srv
}

// SetServing flips the overall and chat statuses.
func (s *HealthServer) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ChatServiceName, status)
	s.log.Debug("Health status changed", "status", status.String())
}

// Shutdown reports NOT_SERVING for every service, for good.
func (s *HealthServer) Shutdown() {
	s.health.Shutdown()
}
