package workers

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
)

// GrpcServerWorker serves the operational gRPC services.
// newServer is called on each run since a stopped grpc.Server cannot serve again.
type GrpcServerWorker struct {
	log       *slog.Logger
	address   string
	newServer func() *grpc.Server
}

func NewGrpcServerWorker(log *slog.Logger, address string, newServer func() *grpc.Server) *GrpcServerWorker {
	return &GrpcServerWorker{log: log, address: address, newServer: newServer}
}

func (w *GrpcServerWorker) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", w.address)
	if err != nil {
		return err
	}
	return w.Serve(ctx, listener)
}

func (w *GrpcServerWorker) Serve(ctx context.Context, listener net.Listener) error {
	s := w.newServer()

	errChan := make(chan error, 1)
	go func() {
		w.log.Info("Starting gRPC server", "address", listener.Addr().String(), "at", time.Now().UTC())
		for serviceName := range s.GetServiceInfo() {
			w.log.Debug("gRPC exposed services", "name", serviceName)
		}
		errChan <- s.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		s.GracefulStop()
		w.log.Info("gRPC server stopped")
		return nil
	case err := <-errChan:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}
