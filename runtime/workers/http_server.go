package workers

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// HttpServerWorker serves the chat endpoints until ctx is canceled.
// Every request context derives from ctx, so live websocket sessions end
// with the worker even though Shutdown does not wait for hijacked
// connections.
type HttpServerWorker struct {
	log             *slog.Logger
	address         string
	handler         http.Handler
	shutdownTimeout time.Duration
}

func NewHttpServerWorker(log *slog.Logger, address string, handler http.Handler, shutdownTimeout time.Duration) *HttpServerWorker {
	return &HttpServerWorker{
		log:             log,
		address:         address,
		handler:         handler,
		shutdownTimeout: shutdownTimeout,
	}
}

func (w *HttpServerWorker) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", w.address)
	if err != nil {
		return err
	}
	return w.Serve(ctx, listener)
}

// Serve runs the server on an existing listener.
func (w *HttpServerWorker) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           w.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errChan := make(chan error, 1)
	go func() {
		w.log.Info("Starting HTTP server", "address", listener.Addr().String(), "at", time.Now().UTC())
		errChan <- server.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			w.log.Warn("HTTP server shutdown", "error", err)
		}
		w.log.Info("HTTP server stopped")
		return nil
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
