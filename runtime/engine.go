// Package runtime owns live connections: the registry of who is connected,
// the per-connection receive loop and the fan-out of server events.
// It contains no storage or validation rules.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"kutter/contract"
	"kutter/domain"
	"kutter/domain/event"
	"kutter/errors"
	"kutter/services"

	"github.com/gorilla/websocket"
)

// Engine runs the lifecycle of every connection:
// Connecting -> Authenticated -> Active -> Closed.
// Connecting happens before Serve, in the handshake handler.
type Engine struct {
	log         *slog.Logger
	registry    contract.IRegistry
	broadcast   contract.BroadcastFunc
	chatService services.IChatService
	config      ConnectionConfig
}

func NewEngine(log *slog.Logger, registry contract.IRegistry, chatService services.IChatService, config ConnectionConfig) *Engine {
	return &Engine{
		log:         log,
		registry:    registry,
		broadcast:   registry.Broadcaster(),
		chatService: chatService,
		config:      config,
	}
}

// Serve is the handshake entry point. It takes an upgraded transport and the
// identity already returned by session validation, registers the connection
// and runs its receive loop until the peer leaves, the transport fails or ctx
// is canceled. The connection is always unregistered and closed on return.
func (e *Engine) Serve(ctx context.Context, transport contract.Transport, identity domain.Identity) error {
	conn := NewConnection(identity, transport, e.log, e.config)

	// Authenticated
	if err := e.registry.Register(conn.ID(), conn); err != nil {
		conn.Close()
		return err
	}
	conn.log.Info("Connection registered")

	defer func() {
		e.registry.Unregister(conn.ID())
		conn.Close()
		conn.log.Info("Connection closed")
	}()

	go conn.writePump()
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-conn.Done():
		}
	}()

	// Active
	return e.receive(ctx, conn)
}

func (e *Engine) receive(ctx context.Context, conn *Connection) error {
	transport := conn.transport
	if e.config.PongTimeout > 0 {
		if err := transport.SetReadDeadline(time.Now().Add(e.config.PongTimeout)); err != nil {
			return fmt.Errorf("%w: %v", errors.ErrTransport, err)
		}
		transport.SetPongHandler(func(string) error {
			return transport.SetReadDeadline(time.Now().Add(e.config.PongTimeout))
		})
	}

	for {
		messageType, data, err := e.readFrame(transport)
		if errors.Is(err, errors.ErrMessageTooLong) {
			e.reject(conn, err)
			continue
		}
		if err != nil {
			return e.closeReason(ctx, conn, err)
		}

		if messageType != websocket.TextMessage {
			e.reject(conn, fmt.Errorf("%w: only text frames are accepted", errors.ErrProtocol))
			continue
		}

		cmd, err := domain.DecodeCommand(data)
		if err != nil {
			e.reject(conn, err)
			continue
		}
		e.handle(ctx, conn, cmd)
	}
}

// readFrame reads the next frame, keeping at most MaxFrameBytes of it.
// A larger frame is drained and reported as ErrMessageTooLong, the link
// stays usable for the next frame.
func (e *Engine) readFrame(transport contract.Transport) (int, []byte, error) {
	messageType, r, err := transport.NextReader()
	if err != nil {
		return 0, nil, err
	}
	if e.config.MaxFrameBytes <= 0 {
		data, err := io.ReadAll(r)
		return messageType, data, err
	}

	data, err := io.ReadAll(io.LimitReader(r, e.config.MaxFrameBytes+1))
	if err != nil {
		return 0, nil, err
	}
	if int64(len(data)) <= e.config.MaxFrameBytes {
		return messageType, data, nil
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return 0, nil, err
	}
	return messageType, nil, fmt.Errorf("%w: frame exceeds %d bytes", errors.ErrMessageTooLong, e.config.MaxFrameBytes)
}

// handle applies one client action. Effects of a connection's actions happen
// in the order they were read: store mutation first, then broadcast.
func (e *Engine) handle(ctx context.Context, conn *Connection, cmd domain.Command) {
	switch c := cmd.(type) {
	case domain.NewMessageCommand:
		message, err := e.chatService.PostMessage(ctx, conn.Identity(), c.Body)
		if err != nil {
			e.reject(conn, err)
			return
		}
		e.broadcast(event.NewMessageFrom(message))
	case domain.DeleteMessageCommand:
		if err := e.chatService.DeleteMessage(ctx, conn.Identity(), c.ID); err != nil {
			e.reject(conn, err)
			return
		}
		e.broadcast(event.Delete{MessageID: c.ID})
	default:
		e.reject(conn, fmt.Errorf("%w: %s", errors.ErrUnknownAction, cmd.Action()))
	}
}

// reject answers the originating connection only.
func (e *Engine) reject(conn *Connection, err error) {
	if errors.WireCode(err) == "internal" {
		conn.log.Error("Action failed", "error", err)
	} else {
		conn.log.Debug("Action rejected", "error", err)
	}

	frame, mErr := json.Marshal(event.RejectedFrom(err))
	if mErr != nil {
		conn.log.Error("Failed to encode rejection", "error", mErr)
		return
	}
	if sErr := conn.Send(frame); sErr != nil {
		conn.log.Warn("Failed to deliver rejection, closing", "error", sErr)
		conn.Close()
	}
}

// closeReason tells a regular departure from a transport failure.
func (e *Engine) closeReason(ctx context.Context, conn *Connection, err error) error {
	select {
	case <-conn.Done():
		// Closed locally: shutdown, failed delivery or write error
		return nil
	default:
	}
	if ctx.Err() != nil {
		return nil
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return nil
	}
	conn.log.Warn("Connection lost", "error", err)
	return fmt.Errorf("%w: %v", errors.ErrTransport, err)
}
