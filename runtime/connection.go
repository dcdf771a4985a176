package runtime

import (
	"log/slog"
	"sync"
	"time"

	"kutter/contract"
	"kutter/domain"
	"kutter/errors"

	"github.com/gorilla/websocket"
)

type ConnectionConfig struct {
	SendBufferSize int
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	MaxFrameBytes  int64
}

func (c ConnectionConfig) pingPeriod() time.Duration {
	return c.PongTimeout * 9 / 10
}

// Connection is the send handle of one duplex link.
// Frames are queued on a bounded buffer and written by a single goroutine,
// the only writer allowed on the transport.
type Connection struct {
	id        domain.ConnectionID
	identity  domain.Identity
	transport contract.Transport
	log       *slog.Logger
	config    ConnectionConfig
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewConnection(identity domain.Identity, transport contract.Transport, log *slog.Logger, config ConnectionConfig) *Connection {
	id := domain.NewConnectionID()
	return &Connection{
		id:        id,
		identity:  identity,
		transport: transport,
		log:       log.With("connection_id", id.String(), "user_id", identity.UserID),
		config:    config,
		send:      make(chan []byte, max(config.SendBufferSize, 1)),
		done:      make(chan struct{}),
	}
}

func (c *Connection) ID() domain.ConnectionID { return c.id }

func (c *Connection) Identity() domain.Identity { return c.identity }

// Send queues a frame without blocking.
func (c *Connection) Send(frame []byte) error {
	select {
	case <-c.done:
		return errors.ErrConnectionClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return errors.ErrSendBufferFull
	}
}

// Close stops the writer and closes the transport, which also unblocks the reader.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.transport.Close()
	})
}

// Done is closed once the connection is closed.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

func (c *Connection) writePump() {
	defer c.Close()

	var ping <-chan time.Time
	if c.config.PongTimeout > 0 {
		ticker := time.NewTicker(c.config.pingPeriod())
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				c.log.Warn("Failed to write frame", "error", err)
				return
			}
		case <-ping:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.log.Warn("Failed to write ping", "error", err)
				return
			}
		}
	}
}

func (c *Connection) write(messageType int, data []byte) error {
	if c.config.WriteTimeout > 0 {
		if err := c.transport.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
			return err
		}
	}
	return c.transport.WriteMessage(messageType, data)
}
