//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"io"
	"reflect"
	"time"

	"kutter/domain"
	"kutter/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Sink is the send side of one registered connection.
// Send must never block: a peer that cannot keep up returns an error.
// Close must be idempotent.
type Sink interface {
	Send(frame []byte) error
	Close()
}

// BroadcastFunc delivers one event to every registered connection.
type BroadcastFunc func(evt event.ServerEvent)

type IRegistry interface {
	Register(id domain.ConnectionID, sink Sink) error
	Unregister(id domain.ConnectionID)
	Broadcast(evt event.ServerEvent)
	Broadcaster() BroadcastFunc
	Len() int
}

// Transport is the raw duplex link of one client.
// *websocket.Conn from gorilla satisfies it.
type Transport interface {
	NextReader() (messageType int, r io.Reader, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}
