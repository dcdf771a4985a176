package runtime

import (
	"encoding/json"
	"log/slog"
	"sync"

	"kutter/contract"
	"kutter/domain"
	"kutter/domain/event"
	"kutter/errors"
)

// Registry is the single source of truth for who is currently connected.
// A single mutex guards register, unregister and the delivery loop of
// Broadcast, so a broadcast sees a fixed membership and two broadcasts
// reach every sink in the same order.
type Registry struct {
	mu    sync.Mutex
	log   *slog.Logger
	sinks map[domain.ConnectionID]contract.Sink
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:   log,
		sinks: make(map[domain.ConnectionID]contract.Sink),
	}
}

// Register adds a live connection. An id can only be registered once.
func (r *Registry) Register(id domain.ConnectionID, sink contract.Sink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sinks[id]; ok {
		return errors.ErrConnectionExists
	}
	r.sinks[id] = sink
	return nil
}

// Unregister removes a connection. Removing an absent id is a no-op,
// a connection may already have been dropped by a failed broadcast.
func (r *Registry) Unregister(id domain.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sinks, id)
}

// Broadcast serializes the event once and hands the frame to every sink.
// A sink that refuses the frame is removed and closed, the others still
// receive it, and nothing is reported to the caller.
func (r *Registry) Broadcast(evt event.ServerEvent) {
	frame, err := json.Marshal(evt)
	if err != nil {
		r.log.Error("Failed to encode broadcast event", "action", evt.Action(), "error", err)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for id, sink := range r.sinks {
		if err := sink.Send(frame); err != nil {
			r.log.Warn("Dropping connection after failed delivery",
				"connection_id", id,
				"action", evt.Action(),
				"error", err)
			delete(r.sinks, id)
			sink.Close()
		}
	}
}

// Broadcaster exposes Broadcast as a plain function for layers that emit
// server-initiated events without holding the registry itself.
func (r *Registry) Broadcaster() contract.BroadcastFunc {
	return r.Broadcast
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sinks)
}
