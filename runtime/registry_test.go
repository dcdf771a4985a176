package runtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"kutter/domain"
	"kutter/domain/event"
	"kutter/errors"
	"kutter/mocks"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/sync/errgroup"
)

// recordingSink keeps every frame it receives.
type recordingSink struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (s *recordingSink) Send(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
	return nil
}

func (s *recordingSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *recordingSink) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.frames...)
}

func newMessageEvent(id domain.MessageID, body string) event.NewMessage {
	return event.NewMessage{
		ID:       id,
		Email:    "a@x.com",
		Username: "a",
		Message:  body,
		Time:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRegistry_Register_And_Unregister(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	id1, id2 := domain.NewConnectionID(), domain.NewConnectionID()

	// Given no connection
	req.Equal(0, registry.Len())

	// When two connections register
	req.NoError(registry.Register(id1, &recordingSink{}))
	req.NoError(registry.Register(id2, &recordingSink{}))
	req.Equal(2, registry.Len())

	// Then the same id cannot register twice
	req.ErrorIs(registry.Register(id1, &recordingSink{}), errors.ErrConnectionExists)
	req.Equal(2, registry.Len())

	// And unregistering twice is a no-op the second time
	registry.Unregister(id1)
	registry.Unregister(id1)
	req.Equal(1, registry.Len())

	registry.Unregister(domain.NewConnectionID())
	req.Equal(1, registry.Len())
}

func TestRegistry_Broadcast_Delivers_Once_To_Every_Sink(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	registry := NewRegistry(logs.GetLoggerFromLevel(slog.LevelDebug))

	evt := newMessageEvent(1, "hi")
	frame, err := json.Marshal(evt)
	req.NoError(err)

	sinks := []*mocks.MockSink{mocks.NewMockSink(ctrl), mocks.NewMockSink(ctrl), mocks.NewMockSink(ctrl)}
	for _, sink := range sinks {
		sink.EXPECT().Send(frame).Return(nil).Times(1)
		req.NoError(registry.Register(domain.NewConnectionID(), sink))
	}

	registry.Broadcast(evt)
	req.Equal(3, registry.Len())
}

func TestRegistry_Broadcast_Drops_Failing_Sink_Only(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	registry := NewRegistry(logs.GetLoggerFromLevel(slog.LevelDebug))

	healthy := &recordingSink{}
	failing := mocks.NewMockSink(ctrl)
	failing.EXPECT().Send(gomock.Any()).Return(errors.ErrSendBufferFull).Times(1)
	failing.EXPECT().Close().Times(1)

	req.NoError(registry.Register(domain.NewConnectionID(), healthy))
	failingID := domain.NewConnectionID()
	req.NoError(registry.Register(failingID, failing))

	// When the first broadcast fails on one sink
	registry.Broadcast(newMessageEvent(1, "first"))

	// Then that sink is gone and the other one still got the event
	req.Equal(1, registry.Len())
	req.Len(healthy.Frames(), 1)

	// And later broadcasts never target the dropped sink
	registry.Broadcast(newMessageEvent(2, "second"))
	req.Len(healthy.Frames(), 2)

	// And the engine's own unregister is harmless
	registry.Unregister(failingID)
	req.Equal(1, registry.Len())
}

func TestRegistry_Register_Then_Unregister_Leaves_Others_Untouched(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	registry := NewRegistry(slog.Default())

	stayer := &recordingSink{}
	req.NoError(registry.Register(domain.NewConnectionID(), stayer))

	leaver := mocks.NewMockSink(ctrl)
	leaver.EXPECT().Send(gomock.Any()).Times(0)
	leaverID := domain.NewConnectionID()
	req.NoError(registry.Register(leaverID, leaver))
	registry.Unregister(leaverID)

	registry.Broadcast(event.Delete{MessageID: 3})

	req.Len(stayer.Frames(), 1)
	req.JSONEq(`{"action":"delete","message_id":3}`, string(stayer.Frames()[0]))
}

func TestRegistry_Broadcaster_Is_Broadcast(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())
	sink := &recordingSink{}
	req.NoError(registry.Register(domain.NewConnectionID(), sink))

	broadcast := registry.Broadcaster()
	broadcast(event.Delete{MessageID: 9})

	req.Len(sink.Frames(), 1)
}

// Stable members must all observe the same sequence of events while other
// connections come and go and several goroutines broadcast at once.
func TestRegistry_Concurrent_Broadcasts_Keep_A_Single_Order(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(slog.Default())

	stable := make([]*recordingSink, 4)
	for i := range stable {
		stable[i] = &recordingSink{}
		req.NoError(registry.Register(domain.NewConnectionID(), stable[i]))
	}

	const broadcasters = 6
	const perBroadcaster = 50
	var g errgroup.Group
	for b := 0; b < broadcasters; b++ {
		g.Go(func() error {
			for i := 0; i < perBroadcaster; i++ {
				registry.Broadcast(newMessageEvent(domain.MessageID(b*perBroadcaster+i), fmt.Sprintf("b%d-%d", b, i)))
			}
			return nil
		})
	}
	g.Go(func() error {
		for i := 0; i < 200; i++ {
			id := domain.NewConnectionID()
			if err := registry.Register(id, &recordingSink{}); err != nil {
				return err
			}
			registry.Unregister(id)
		}
		return nil
	})
	req.NoError(g.Wait())

	reference := stable[0].Frames()
	req.Len(reference, broadcasters*perBroadcaster)
	for _, sink := range stable[1:] {
		req.Equal(reference, sink.Frames())
	}
	req.Equal(len(stable), registry.Len())
}
