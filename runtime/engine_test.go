package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kutter/domain"
	"kutter/errors"
	"kutter/mocks"
	"kutter/repositories"
	"kutter/services"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	alice = domain.Identity{UserID: "u-alice", Email: "a@x.com", Username: "a"}
	bob   = domain.Identity{UserID: "u-bob", Email: "b@x.com", Username: "b"}
)

type harness struct {
	server     *httptest.Server
	registry   *Registry
	repository *repositories.MessageRepository
	cancel     context.CancelFunc
}

// newHarness serves the engine behind a test websocket endpoint.
// The identity is picked from the "user" query parameter, standing in for
// the session validation done by the real handshake handler.
func newHarness(t *testing.T, chatService services.IChatService) *harness {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	h := &harness{}

	if chatService == nil {
		db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
		require.NoError(t, err)
		repository, err := repositories.NewMessageRepository(db, log, 100, nil)
		require.NoError(t, err)
		t.Cleanup(func() {
			_ = repository.Close()
			_ = db.Close()
		})
		h.repository = repository
		chatService = services.NewChatService(log, repository, nil)
	}

	h.registry = NewRegistry(log)
	engine := NewEngine(log, h.registry, chatService, ConnectionConfig{
		SendBufferSize: 16,
		WriteTimeout:   time.Second,
		PongTimeout:    5 * time.Second,
		MaxFrameBytes:  4096,
	})

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	identities := map[string]domain.Identity{"alice": alice, "bob": bob}
	upgrader := websocket.Upgrader{}
	h.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := identities[r.URL.Query().Get("user")]
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = engine.Serve(ctx, conn, identity)
	}))
	t.Cleanup(func() {
		cancel()
		h.server.Close()
	})
	return h
}

func (h *harness) dial(t *testing.T, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (h *harness) waitConnections(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.registry.Len() == n }, 2*time.Second, 10*time.Millisecond)
}

func send(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func read(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func TestEngine_NewMessage_Is_Broadcast_To_Everyone(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, nil)
	a := h.dial(t, "alice")
	b := h.dial(t, "bob")
	h.waitConnections(t, 2)

	// When Alice posts a message
	send(t, a, `{"action":"new_message","payload":{"message":"hi"}}`)

	// Then both connections, Alice included, receive the same event
	for _, conn := range []*websocket.Conn{a, b} {
		frame := read(t, conn)
		req.Equal("new_message", frame["action"])
		req.Equal("a@x.com", frame["email"])
		req.Equal("a", frame["username"])
		req.Equal("hi", frame["message"])
		req.Equal(float64(1), frame["id"])
		_, err := time.Parse(time.RFC3339Nano, frame["time"].(string))
		req.NoError(err)
	}

	messages, err := h.repository.List()
	req.NoError(err)
	req.Len(messages, 1)
}

func TestEngine_Delete_By_Someone_Else_Is_Private(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, nil)
	a := h.dial(t, "alice")
	b := h.dial(t, "bob")
	h.waitConnections(t, 2)

	send(t, a, `{"action":"new_message","payload":{"message":"hi"}}`)
	read(t, a)
	read(t, b)

	// When Bob deletes Alice's message
	send(t, b, `{"action":"delete_message","payload":{"id":1}}`)

	// Then only Bob is told it is forbidden
	frame := read(t, b)
	req.Equal("error", frame["action"])
	req.Equal("forbidden", frame["code"])

	// And Alice's next frame is her own next message, no delete in between
	send(t, a, `{"action":"new_message","payload":{"message":"still here"}}`)
	req.Equal("still here", read(t, a)["message"])
	req.Equal("still here", read(t, b)["message"])

	// And message 1 still exists
	messages, err := h.repository.List()
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal(domain.MessageID(1), messages[0].ID)
}

func TestEngine_Delete_By_Author_Is_Broadcast(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, nil)
	a := h.dial(t, "alice")
	b := h.dial(t, "bob")
	h.waitConnections(t, 2)

	send(t, a, `{"action":"new_message","payload":{"message":"hi"}}`)
	read(t, a)
	read(t, b)

	send(t, a, `{"action":"delete_message","payload":{"id":1}}`)

	for _, conn := range []*websocket.Conn{a, b} {
		frame := read(t, conn)
		req.Equal(map[string]any{"action": "delete", "message_id": float64(1)}, frame)
	}

	messages, err := h.repository.List()
	req.NoError(err)
	req.Empty(messages)
}

func TestEngine_Rejections_Keep_The_Connection_Open(t *testing.T) {
	h := newHarness(t, nil)
	a := h.dial(t, "alice")
	b := h.dial(t, "bob")
	h.waitConnections(t, 2)

	tests := []struct {
		name  string
		frame string
		code  string
	}{
		{"not json", `garbage`, "protocol"},
		{"unknown action", `{"action":"edit_message","payload":{"id":1}}`, "protocol"},
		{"wrong payload", `{"action":"new_message","payload":{"id":1}}`, "protocol"},
		{"empty body", `{"action":"new_message","payload":{"message":"   "}}`, "validation"},
		{"too long", fmt.Sprintf(`{"action":"new_message","payload":{"message":"%s"}}`, strings.Repeat("x", 101)), "validation"},
		{"missing message", `{"action":"delete_message","payload":{"id":99}}`, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			send(t, a, tt.frame)
			frame := read(t, a)
			req.Equal("error", frame["action"])
			req.Equal("error", frame["status"])
			req.Equal(tt.code, frame["code"])
			req.NotEmpty(frame["message"])
		})
	}

	req := require.New(t)
	require.NoError(t, a.WriteMessage(websocket.BinaryMessage, []byte{0x01}))
	req.Equal("protocol", read(t, a)["code"])

	// The connection is still usable and Bob saw none of the rejections
	send(t, a, `{"action":"new_message","payload":{"message":"hi"}}`)
	req.Equal("new_message", read(t, a)["action"])
	req.Equal("hi", read(t, b)["message"])
	req.Equal(2, h.registry.Len())
}

func TestEngine_Oversized_Frame_Is_A_Private_Validation_Error(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, nil)
	a := h.dial(t, "alice")
	b := h.dial(t, "bob")
	h.waitConnections(t, 2)

	// When Alice sends a frame larger than the 4096 bytes allowed
	send(t, a, fmt.Sprintf(`{"action":"new_message","payload":{"message":"%s"}}`, strings.Repeat("x", 5000)))

	// Then only she is told, and her connection survives
	frame := read(t, a)
	req.Equal("error", frame["action"])
	req.Equal("validation", frame["code"])
	req.Equal(2, h.registry.Len())

	send(t, a, `{"action":"new_message","payload":{"message":"shorter"}}`)
	req.Equal("shorter", read(t, a)["message"])
	req.Equal("shorter", read(t, b)["message"])

	messages, err := h.repository.List()
	req.NoError(err)
	req.Len(messages, 1)
}

func TestEngine_ReadFrame_Drains_Oversized_Frames(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	transport := mocks.NewMockTransport(ctrl)

	oversized := strings.NewReader(strings.Repeat("x", 20))
	gomock.InOrder(
		transport.EXPECT().NextReader().Return(websocket.TextMessage, oversized, nil),
		transport.EXPECT().NextReader().Return(websocket.TextMessage, strings.NewReader("0123456789"), nil),
		transport.EXPECT().NextReader().Return(0, nil, io.ErrUnexpectedEOF),
	)
	engine := NewEngine(slog.Default(), NewRegistry(slog.Default()), nil, ConnectionConfig{MaxFrameBytes: 10})

	_, _, err := engine.readFrame(transport)
	req.ErrorIs(err, errors.ErrMessageTooLong)
	req.ErrorIs(err, errors.ErrValidation)
	req.Zero(oversized.Len())

	messageType, data, err := engine.readFrame(transport)
	req.NoError(err)
	req.Equal(websocket.TextMessage, messageType)
	req.Equal("0123456789", string(data))

	_, _, err = engine.readFrame(transport)
	req.ErrorIs(err, io.ErrUnexpectedEOF)
}

func TestEngine_Storage_Failure_Is_A_Private_Internal_Error(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	chatService := mocks.NewMockIChatService(ctrl)
	chatService.EXPECT().
		PostMessage(gomock.Any(), alice, "hi").
		Return(domain.Message{}, fmt.Errorf("badger: disk full")).
		Times(1)
	chatService.EXPECT().
		DeleteMessage(gomock.Any(), alice, domain.MessageID(5)).
		Return(nil).
		Times(1)

	h := newHarness(t, chatService)
	a := h.dial(t, "alice")
	b := h.dial(t, "bob")
	h.waitConnections(t, 2)

	send(t, a, `{"action":"new_message","payload":{"message":"hi"}}`)
	frame := read(t, a)
	req.Equal("internal", frame["code"])
	req.Equal("internal error", frame["message"])

	// Bob's first frame is the next broadcast, not the failure
	send(t, a, `{"action":"delete_message","payload":{"id":5}}`)
	req.Equal(map[string]any{"action": "delete", "message_id": float64(5)}, read(t, b))
}

func TestEngine_Disconnect_Unregisters(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, nil)
	a := h.dial(t, "alice")
	b := h.dial(t, "bob")
	h.waitConnections(t, 2)

	// When Bob leaves
	req.NoError(b.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	req.NoError(b.Close())

	// Then the registry forgets him and Alice keeps chatting
	h.waitConnections(t, 1)
	send(t, a, `{"action":"new_message","payload":{"message":"anyone?"}}`)
	req.Equal("anyone?", read(t, a)["message"])
}

func TestEngine_Shutdown_Closes_Every_Connection(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, nil)
	a := h.dial(t, "alice")
	h.dial(t, "bob")
	h.waitConnections(t, 2)

	h.cancel()

	h.waitConnections(t, 0)
	req.NoError(a.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err := a.ReadMessage()
	req.Error(err)
}
