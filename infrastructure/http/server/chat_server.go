package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"kutter/auth"
	"kutter/domain"
	"kutter/errors"
	"kutter/runtime"
	"kutter/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// ChatServer is the HTTP surface of the chat: the websocket handshake,
// the message history and a liveness check.
type ChatServer struct {
	log            *slog.Logger
	engine         *runtime.Engine
	chatService    services.IChatService
	validator      auth.ISessionValidator
	cookieName     string
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

// HistoryEntry is one message of the history endpoint.
type HistoryEntry struct {
	ID       domain.MessageID `json:"id"`
	Email    string           `json:"email"`
	Username string           `json:"username"`
	Message  string           `json:"message"`
	Time     time.Time        `json:"time"`
}

func NewChatServer(
	log *slog.Logger,
	engine *runtime.Engine,
	chatService services.IChatService,
	validator auth.ISessionValidator,
	cookieName string,
	allowedOrigins []string,
) *ChatServer {
	s := &ChatServer{
		log:            log,
		engine:         engine,
		chatService:    chatService,
		validator:      validator,
		cookieName:     cookieName,
		allowedOrigins: allowedOrigins,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *ChatServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Get("/up", s.Up)
	r.Get("/messages", s.GetMessages)
	r.Get("/ws", s.Connect)
	return r
}

// Connect validates the session token, upgrades the request and hands the
// connection to the engine. It returns when the connection is closed.
func (s *ChatServer) Connect(w http.ResponseWriter, r *http.Request) {
	identity, err := s.validator.Validate(auth.TokenFromRequest(r, s.cookieName))
	if err != nil {
		s.log.Debug("Handshake refused", "remote", r.RemoteAddr, "error", err)
		writeJSONError(w, http.StatusUnauthorized, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader already answered the client
		s.log.Warn("Upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	if err := s.engine.Serve(r.Context(), conn, identity); err != nil {
		s.log.Debug("Connection ended", "user_id", identity.UserID, "error", err)
	}
}

// GetMessages returns the stored messages, oldest first.
func (s *ChatServer) GetMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := s.chatService.GetMessages(r.Context())
	if err != nil {
		s.log.Error("Failed to list messages", "error", err)
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}

	entries := lo.Map(messages, func(m domain.Message, _ int) HistoryEntry {
		return HistoryEntry{
			ID:       m.ID,
			Email:    m.Author.Email,
			Username: m.Author.Username,
			Message:  m.Body,
			Time:     m.CreatedAt,
		}
	})
	writeJSON(w, http.StatusOK, entries)
}

func (s *ChatServer) Up(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *ChatServer) originAllowed(origin string) bool {
	return lo.Contains(s.allowedOrigins, "*") || lo.Contains(s.allowedOrigins, origin)
}

// checkOrigin lets non browser clients through, they send no Origin.
func (s *ChatServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || s.originAllowed(origin)
}

func (s *ChatServer) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{
		"status":  "error",
		"code":    errors.WireCode(err),
		"message": errors.WireMessage(err),
	})
}
