package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"kutter/auth"
	"kutter/domain"
	"kutter/projection"

	"github.com/Netflix/go-env"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string `env:"CHAT_SERVER_ADDR,default=localhost:8080"`
	Token         string `env:"CHAT_TOKEN,required=true"`
	LogLevel      string `env:"LOG_LEVEL,default=INFO"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run loads the history, then reads frames until Ctrl+C.
// Each stdin line is posted, "/delete <id>" deletes a message.
func run() (int, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	timeline := projection.NewTimeline()
	if err := loadHistory(ctx, config.ServerAddress, timeline); err != nil {
		return exitRuntime, err
	}
	for _, m := range timeline.Messages {
		printMessage(log, m)
	}

	url := fmt.Sprintf("ws://%s/ws", config.ServerAddress)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, http.Header{
		"Cookie": {auth.DefaultCookieName + "=" + config.Token},
	})
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", url, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()
	log.Info(fmt.Sprintf(">>> Connected to %s (Ctrl+C to quit)", config.ServerAddress))

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()
	go readInput(log, conn)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return exitOK, nil
			}
			return exitRuntime, fmt.Errorf("connection error: %w", err)
		}
		frame, err := projection.ParseFrame(data)
		if err != nil {
			log.Warn("Unreadable frame", "error", err)
			continue
		}
		if err := timeline.Consume(frame); err != nil {
			log.Warn("Rejected", "error", err)
			continue
		}
		if frame.Action == domain.ActionDelete {
			log.Info(fmt.Sprintf("message %d deleted", frame.MessageID))
			continue
		}
		printMessage(log, domain.Message{
			ID:        frame.ID,
			Author:    domain.Identity{Email: frame.Email, Username: frame.Username},
			Body:      frame.Message,
			CreatedAt: frame.Time,
		})
	}
}

func loadHistory(ctx context.Context, address string, timeline *projection.Timeline) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://%s/messages", address), nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	defer resp.Body.Close()

	var frames []projection.Frame
	if err := json.NewDecoder(resp.Body).Decode(&frames); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	for _, frame := range frames {
		frame.Action = domain.ActionNewMessage
		_ = timeline.Consume(frame)
	}
	return nil
}

// readInput is the only data writer of conn.
func readInput(log *slog.Logger, conn *websocket.Conn) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var frame any
		if arg, ok := strings.CutPrefix(line, "/delete "); ok {
			id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
			if err != nil {
				log.Warn("Usage: /delete <id>")
				continue
			}
			frame = map[string]any{"action": domain.ActionDeleteMessage, "payload": map[string]any{"id": id}}
		} else {
			frame = map[string]any{"action": domain.ActionNewMessage, "payload": map[string]any{"message": line}}
		}
		if err := conn.WriteJSON(frame); err != nil {
			log.Error("Send failed", "error", err)
			return
		}
	}
}

func printMessage(log *slog.Logger, m domain.Message) {
	log.Info(fmt.Sprintf("#%d [%s] %s: %s",
		m.ID,
		m.CreatedAt.Local().Format(time.TimeOnly),
		m.Author.Username,
		m.Body,
	))
}
