// Package projection rebuilds, on the client side, the list of messages
// from the history endpoint and the frames pushed by the server.
// Handles ordering and deduplication. Does not talk to the network.
package projection

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"kutter/domain"
)

// Frame is any frame pushed by the chat server.
type Frame struct {
	Action    domain.ActionName `json:"action"`
	ID        domain.MessageID  `json:"id"`
	MessageID domain.MessageID  `json:"message_id"`
	Email     string            `json:"email"`
	Username  string            `json:"username"`
	Message   string            `json:"message"`
	Time      time.Time         `json:"time"`
	Code      string            `json:"code"`
}

func ParseFrame(data []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	return frame, nil
}

// Timeline holds the messages known to one client, ordered by id.
type Timeline struct {
	Messages []domain.Message
}

func NewTimeline() *Timeline {
	return &Timeline{}
}

// Load replaces the timeline with a history snapshot.
func (t *Timeline) Load(history []domain.Message) {
	t.Messages = slices.Clone(history)
	slices.SortFunc(t.Messages, compareID)
	t.Messages = slices.CompactFunc(t.Messages, func(a, b domain.Message) bool { return a.ID == b.ID })
}

// Consume applies one server frame. Error frames leave the timeline
// untouched and are returned as errors.
func (t *Timeline) Consume(frame Frame) error {
	switch frame.Action {
	case domain.ActionNewMessage:
		t.insert(domain.Message{
			ID:        frame.ID,
			Author:    domain.Identity{Email: frame.Email, Username: frame.Username},
			Body:      frame.Message,
			CreatedAt: frame.Time,
		})
	case domain.ActionDelete:
		t.Messages = slices.DeleteFunc(t.Messages, func(m domain.Message) bool { return m.ID == frame.MessageID })
	case domain.ActionError:
		return fmt.Errorf("%s: %s", frame.Code, frame.Message)
	default:
		return fmt.Errorf("unknown action %q", frame.Action)
	}
	return nil
}

// insert keeps the timeline ordered; a message already known is ignored.
func (t *Timeline) insert(message domain.Message) {
	i, found := slices.BinarySearchFunc(t.Messages, message, compareID)
	if found {
		return
	}
	t.Messages = slices.Insert(t.Messages, i, message)
}

func compareID(a, b domain.Message) int {
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	default:
		return 0
	}
}
