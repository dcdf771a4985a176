package event

import (
	"encoding/json"
	"time"

	"kutter/domain"
	"kutter/errors"
)

// ServerEvent is a frame pushed by the server.
// NewMessage and Delete are broadcast to every connection,
// Rejected is only ever sent to the connection that caused it.
type ServerEvent interface {
	Action() domain.ActionName
	isServerEvent()
}

type NewMessage struct {
	ID       domain.MessageID
	Email    string
	Username string
	Message  string
	Time     time.Time
}

func NewMessageFrom(m domain.Message) NewMessage {
	return NewMessage{
		ID:       m.ID,
		Email:    m.Author.Email,
		Username: m.Author.Username,
		Message:  m.Body,
		Time:     m.CreatedAt,
	}
}

func (NewMessage) Action() domain.ActionName { return domain.ActionNewMessage }
func (NewMessage) isServerEvent()            {}

func (e NewMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Action   domain.ActionName `json:"action"`
		Email    string            `json:"email"`
		Username string            `json:"username"`
		Message  string            `json:"message"`
		Time     time.Time         `json:"time"`
		ID       domain.MessageID  `json:"id"`
	}{e.Action(), e.Email, e.Username, e.Message, e.Time, e.ID})
}

type Delete struct {
	MessageID domain.MessageID
}

func (Delete) Action() domain.ActionName { return domain.ActionDelete }
func (Delete) isServerEvent()            {}

func (e Delete) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Action    domain.ActionName `json:"action"`
		MessageID domain.MessageID  `json:"message_id"`
	}{e.Action(), e.MessageID})
}

// Rejected is the private acknowledgment of a failed client action.
type Rejected struct {
	Code    string
	Message string
}

func RejectedFrom(err error) Rejected {
	return Rejected{Code: errors.WireCode(err), Message: errors.WireMessage(err)}
}

func (Rejected) Action() domain.ActionName { return domain.ActionError }
func (Rejected) isServerEvent()            {}

func (e Rejected) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Action  domain.ActionName `json:"action"`
		Status  string            `json:"status"`
		Code    string            `json:"code"`
		Message string            `json:"message"`
	}{e.Action(), "error", e.Code, e.Message})
}
