package domain

import (
	"encoding/json"
	"fmt"

	"kutter/errors"
)

type ActionName string

const (
	ActionNewMessage    ActionName = "new_message"
	ActionDeleteMessage ActionName = "delete_message"
	ActionDelete        ActionName = "delete"
	ActionError         ActionName = "error"
)

// Command is a client action received on a duplex connection.
// The set of implementations is closed: NewMessageCommand and DeleteMessageCommand.
type Command interface {
	Action() ActionName
	isCommand()
}

type NewMessageCommand struct {
	Body string
}

func (NewMessageCommand) Action() ActionName { return ActionNewMessage }
func (NewMessageCommand) isCommand()         {}

type DeleteMessageCommand struct {
	ID MessageID
}

func (DeleteMessageCommand) Action() ActionName { return ActionDeleteMessage }
func (DeleteMessageCommand) isCommand()         {}

type envelope struct {
	Action  ActionName      `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

type newMessagePayload struct {
	Message *string `json:"message"`
}

type deleteMessagePayload struct {
	ID *int64 `json:"id"`
}

// DecodeCommand parses one inbound frame using the "action" discriminant.
// Unknown actions and payloads that do not match the action's shape are
// rejected with a protocol error.
func DecodeCommand(data []byte) (Command, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedPayload, err)
	}
	switch env.Action {
	case ActionNewMessage:
		var p newMessagePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.Message == nil {
			return nil, fmt.Errorf("%w: new_message expects {\"message\": string}", errors.ErrMalformedPayload)
		}
		return NewMessageCommand{Body: *p.Message}, nil
	case ActionDeleteMessage:
		var p deleteMessagePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.ID == nil {
			return nil, fmt.Errorf("%w: delete_message expects {\"id\": integer}", errors.ErrMalformedPayload)
		}
		return DeleteMessageCommand{ID: MessageID(*p.ID)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownAction, env.Action)
	}
}
