package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// ErrUnauthorized is the only error surfaced by session validation,
	// whatever the underlying cause.
	ErrUnauthorized = fmt.Errorf("unauthorized")

	ErrValidation     = fmt.Errorf("invalid message")
	ErrEmptyMessage   = fmt.Errorf("%w: message is empty", ErrValidation)
	ErrMessageTooLong = fmt.Errorf("%w: message is too long", ErrValidation)

	ErrForbidden = fmt.Errorf("you can only delete your own messages")
	ErrNotFound  = fmt.Errorf("message not found")

	ErrProtocol         = fmt.Errorf("protocol error")
	ErrUnknownAction    = fmt.Errorf("%w: unknown action", ErrProtocol)
	ErrMalformedPayload = fmt.Errorf("%w: malformed payload", ErrProtocol)

	ErrTransport        = fmt.Errorf("transport error")
	ErrSendBufferFull   = fmt.Errorf("%w: send buffer full", ErrTransport)
	ErrConnectionClosed = fmt.Errorf("%w: connection closed", ErrTransport)

	ErrConnectionExists = fmt.Errorf("connection already registered")
	ErrEmptyWords       = fmt.Errorf("no words have been found")
)

// WireCode maps an error to the code carried by a private error frame.
// Anything outside the taxonomy is reported as internal so storage
// details never reach the client.
func WireCode(err error) string {
	switch {
	case err == nil:
		return ""
	case Is(err, ErrUnauthorized):
		return "unauthorized"
	case Is(err, ErrValidation):
		return "validation"
	case Is(err, ErrForbidden):
		return "forbidden"
	case Is(err, ErrNotFound):
		return "not_found"
	case Is(err, ErrProtocol):
		return "protocol"
	default:
		return "internal"
	}
}

// WireMessage returns the human readable explanation sent with a private
// error frame.
func WireMessage(err error) string {
	if WireCode(err) == "internal" {
		return "internal error"
	}
	return err.Error()
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
