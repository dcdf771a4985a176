// Package domain contains core concepts of the chat system.
// This file defines Message events and related rules.
// Messages are immutable and validated by the store.
package domain

import "time"

type MessageID int64

// Message represents an immutable chat entry.
// Its only mutation is deletion, and only by its author.
type Message struct {
	ID        MessageID // assigned by the store, monotonic
	Author    Identity
	Body      string
	CreatedAt time.Time
}

// AuthoredBy reports whether the requester is the author of the message.
func (m Message) AuthoredBy(requester Identity) bool {
	return m.Author.UserID != "" && m.Author.UserID == requester.UserID
}
