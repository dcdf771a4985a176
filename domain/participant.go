// Package domain contains core concepts of the chat system.
// This file defines Participant entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import "github.com/google/uuid"

// Identity is the authenticated user behind a connection.
// It is produced once by session validation and never changes afterwards.
type Identity struct {
	UserID   string
	Email    string
	Username string
}

// ConnectionID identifies one live duplex link.
type ConnectionID string

func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.NewString())
}

func (c ConnectionID) String() string {
	return string(c)
}
