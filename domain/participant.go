// Package domain contains core concepts of the chat system.
// This file defines the Identity bound to a live connection.
// No runtime, network, or UI logic should be added here.
package domain

import "github.com/google/uuid"

type UserID int64

// Identity is resolved once per connection at handshake time and is never
// re-derived from later client input.
type Identity struct {
	UserID   UserID
	Email    string
	Username string
}

func (i Identity) IsZero() bool {
	return i.UserID == 0
}

// ConnectionID is the opaque handle of one live transport session.
type ConnectionID uuid.UUID

func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.New())
}

func (c ConnectionID) String() string {
	return uuid.UUID(c).String()
}

// MarshalText renders the id in its canonical uuid form, so loggers and JSON
// encoders never fall back to the raw byte array.
func (c ConnectionID) MarshalText() ([]byte, error) {
	return uuid.UUID(c).MarshalText()
}
