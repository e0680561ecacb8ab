package event

import (
	"chat-rooms/domain"
	"chat-rooms/errors"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Names used on the wire.
const (
	TypeConnectionAck = "connection:ack"
	TypeChatMessage   = "chat:message"
	TypeChatHistory   = "chat:history"
	TypeRoomJoined    = "room:joined"
	TypeRoomLeft      = "room:left"
	TypeError         = "error"
)

// Event is anything pushed from the server to a connection.
type Event interface {
	Type() string
}

type ConnectionAck struct {
	UserID domain.UserID `json:"userId"`
}

func (ConnectionAck) Type() string { return TypeConnectionAck }

// MessagePosted is the broadcast payload of a persisted message.
type MessagePosted struct {
	ID        uuid.UUID     `json:"id"`
	UserID    domain.UserID `json:"userId"`
	Username  string        `json:"username"`
	Room      domain.RoomID `json:"roomId"`
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
	Sequence  uint64        `json:"sequence"`
	CreatedAt time.Time     `json:"createdAt"`
}

func (MessagePosted) Type() string { return TypeChatMessage }

func NewMessagePosted(m domain.Message) MessagePosted {
	return MessagePosted{
		ID:        m.ID,
		UserID:    m.SenderID,
		Username:  m.SenderName,
		Room:      m.RoomID,
		Content:   m.Content,
		Timestamp: m.CreatedAt,
		Sequence:  m.Sequence,
		CreatedAt: m.CreatedAt,
	}
}

// History carries messages ordered ascending by sequence.
type History struct {
	Room     domain.RoomID   `json:"roomId"`
	Messages []MessagePosted `json:"messages"`
}

func (History) Type() string { return TypeChatHistory }

func NewHistory(room domain.RoomID, messages []domain.Message) History {
	return History{
		Room: room,
		Messages: lo.Map(messages, func(m domain.Message, _ int) MessagePosted {
			return NewMessagePosted(m)
		}),
	}
}

type RoomJoined struct {
	Room domain.RoomID `json:"roomId"`
}

func (RoomJoined) Type() string { return TypeRoomJoined }

type RoomLeft struct {
	Room domain.RoomID `json:"roomId"`
}

func (RoomLeft) Type() string { return TypeRoomLeft }

// Failure is scoped to the originating connection only. Scope is the inbound
// event type that failed, e.g. "chat:message" gives "error:chat:message".
type Failure struct {
	Scope   string        `json:"-"`
	Kind    string        `json:"kind"`
	Message string        `json:"message"`
	Room    domain.RoomID `json:"roomId,omitempty"`
}

func (f Failure) Type() string {
	if f.Scope == "" {
		return TypeError
	}
	return TypeError + ":" + f.Scope
}

// NewFailure classifies err. Only the kind and its stable message are kept,
// never the error text.
func NewFailure(scope string, err error, room domain.RoomID) Failure {
	kind := errors.KindOf(err)
	return Failure{
		Scope:   scope,
		Kind:    string(kind),
		Message: errors.StableMessage(kind),
		Room:    room,
	}
}
