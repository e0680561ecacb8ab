package ws

import (
	"chat-rooms/domain"
	"chat-rooms/domain/event"
	"chat-rooms/errors"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Inbound frame types. The camel case aliases are accepted for older
// clients.
const (
	TypeAuth        = "auth"
	TypeRoomJoin    = "room:join"
	TypeRoomLeave   = "room:leave"
	TypeChatMessage = event.TypeChatMessage
	TypeChatHistory = event.TypeChatHistory
)

var aliases = map[string]string{
	"joinRoom":   TypeRoomJoin,
	"leaveRoom":  TypeRoomLeave,
	"newMessage": TypeChatMessage,
}

// Frame is the envelope of every websocket message, in both directions.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type AuthPayload struct {
	Token string `json:"token"`
}

type RoomPayload struct {
	RoomID domain.RoomID `json:"roomId" validate:"required,gt=0"`
}

type MessagePayload struct {
	RoomID  domain.RoomID `json:"roomId" validate:"required,gt=0"`
	Content string        `json:"content"`
}

type HistoryPayload struct {
	RoomID domain.RoomID `json:"roomId" validate:"required,gt=0"`
	Before uint64        `json:"before"`
	Limit  int           `json:"limit" validate:"gte=0"`
}

var validate = validator.New()

func EncodeEvent(e event.Event) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Type: e.Type(), Data: data})
}

func DecodeFrame(raw []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", errors.ErrInvalidRequest, err)
	}
	if alias, ok := aliases[frame.Type]; ok {
		frame.Type = alias
	}
	return frame, nil
}

// ToCommand maps an inbound frame to a runtime command. The identity is
// never read from the frame: the connection carries it.
func ToCommand(conn domain.ConnectionID, frame Frame) (domain.Command, error) {
	switch frame.Type {
	case TypeRoomJoin:
		var p RoomPayload
		if err := decodePayload(frame, &p); err != nil {
			return nil, err
		}
		return domain.JoinRoomCommand{Conn: conn, Room: p.RoomID}, nil
	case TypeRoomLeave:
		var p RoomPayload
		if err := decodePayload(frame, &p); err != nil {
			return nil, err
		}
		return domain.LeaveRoomCommand{Conn: conn, Room: p.RoomID}, nil
	case TypeChatMessage:
		var p MessagePayload
		if err := decodePayload(frame, &p); err != nil {
			return nil, err
		}
		return domain.PostMessageCommand{Conn: conn, Room: p.RoomID, Content: p.Content}, nil
	case TypeChatHistory:
		var p HistoryPayload
		if err := decodePayload(frame, &p); err != nil {
			return nil, err
		}
		return domain.HistoryCommand{Conn: conn, Room: p.RoomID, BeforeSequence: p.Before, Limit: p.Limit}, nil
	default:
		return nil, fmt.Errorf("%w: unknown frame type %q", errors.ErrInvalidRequest, frame.Type)
	}
}

func decodePayload(frame Frame, v any) error {
	if len(frame.Data) == 0 {
		return fmt.Errorf("%w: %s without data", errors.ErrInvalidRequest, frame.Type)
	}
	if err := json.Unmarshal(frame.Data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", errors.ErrInvalidRequest, frame.Type, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %s: %v", errors.ErrInvalidRequest, frame.Type, err)
	}
	return nil
}

// roomOf extracts the room of a frame for error scoping, zero if none.
func roomOf(frame Frame) domain.RoomID {
	var p struct {
		RoomID domain.RoomID `json:"roomId"`
	}
	_ = json.Unmarshal(frame.Data, &p)
	return p.RoomID
}
