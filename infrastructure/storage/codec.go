package storage

import (
	"chat-rooms/domain"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Records are stored as protobuf wire messages written field by field, so
// that fields can be added later without a migration. Field numbers below
// must never be reused.

const (
	userFieldID           protowire.Number = 1
	userFieldEmail        protowire.Number = 2
	userFieldUsername     protowire.Number = 3
	userFieldPasswordHash protowire.Number = 4
	userFieldCreatedAt    protowire.Number = 5
)

const (
	roomFieldID        protowire.Number = 1
	roomFieldName      protowire.Number = 2
	roomFieldCreatedBy protowire.Number = 3
	roomFieldCreatedAt protowire.Number = 4
)

const (
	messageFieldID         protowire.Number = 1
	messageFieldRoomID     protowire.Number = 2
	messageFieldSenderID   protowire.Number = 3
	messageFieldSenderName protowire.Number = 4
	messageFieldContent    protowire.Number = 5
	messageFieldSequence   protowire.Number = 6
	messageFieldCreatedAt  protowire.Number = 7
)

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// walk visits every field of a wire message. Unknown fields are skipped.
func walk(b []byte, onVarint func(protowire.Number, uint64), onBytes func(protowire.Number, []byte)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			onVarint(num, v)
			b = b[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			onBytes(num, v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return nil
}

func encodeUser(u domain.User) []byte {
	var b []byte
	b = appendVarint(b, userFieldID, uint64(u.ID))
	b = appendString(b, userFieldEmail, u.Email)
	b = appendString(b, userFieldUsername, u.Username)
	b = appendString(b, userFieldPasswordHash, u.PasswordHash)
	b = appendVarint(b, userFieldCreatedAt, uint64(u.CreatedAt.UnixNano()))
	return b
}

func decodeUser(b []byte) (domain.User, error) {
	var u domain.User
	err := walk(b,
		func(num protowire.Number, v uint64) {
			switch num {
			case userFieldID:
				u.ID = domain.UserID(v)
			case userFieldCreatedAt:
				u.CreatedAt = time.Unix(0, int64(v)).UTC()
			}
		},
		func(num protowire.Number, v []byte) {
			switch num {
			case userFieldEmail:
				u.Email = string(v)
			case userFieldUsername:
				u.Username = string(v)
			case userFieldPasswordHash:
				u.PasswordHash = string(v)
			}
		})
	if err != nil {
		return domain.User{}, fmt.Errorf("decode user: %w", err)
	}
	return u, nil
}

func encodeRoom(r domain.Room) []byte {
	var b []byte
	b = appendVarint(b, roomFieldID, uint64(r.ID))
	b = appendString(b, roomFieldName, r.Name)
	b = appendVarint(b, roomFieldCreatedBy, uint64(r.CreatedBy))
	b = appendVarint(b, roomFieldCreatedAt, uint64(r.CreatedAt.UnixNano()))
	return b
}

func decodeRoom(b []byte) (domain.Room, error) {
	var r domain.Room
	err := walk(b,
		func(num protowire.Number, v uint64) {
			switch num {
			case roomFieldID:
				r.ID = domain.RoomID(v)
			case roomFieldCreatedBy:
				r.CreatedBy = domain.UserID(v)
			case roomFieldCreatedAt:
				r.CreatedAt = time.Unix(0, int64(v)).UTC()
			}
		},
		func(num protowire.Number, v []byte) {
			if num == roomFieldName {
				r.Name = string(v)
			}
		})
	if err != nil {
		return domain.Room{}, fmt.Errorf("decode room: %w", err)
	}
	return r, nil
}

func encodeMessage(m domain.Message) []byte {
	var b []byte
	b = appendBytes(b, messageFieldID, m.ID[:])
	b = appendVarint(b, messageFieldRoomID, uint64(m.RoomID))
	b = appendVarint(b, messageFieldSenderID, uint64(m.SenderID))
	b = appendString(b, messageFieldSenderName, m.SenderName)
	b = appendString(b, messageFieldContent, m.Content)
	b = appendVarint(b, messageFieldSequence, m.Sequence)
	b = appendVarint(b, messageFieldCreatedAt, uint64(m.CreatedAt.UnixNano()))
	return b
}

func decodeMessage(b []byte) (domain.Message, error) {
	var m domain.Message
	var idErr error
	err := walk(b,
		func(num protowire.Number, v uint64) {
			switch num {
			case messageFieldRoomID:
				m.RoomID = domain.RoomID(v)
			case messageFieldSenderID:
				m.SenderID = domain.UserID(v)
			case messageFieldSequence:
				m.Sequence = v
			case messageFieldCreatedAt:
				m.CreatedAt = time.Unix(0, int64(v)).UTC()
			}
		},
		func(num protowire.Number, v []byte) {
			switch num {
			case messageFieldID:
				m.ID, idErr = uuid.FromBytes(v)
			case messageFieldSenderName:
				m.SenderName = string(v)
			case messageFieldContent:
				m.Content = string(v)
			}
		})
	if err == nil {
		err = idErr
	}
	if err != nil {
		return domain.Message{}, fmt.Errorf("decode message: %w", err)
	}
	return m, nil
}

// Counters are plain big endian uint64 values.
func encodeCounter(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

func decodeCounter(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("decode counter: want 8 bytes, got %d", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}
