package storage

import (
	"chat-rooms/domain"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestDecodeMessage_SkipsUnknownFields(t *testing.T) {
	req := require.New(t)

	// Given a record written by a newer version carrying an extra field
	message := domain.Message{
		ID:         uuid.New(),
		RoomID:     4,
		SenderID:   2,
		SenderName: "bob",
		Content:    "héllo",
		Sequence:   12,
		CreatedAt:  time.Unix(0, 1_700_000_000_123_456_789).UTC(),
	}
	raw := encodeMessage(message)
	raw = appendString(raw, 42, "future field")
	raw = protowire.AppendTag(raw, 43, protowire.Fixed64Type)
	raw = protowire.AppendFixed64(raw, 7)

	// When decoding
	decoded, err := decodeMessage(raw)

	// Then known fields are intact
	req.NoError(err)
	req.Equal(message, decoded)
}

func TestDecode_RejectsTruncatedRecord(t *testing.T) {
	req := require.New(t)
	raw := encodeUser(domain.User{ID: 1, Email: "a@example.com", Username: "alice"})

	_, err := decodeUser(raw[:len(raw)-3])
	req.Error(err)

	_, err = decodeCounter([]byte{1, 2})
	req.Error(err)
}
