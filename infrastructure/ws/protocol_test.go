package ws

import (
	"chat-rooms/domain"
	"chat-rooms/domain/event"
	"chat-rooms/errors"
	"context"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestToCommand(t *testing.T) {
	conn := domain.NewConnectionID()
	tests := []struct {
		name     string
		raw      string
		expected domain.Command
		kind     errors.Kind
	}{
		{"join", `{"type":"room:join","data":{"roomId":3}}`, domain.JoinRoomCommand{Conn: conn, Room: 3}, ""},
		{"legacy join", `{"type":"joinRoom","data":{"roomId":3}}`, domain.JoinRoomCommand{Conn: conn, Room: 3}, ""},
		{"leave", `{"type":"room:leave","data":{"roomId":3}}`, domain.LeaveRoomCommand{Conn: conn, Room: 3}, ""},
		{"message", `{"type":"chat:message","data":{"roomId":3,"content":"hi"}}`, domain.PostMessageCommand{Conn: conn, Room: 3, Content: "hi"}, ""},
		{"legacy message", `{"type":"newMessage","data":{"roomId":3,"content":"hi"}}`, domain.PostMessageCommand{Conn: conn, Room: 3, Content: "hi"}, ""},
		{"history", `{"type":"chat:history","data":{"roomId":3,"before":10,"limit":5}}`, domain.HistoryCommand{Conn: conn, Room: 3, BeforeSequence: 10, Limit: 5}, ""},
		{"negative room", `{"type":"room:join","data":{"roomId":-1}}`, nil, errors.KindInvalidRequest},
		{"no data", `{"type":"room:join"}`, nil, errors.KindInvalidRequest},
		{"unknown", `{"type":"typing","data":{}}`, nil, errors.KindInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			frame, err := DecodeFrame([]byte(tt.raw))
			req.NoError(err)

			cmd, err := ToCommand(conn, frame)

			req.Equal(tt.kind, errors.KindOf(err))
			req.Equal(tt.expected, cmd)
		})
	}
}

func TestEncodeEvent(t *testing.T) {
	req := require.New(t)

	payload, err := EncodeEvent(event.NewFailure("chat:message", errors.ErrNotAuthorized, 5))

	req.NoError(err)
	req.JSONEq(`{"type":"error:chat:message","data":{"kind":"NotAuthorized","message":"Not a member of this room","roomId":5}}`, string(payload))
}

func TestSink_Overflow_Closes(t *testing.T) {
	req := require.New(t)
	sink := NewSink(1)

	req.NoError(sink.Consume(context.Background(), event.RoomLeft{Room: 1}))
	err := sink.Consume(context.Background(), event.RoomLeft{Room: 1})

	req.ErrorIs(err, errors.ErrSinkFull)
	req.True(sink.Overflowed())
	req.ErrorIs(sink.Consume(context.Background(), event.RoomLeft{Room: 1}), errors.ErrSinkClosed)
}

func TestOriginPolicy(t *testing.T) {
	req := require.New(t)
	policy := NewOriginPolicy([]string{" https://Chat.Example.com ", "not a url", ""}, logs.GetLoggerFromLevel(slog.LevelDebug))

	check := func(origin string) bool {
		r := httptest.NewRequest("GET", "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return policy.Check(r)
	}

	req.True(check("https://chat.example.com"))
	req.True(check(""))
	req.False(check("https://evil.example.com"))
	req.False(check("::"))
}
