package main

import (
	"chat-rooms/client"
	"chat-rooms/domain"
	"chat-rooms/domain/event"
	"chat-rooms/infrastructure/ws"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gookit/color"
	"github.com/samber/lo"
)

const help = `/join <room>      subscribe to a room and make it current
/leave [room]     unsubscribe, current room by default
/history [before] older messages of the current room
/quit             leave the client
anything else is posted to the current room`

type terminal struct {
	out  io.Writer
	room domain.RoomID
}

func newTerminal(out io.Writer, room domain.RoomID) *terminal {
	return &terminal{out: out, room: room}
}

// execute runs one input line. It reports true when the user asked to quit.
func (t *terminal) execute(conn *client.Conn, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, conn.Post(t.room, line)
	}

	fields := strings.Fields(line)
	var arg string
	if len(fields) > 1 {
		arg = fields[1]
	}
	switch fields[0] {
	case "/quit":
		return true, nil
	case "/help":
		t.info(help)
		return false, nil
	case "/join":
		room, ok := domain.ParseRoomID(arg)
		if !ok {
			return false, fmt.Errorf("usage: /join <room>")
		}
		t.room = room
		return false, conn.Join(room)
	case "/leave":
		room := t.room
		if arg != "" {
			parsed, ok := domain.ParseRoomID(arg)
			if !ok {
				return false, fmt.Errorf("usage: /leave [room]")
			}
			room = parsed
		}
		return false, conn.Leave(room)
	case "/history":
		var before uint64
		if arg != "" {
			n, err := strconv.ParseUint(arg, 10, 64)
			if err != nil {
				return false, fmt.Errorf("usage: /history [before]")
			}
			before = n
		}
		return false, conn.History(t.room, before, 0)
	default:
		return false, fmt.Errorf("unknown command %s", fields[0])
	}
}

func (t *terminal) render(frame ws.Frame) {
	switch {
	case frame.Type == event.TypeConnectionAck:
		var ack event.ConnectionAck
		_ = json.Unmarshal(frame.Data, &ack)
		t.info(fmt.Sprintf("authenticated as user %d", ack.UserID))
	case frame.Type == event.TypeChatMessage:
		var m event.MessagePosted
		if err := json.Unmarshal(frame.Data, &m); err == nil {
			t.message(m)
		}
	case frame.Type == event.TypeChatHistory:
		var h event.History
		if err := json.Unmarshal(frame.Data, &h); err == nil {
			t.info(fmt.Sprintf("--- history of room %d (%d messages) ---", h.Room, len(h.Messages)))
			lo.ForEach(h.Messages, func(m event.MessagePosted, _ int) { t.message(m) })
		}
	case frame.Type == event.TypeRoomJoined, frame.Type == event.TypeRoomLeft:
		var r event.RoomJoined
		_ = json.Unmarshal(frame.Data, &r)
		t.info(fmt.Sprintf("%s %d", frame.Type, r.Room))
	case strings.HasPrefix(frame.Type, event.TypeError):
		var f event.Failure
		_ = json.Unmarshal(frame.Data, &f)
		t.failure(fmt.Sprintf("%s: %s (%s)", frame.Type, f.Message, f.Kind))
	default:
		t.info(fmt.Sprintf("%s %s", frame.Type, string(frame.Data)))
	}
}

func (t *terminal) message(m event.MessagePosted) {
	header := color.New(color.FgCyan).Render(fmt.Sprintf("[%d #%d %s]", m.Room, m.Sequence, m.CreatedAt.Local().Format("15:04:05")))
	name := color.New(color.FgGreen, color.OpBold).Render(m.Username)
	_, _ = fmt.Fprintf(t.out, "%s %s: %s\n", header, name, m.Content)
}

func (t *terminal) info(s string) {
	_, _ = fmt.Fprintln(t.out, color.New(color.FgGray).Render(s))
}

func (t *terminal) failure(s string) {
	_, _ = fmt.Fprintln(t.out, color.New(color.FgRed).Render(s))
}
