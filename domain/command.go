package domain

type Command interface {
	Connection() ConnectionID
}

type PostMessageCommand struct {
	Conn    ConnectionID
	Room    RoomID
	Content string
}

func (c PostMessageCommand) Connection() ConnectionID { return c.Conn }

type JoinRoomCommand struct {
	Conn ConnectionID
	Room RoomID
}

func (c JoinRoomCommand) Connection() ConnectionID { return c.Conn }

type LeaveRoomCommand struct {
	Conn ConnectionID
	Room RoomID
}

func (c LeaveRoomCommand) Connection() ConnectionID { return c.Conn }

// HistoryCommand asks for messages strictly before BeforeSequence, or the
// most recent ones when BeforeSequence is zero.
type HistoryCommand struct {
	Conn           ConnectionID
	Room           RoomID
	BeforeSequence uint64
	Limit          int
}

func (c HistoryCommand) Connection() ConnectionID { return c.Conn }
