package domain

import (
	"strconv"
	"time"
)

type RoomID int64

func (r RoomID) String() string {
	return strconv.FormatInt(int64(r), 10)
}

// ParseRoomID accepts the decimal form used in URLs and wire frames.
func ParseRoomID(s string) (RoomID, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return RoomID(id), true
}

// Room is owned by the membership store. The messaging core only reads it.
type Room struct {
	ID          RoomID
	Name        string
	CreatedBy   UserID
	CreatedAt   time.Time
	MemberCount int
}
