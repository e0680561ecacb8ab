package storage

import (
	"chat-rooms/domain"
	"fmt"
)

// Key layout. Sequences are zero padded to 20 digits so that the
// lexicographic order of badger keys is the numeric order.
//
//	user:{id}                 user record
//	user-email:{email}        user id, unique email index
//	room:{id}                 room record
//	member:{room}:{user}      membership, empty value
//	user-room:{user}:{room}   reverse membership index, empty value
//	msg:{room}:{seq}          message record
//	msg-seq:{room}            last assigned sequence of the room
//	id-seq:{kind}             last assigned id of users or rooms
const (
	userPrefix      = "user:"
	roomPrefix      = "room:"
	idSeqUsers      = "id-seq:users"
	idSeqRooms      = "id-seq:rooms"
	maxSequenceText = "99999999999999999999"
)

func userKey(id domain.UserID) []byte {
	return []byte(fmt.Sprintf("user:%d", id))
}

func userEmailKey(email string) []byte {
	return []byte("user-email:" + email)
}

func roomKey(id domain.RoomID) []byte {
	return []byte(fmt.Sprintf("room:%d", id))
}

func memberKey(room domain.RoomID, user domain.UserID) []byte {
	return []byte(fmt.Sprintf("member:%d:%d", room, user))
}

func memberPrefix(room domain.RoomID) []byte {
	return []byte(fmt.Sprintf("member:%d:", room))
}

func userRoomKey(user domain.UserID, room domain.RoomID) []byte {
	return []byte(fmt.Sprintf("user-room:%d:%d", user, room))
}

func userRoomPrefix(user domain.UserID) []byte {
	return []byte(fmt.Sprintf("user-room:%d:", user))
}

func messageKey(room domain.RoomID, seq uint64) []byte {
	return []byte(fmt.Sprintf("msg:%d:%020d", room, seq))
}

func messagePrefix(room domain.RoomID) []byte {
	return []byte(fmt.Sprintf("msg:%d:", room))
}

func messageSeqKey(room domain.RoomID) []byte {
	return []byte(fmt.Sprintf("msg-seq:%d", room))
}
