package server

import (
	"chat-rooms/domain"
	"chat-rooms/domain/event"
	"time"

	"github.com/samber/lo"
)

type userView struct {
	ID        domain.UserID `json:"id"`
	Email     string        `json:"email"`
	Username  string        `json:"username"`
	CreatedAt time.Time     `json:"createdAt"`
}

func toUserView(u domain.User) userView {
	return userView{ID: u.ID, Email: u.Email, Username: u.Username, CreatedAt: u.CreatedAt}
}

func toUserViews(users []domain.User) []userView {
	return lo.Map(users, func(u domain.User, _ int) userView { return toUserView(u) })
}

type roomView struct {
	ID          domain.RoomID `json:"id"`
	Name        string        `json:"name"`
	CreatedBy   domain.UserID `json:"createdBy"`
	CreatedAt   time.Time     `json:"createdAt"`
	MemberCount int           `json:"memberCount"`
}

func toRoomView(r domain.Room) roomView {
	return roomView{ID: r.ID, Name: r.Name, CreatedBy: r.CreatedBy, CreatedAt: r.CreatedAt, MemberCount: r.MemberCount}
}

type roomDetailView struct {
	roomView
	Messages []event.MessagePosted `json:"messages"`
}

// Messages use the same shape as the websocket broadcast.
func toMessageViews(messages []domain.Message) []event.MessagePosted {
	return lo.Map(messages, func(m domain.Message, _ int) event.MessagePosted { return event.NewMessagePosted(m) })
}

type sessionView struct {
	Token    string        `json:"token"`
	Username string        `json:"username"`
	ID       domain.UserID `json:"id"`
}
