//go:generate go run go.uber.org/mock/mockgen -source=room_service.go -destination=../mocks/mock_room_service.go -package=mocks
package services

import (
	"chat-rooms/domain"
	"chat-rooms/errors"
	"chat-rooms/infrastructure/search"
	"chat-rooms/infrastructure/storage"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type CreateRoomRequest struct {
	Name string `validate:"required,min=1,max=64"`
}

// RoomDetail is a room with the tail of its message log.
type RoomDetail struct {
	Room     domain.Room
	Messages []domain.Message
}

type IRoomService interface {
	Create(ctx context.Context, actor domain.Identity, req CreateRoomRequest) (domain.Room, error)
	List(ctx context.Context) ([]domain.Room, error)
	Get(ctx context.Context, id domain.RoomID) (RoomDetail, error)
	Delete(ctx context.Context, actor domain.Identity, id domain.RoomID) error
	Join(ctx context.Context, actor domain.Identity, id domain.RoomID) (domain.Room, error)
	RemoveMember(ctx context.Context, actor domain.Identity, id domain.RoomID, userID domain.UserID) error
	Messages(ctx context.Context, actor domain.Identity, id domain.RoomID, before uint64, limit int) ([]domain.Message, error)
	Search(ctx context.Context, actor domain.Identity, id domain.RoomID, text string, limit int) ([]domain.Message, error)
}

type RoomService struct {
	rooms        storage.IRoomRepository
	messages     storage.IMessageRepository
	index        search.IMessageIndex
	historyLimit int
	log          *slog.Logger
}

func NewRoomService(rooms storage.IRoomRepository, messages storage.IMessageRepository, index search.IMessageIndex, historyLimit int, log *slog.Logger) *RoomService {
	return &RoomService{rooms: rooms, messages: messages, index: index, historyLimit: historyLimit, log: log}
}

var _ IRoomService = (*RoomService)(nil)

// Create makes actor the creator and first member of the room.
func (s *RoomService) Create(ctx context.Context, actor domain.Identity, req CreateRoomRequest) (domain.Room, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
		return domain.Room{}, fmt.Errorf("%w: %v", errors.ErrInvalidRequest, err)
	}
	room, err := s.rooms.CreateRoom(ctx, req.Name, actor.UserID)
	if err != nil {
		return domain.Room{}, err
	}
	s.log.Info("Room created", "room_id", room.ID, "user_id", actor.UserID)
	return room, nil
}

func (s *RoomService) List(ctx context.Context) ([]domain.Room, error) {
	return s.rooms.ListRooms(ctx)
}

func (s *RoomService) Get(ctx context.Context, id domain.RoomID) (RoomDetail, error) {
	room, err := s.rooms.GetRoom(ctx, id)
	if err != nil {
		return RoomDetail{}, err
	}
	messages, err := s.messages.Recent(ctx, id, s.historyLimit)
	if err != nil {
		return RoomDetail{}, err
	}
	return RoomDetail{Room: room, Messages: messages}, nil
}

// Delete is reserved to the creator. Members, messages and the search
// index entries go with the room.
func (s *RoomService) Delete(ctx context.Context, actor domain.Identity, id domain.RoomID) error {
	room, err := s.rooms.GetRoom(ctx, id)
	if err != nil {
		return err
	}
	if room.CreatedBy != actor.UserID {
		return fmt.Errorf("%w: user %d deleting room %d", errors.ErrForbidden, actor.UserID, id)
	}
	if err = s.rooms.DeleteRoom(ctx, id); err != nil {
		return err
	}
	if err = s.index.DeleteRoom(id); err != nil {
		s.log.Warn("Search entries of deleted room not removed", "room_id", id, "error", err)
	}
	s.log.Info("Room deleted", "room_id", id, "user_id", actor.UserID)
	return nil
}

// Join adds actor to the durable members. Their very next message is
// authorized.
func (s *RoomService) Join(ctx context.Context, actor domain.Identity, id domain.RoomID) (domain.Room, error) {
	if err := s.rooms.AddMember(ctx, id, actor.UserID); err != nil {
		return domain.Room{}, err
	}
	s.log.Info("Member added", "room_id", id, "user_id", actor.UserID)
	return s.rooms.GetRoom(ctx, id)
}

// RemoveMember is allowed to the member themselves and to the creator.
func (s *RoomService) RemoveMember(ctx context.Context, actor domain.Identity, id domain.RoomID, userID domain.UserID) error {
	if actor.UserID != userID {
		room, err := s.rooms.GetRoom(ctx, id)
		if err != nil {
			return err
		}
		if room.CreatedBy != actor.UserID {
			return fmt.Errorf("%w: user %d removing user %d from room %d", errors.ErrForbidden, actor.UserID, userID, id)
		}
	}
	if err := s.rooms.RemoveMember(ctx, id, userID); err != nil {
		return err
	}
	s.log.Info("Member removed", "room_id", id, "user_id", userID, "by", actor.UserID)
	return nil
}

func (s *RoomService) Messages(ctx context.Context, actor domain.Identity, id domain.RoomID, before uint64, limit int) ([]domain.Message, error) {
	if err := s.requireMember(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.messages.Before(ctx, id, before, s.capLimit(limit))
}

func (s *RoomService) Search(ctx context.Context, actor domain.Identity, id domain.RoomID, text string, limit int) ([]domain.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty search", errors.ErrInvalidRequest)
	}
	if err := s.requireMember(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.index.Search(ctx, id, text, s.capLimit(limit))
}

func (s *RoomService) requireMember(ctx context.Context, actor domain.Identity, id domain.RoomID) error {
	member, err := s.rooms.IsMember(ctx, id, actor.UserID)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("%w: user %d in room %d", errors.ErrNotAuthorized, actor.UserID, id)
	}
	return nil
}

func (s *RoomService) capLimit(limit int) int {
	if limit <= 0 || limit > s.historyLimit {
		return s.historyLimit
	}
	return limit
}
