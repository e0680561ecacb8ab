//go:generate go run go.uber.org/mock/mockgen -source=room_repository.go -destination=../../mocks/mock_room_repository.go -package=mocks
package storage

import (
	"chat-rooms/contract"
	"chat-rooms/domain"
	"chat-rooms/errors"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// IRoomRepository is the room membership store. Reads always hit badger:
// a membership removed by one request is visible to the very next one.
type IRoomRepository interface {
	contract.IMembershipStore
	CreateRoom(ctx context.Context, name string, createdBy domain.UserID) (domain.Room, error)
	GetRoom(ctx context.Context, id domain.RoomID) (domain.Room, error)
	ListRooms(ctx context.Context) ([]domain.Room, error)
	DeleteRoom(ctx context.Context, id domain.RoomID) error
	AddMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
	RemoveMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error
	ListMembers(ctx context.Context, roomID domain.RoomID) ([]domain.UserID, error)
}

type RoomRepository struct {
	db       *badger.DB
	log      *slog.Logger
	attempts int
}

func NewRoomRepository(db *badger.DB, log *slog.Logger, attempts int) *RoomRepository {
	return &RoomRepository{db: db, log: log, attempts: attempts}
}

var _ IRoomRepository = (*RoomRepository)(nil)

// CreateRoom stores a new room and makes its creator the first member.
func (r *RoomRepository) CreateRoom(ctx context.Context, name string, createdBy domain.UserID) (domain.Room, error) {
	var room domain.Room
	err := commitWithRetry(ctx, r.db, r.attempts, func(txn *badger.Txn) error {
		if _, err := getUser(txn, createdBy); err != nil {
			return err
		}
		id, err := nextCounter(txn, []byte(idSeqRooms))
		if err != nil {
			return err
		}
		room = domain.Room{
			ID:          domain.RoomID(id),
			Name:        name,
			CreatedBy:   createdBy,
			CreatedAt:   time.Now().UTC(),
			MemberCount: 1,
		}
		if err = txn.Set(roomKey(room.ID), encodeRoom(room)); err != nil {
			return err
		}
		return addMember(txn, room.ID, createdBy)
	})
	if err != nil {
		return domain.Room{}, err
	}
	r.log.Debug("Room created", "room_id", room.ID, "user_id", createdBy)
	return room, nil
}

func (r *RoomRepository) GetRoom(ctx context.Context, id domain.RoomID) (domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return domain.Room{}, err
	}
	var room domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		room, err = getRoom(txn, id)
		if err != nil {
			return err
		}
		room.MemberCount = countPrefix(txn, memberPrefix(id))
		return nil
	})
	return room, err
}

func (r *RoomRepository) ListRooms(ctx context.Context) ([]domain.Room, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rooms []domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte(roomPrefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		for it.Rewind(); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				room, err := decodeRoom(val)
				if err != nil {
					return err
				}
				rooms = append(rooms, room)
				return nil
			})
			if err != nil {
				it.Close()
				return err
			}
		}
		it.Close()

		for i := range rooms {
			rooms[i].MemberCount = countPrefix(txn, memberPrefix(rooms[i].ID))
		}
		return nil
	})
	return rooms, err
}

// DeleteRoom removes the room and its memberships in one transaction, then
// drops the message log. Appends racing with the deletion fail because they
// read the room key in their own transaction.
func (r *RoomRepository) DeleteRoom(ctx context.Context, id domain.RoomID) error {
	err := commitWithRetry(ctx, r.db, r.attempts, func(txn *badger.Txn) error {
		if _, err := getRoom(txn, id); err != nil {
			return err
		}
		prefix := memberPrefix(id)
		for _, key := range keysWithPrefix(txn, prefix) {
			user, err := strconv.ParseInt(string(key[len(prefix):]), 10, 64)
			if err != nil {
				return fmt.Errorf("corrupted membership key %q: %w", key, err)
			}
			if err = txn.Delete(userRoomKey(domain.UserID(user), id)); err != nil {
				return err
			}
			if err = txn.Delete(key); err != nil {
				return err
			}
		}
		if err := txn.Delete(messageSeqKey(id)); err != nil {
			return err
		}
		return txn.Delete(roomKey(id))
	})
	if err != nil {
		return err
	}
	if err = r.db.DropPrefix(messagePrefix(id)); err != nil {
		return fmt.Errorf("%w: drop messages of room %d: %v", errors.ErrPersistenceFailed, id, err)
	}
	r.log.Debug("Room deleted", "room_id", id)
	return nil
}

// AddMember is idempotent.
func (r *RoomRepository) AddMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	return commitWithRetry(ctx, r.db, r.attempts, func(txn *badger.Txn) error {
		if _, err := getRoom(txn, roomID); err != nil {
			return err
		}
		if _, err := getUser(txn, userID); err != nil {
			return err
		}
		return addMember(txn, roomID, userID)
	})
}

// RemoveMember is idempotent. Live subscriptions are not touched: the
// ingress pipeline re-checks membership on every message.
func (r *RoomRepository) RemoveMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	return commitWithRetry(ctx, r.db, r.attempts, func(txn *badger.Txn) error {
		if _, err := getRoom(txn, roomID); err != nil {
			return err
		}
		if err := txn.Delete(memberKey(roomID, userID)); err != nil {
			return err
		}
		return txn.Delete(userRoomKey(userID, roomID))
	})
}

// IsMember fails with ErrRoomNotFound when the room no longer exists.
func (r *RoomRepository) IsMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var member bool
	err := r.db.View(func(txn *badger.Txn) error {
		if _, err := getRoom(txn, roomID); err != nil {
			return err
		}
		var err error
		member, err = exists(txn, memberKey(roomID, userID))
		return err
	})
	return member, err
}

func (r *RoomRepository) ListMembers(ctx context.Context, roomID domain.RoomID) ([]domain.UserID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var members []domain.UserID
	err := r.db.View(func(txn *badger.Txn) error {
		if _, err := getRoom(txn, roomID); err != nil {
			return err
		}
		prefix := memberPrefix(roomID)
		for _, key := range keysWithPrefix(txn, prefix) {
			user, err := strconv.ParseInt(string(key[len(prefix):]), 10, 64)
			if err != nil {
				return fmt.Errorf("corrupted membership key %q: %w", key, err)
			}
			members = append(members, domain.UserID(user))
		}
		return nil
	})
	return members, err
}

func addMember(txn *badger.Txn, roomID domain.RoomID, userID domain.UserID) error {
	if err := txn.Set(memberKey(roomID, userID), nil); err != nil {
		return err
	}
	return txn.Set(userRoomKey(userID, roomID), nil)
}

func getRoom(txn *badger.Txn, id domain.RoomID) (domain.Room, error) {
	item, err := txn.Get(roomKey(id))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Room{}, fmt.Errorf("%w: id %d", errors.ErrRoomNotFound, id)
	}
	if err != nil {
		return domain.Room{}, err
	}
	var room domain.Room
	err = item.Value(func(val []byte) error {
		room, err = decodeRoom(val)
		return err
	})
	return room, err
}
