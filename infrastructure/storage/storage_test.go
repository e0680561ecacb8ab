package storage

import (
	"chat-rooms/domain"
	"context"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type fixture struct {
	db       *badger.DB
	users    *UserRepository
	rooms    *RoomRepository
	messages *MessageRepository
}

func newFixture(t *testing.T) fixture {
	db := openTestDB(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	return fixture{
		db:       db,
		users:    NewUserRepository(db, log, 3),
		rooms:    NewRoomRepository(db, log, 3),
		messages: NewMessageRepository(db, log),
	}
}

func (f fixture) user(t *testing.T, email, username string) domain.User {
	t.Helper()
	user, err := f.users.CreateUser(context.Background(), email, username, "$argon2id$hash")
	require.NoError(t, err)
	return user
}

func (f fixture) room(t *testing.T, name string, owner domain.UserID) domain.Room {
	t.Helper()
	room, err := f.rooms.CreateRoom(context.Background(), name, owner)
	require.NoError(t, err)
	return room
}
