package storage

import (
	"chat-rooms/errors"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	alice := f.user(t, "alice@example.com", "alice")
	bob := f.user(t, "bob@example.com", "bob")
	req.NotEqual(alice.ID, bob.ID)

	byID, err := f.users.GetUser(ctx, alice.ID)
	req.NoError(err)
	req.Equal(alice, byID)

	byEmail, err := f.users.GetUserByEmail(ctx, "bob@example.com")
	req.NoError(err)
	req.Equal(bob, byEmail)

	all, err := f.users.ListUsers(ctx)
	req.NoError(err)
	req.Len(all, 2)
}

func TestUserRepository_DuplicateEmail(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.user(t, "alice@example.com", "alice")

	_, err := f.users.CreateUser(context.Background(), "alice@example.com", "other", "hash")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func TestUserRepository_UpdateMovesEmailIndex(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice@example.com", "alice")
	f.user(t, "bob@example.com", "bob")

	// When alice tries to steal bob's email
	alice.Email = "bob@example.com"
	_, err := f.users.UpdateUser(ctx, alice)
	req.ErrorIs(err, errors.ErrUserAlreadyExists)

	// When alice picks a free email
	alice.Email = "alice@new.example.com"
	alice.Username = "alice2"
	updated, err := f.users.UpdateUser(ctx, alice)
	req.NoError(err)
	req.Equal("alice2", updated.Username)

	// Then the old email no longer resolves
	_, err = f.users.GetUserByEmail(ctx, "alice@example.com")
	req.ErrorIs(err, errors.ErrUserNotFound)
	found, err := f.users.GetUserByEmail(ctx, "alice@new.example.com")
	req.NoError(err)
	req.Equal(alice.ID, found.ID)
}

func TestUserRepository_DeleteCascadesMemberships(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@example.com", "owner")
	guest := f.user(t, "guest@example.com", "guest")
	room := f.room(t, "general", owner.ID)
	req.NoError(f.rooms.AddMember(ctx, room.ID, guest.ID))

	// When the guest account is deleted
	req.NoError(f.users.DeleteUser(ctx, guest.ID))

	// Then the membership is gone and the user cannot be resolved
	member, err := f.rooms.IsMember(ctx, room.ID, guest.ID)
	req.NoError(err)
	req.False(member)
	_, err = f.users.GetUser(ctx, guest.ID)
	req.ErrorIs(err, errors.ErrUserNotFound)

	got, err := f.rooms.GetRoom(ctx, room.ID)
	req.NoError(err)
	req.Equal(1, got.MemberCount)
}
