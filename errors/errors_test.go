package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf_Wrapped(t *testing.T) {
	req := require.New(t)

	err := fmt.Errorf("%w: room 5 user 2", ErrNotAuthorized)

	req.Equal(KindNotAuthorized, KindOf(err))
	req.Equal("Not a member of this room", StableMessage(KindOf(err)))
	req.Equal(http.StatusForbidden, HTTPStatus(KindOf(err)))
}

func TestKindOf_SequenceConflictIsPersistenceFailure(t *testing.T) {
	req := require.New(t)
	req.Equal(KindPersistenceFailed, KindOf(fmt.Errorf("append: %w", ErrSequenceConflict)))
}

func TestKindOf_UnknownIsInternal(t *testing.T) {
	req := require.New(t)

	// Given an error leaking driver detail
	err := fmt.Errorf("badger: value log truncated at offset 1234")

	// Then the client only sees a generic message
	req.Equal(KindInternal, KindOf(err))
	req.Equal("Internal error", StableMessage(KindOf(err)))
	req.Empty(KindOf(nil))
}

func TestIsCredentialFailure(t *testing.T) {
	req := require.New(t)
	req.True(IsCredentialFailure(ErrTokenExpired))
	req.True(IsCredentialFailure(fmt.Errorf("%w: id 3", ErrUserNotFound)))
	req.False(IsCredentialFailure(ErrInvalidContent))
}

func TestKindOf_Forbidden(t *testing.T) {
	req := require.New(t)

	// Given a user trying to delete a room they did not create
	err := fmt.Errorf("%w: room 3 creator 1 actor 2", ErrForbidden)

	req.Equal(KindForbidden, KindOf(err))
	req.Equal(http.StatusForbidden, HTTPStatus(KindOf(err)))
	req.Equal("Not allowed to modify this resource", StableMessage(KindOf(err)))
}
