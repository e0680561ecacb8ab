package auth

import (
	"chat-rooms/domain"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestTokenManager_IssueAndParse(t *testing.T) {
	req := require.New(t)
	tokens := NewTokenManager([]byte("test-secret"), time.Hour)

	token, err := tokens.Issue(domain.User{ID: 7, Email: "u7@example.com"})
	req.NoError(err)

	claims, err := tokens.Parse(token)
	req.NoError(err)
	req.Equal(int64(7), claims.UserID)
	req.Equal("u7@example.com", claims.Email)
	req.Equal("chat-rooms", claims.Issuer)
}

func TestTokenManager_Expired(t *testing.T) {
	req := require.New(t)
	tokens := NewTokenManager([]byte("test-secret"), time.Minute)
	tokens.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := tokens.Issue(domain.User{ID: 1, Email: "a@example.com"})
	req.NoError(err)

	tokens.now = time.Now
	_, err = tokens.Parse(token)
	req.ErrorIs(err, jwt.ErrTokenExpired)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	req := require.New(t)
	token, err := NewTokenManager([]byte("one"), time.Hour).Issue(domain.User{ID: 1, Email: "a@example.com"})
	req.NoError(err)

	_, err = NewTokenManager([]byte("two"), time.Hour).Parse(token)
	req.ErrorIs(err, jwt.ErrTokenSignatureInvalid)
}

func TestTokenManager_Malformed(t *testing.T) {
	req := require.New(t)
	_, err := NewTokenManager([]byte("one"), time.Hour).Parse("not-a-jwt")
	req.ErrorIs(err, jwt.ErrTokenMalformed)
}
