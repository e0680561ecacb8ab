package auth_test

import (
	"chat-rooms/auth"
	"chat-rooms/domain"
	"chat-rooms/errors"
	"chat-rooms/mocks"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newVerifier(t *testing.T) (*auth.Verifier, *auth.TokenManager, *mocks.MockIUserLookup) {
	ctrl := gomock.NewController(t)
	users := mocks.NewMockIUserLookup(ctrl)
	tokens := auth.NewTokenManager([]byte("verifier-secret"), time.Hour)
	return auth.NewVerifier(tokens, users, logs.GetLoggerFromLevel(slog.LevelDebug)), tokens, users
}

func TestVerifier_Verify(t *testing.T) {
	alice := domain.User{ID: 3, Email: "alice@example.com", Username: "alice"}

	t.Run("should resolve identity from storage", func(t *testing.T) {
		req := require.New(t)
		verifier, tokens, users := newVerifier(t)
		token, err := tokens.Issue(alice)
		req.NoError(err)

		users.EXPECT().GetUser(gomock.Any(), domain.UserID(3)).Return(alice, nil).Times(1)

		identity, err := verifier.Verify(context.Background(), token)
		req.NoError(err)
		req.Equal(domain.Identity{UserID: 3, Email: "alice@example.com", Username: "alice"}, identity)
	})

	t.Run("should fail with TokenMissing on empty token", func(t *testing.T) {
		req := require.New(t)
		verifier, _, users := newVerifier(t)
		users.EXPECT().GetUser(gomock.Any(), gomock.Any()).Times(0)

		_, err := verifier.Verify(context.Background(), "")
		req.Equal(errors.KindTokenMissing, errors.KindOf(err))
	})

	t.Run("should fail with TokenMalformed", func(t *testing.T) {
		req := require.New(t)
		verifier, _, _ := newVerifier(t)
		_, err := verifier.Verify(context.Background(), "abc.def")
		req.Equal(errors.KindTokenMalformed, errors.KindOf(err))
	})

	t.Run("should fail with TokenInvalid when signed by someone else", func(t *testing.T) {
		req := require.New(t)
		verifier, _, _ := newVerifier(t)
		token, err := auth.NewTokenManager([]byte("other"), time.Hour).Issue(alice)
		req.NoError(err)

		_, err = verifier.Verify(context.Background(), token)
		req.Equal(errors.KindTokenInvalid, errors.KindOf(err))
	})

	t.Run("should fail with UserNotFound when the account was deleted", func(t *testing.T) {
		req := require.New(t)
		verifier, tokens, users := newVerifier(t)
		token, err := tokens.Issue(alice)
		req.NoError(err)

		users.EXPECT().GetUser(gomock.Any(), domain.UserID(3)).
			Return(domain.User{}, fmt.Errorf("%w: 3", errors.ErrUserNotFound))

		_, err = verifier.Verify(context.Background(), token)
		req.Equal(errors.KindUserNotFound, errors.KindOf(err))
	})

	t.Run("should fail with UserNotFound when the email changed", func(t *testing.T) {
		req := require.New(t)
		verifier, tokens, users := newVerifier(t)
		token, err := tokens.Issue(alice)
		req.NoError(err)

		renamed := alice
		renamed.Email = "new@example.com"
		users.EXPECT().GetUser(gomock.Any(), domain.UserID(3)).Return(renamed, nil)

		_, err = verifier.Verify(context.Background(), token)
		req.Equal(errors.KindUserNotFound, errors.KindOf(err))
	})

	t.Run("should give up with Unauthenticated when storage hangs", func(t *testing.T) {
		req := require.New(t)
		verifier, tokens, users := newVerifier(t)
		token, err := tokens.Issue(alice)
		req.NoError(err)
		release := make(chan struct{})
		defer close(release)

		users.EXPECT().GetUser(gomock.Any(), gomock.Any()).DoAndReturn(
			func(context.Context, domain.UserID) (domain.User, error) {
				<-release
				return alice, nil
			})

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()
		_, err = verifier.Verify(ctx, token)
		req.Equal(errors.KindUnauthenticated, errors.KindOf(err))
	})
}

func TestMiddleware(t *testing.T) {
	alice := domain.User{ID: 3, Email: "alice@example.com", Username: "alice"}

	t.Run("should reject request without token", func(t *testing.T) {
		req := require.New(t)
		verifier, _, _ := newVerifier(t)
		handler := auth.Middleware(verifier, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not be reached")
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/rooms", nil))

		req.Equal(http.StatusUnauthorized, rec.Code)
		req.Contains(rec.Body.String(), "TokenMissing")
	})

	t.Run("should inject identity when bearer token is valid", func(t *testing.T) {
		req := require.New(t)
		verifier, tokens, users := newVerifier(t)
		token, err := tokens.Issue(alice)
		req.NoError(err)
		users.EXPECT().GetUser(gomock.Any(), domain.UserID(3)).Return(alice, nil)

		var got domain.Identity
		handler := auth.Middleware(verifier, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = auth.IdentityFrom(r.Context())
		}))

		r := httptest.NewRequest(http.MethodGet, "/api/rooms", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)

		req.Equal(http.StatusOK, rec.Code)
		req.Equal(domain.UserID(3), got.UserID)
	})

	t.Run("should read the auth cookie", func(t *testing.T) {
		req := require.New(t)
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: "cookie-token"})
		req.Equal("cookie-token", auth.TokenFromRequest(r))
	})
}
