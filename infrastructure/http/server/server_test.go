package server_test

import (
	"chat-rooms/auth"
	"chat-rooms/domain"
	"chat-rooms/errors"
	"chat-rooms/infrastructure/http/server"
	"chat-rooms/mocks"
	"chat-rooms/services"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	auth     *mocks.MockIAuthService
	users    *mocks.MockIUserService
	rooms    *mocks.MockIRoomService
	verifier *mocks.MockICredentialVerifier
	handler  http.Handler
}

var alice = domain.Identity{UserID: 1, Email: "alice@example.com", Username: "alice"}

func newFixture(t *testing.T) fixture {
	ctrl := gomock.NewController(t)
	f := fixture{
		auth:     mocks.NewMockIAuthService(ctrl),
		users:    mocks.NewMockIUserService(ctrl),
		rooms:    mocks.NewMockIRoomService(ctrl),
		verifier: mocks.NewMockICredentialVerifier(ctrl),
	}
	srv := server.NewServer(f.auth, f.users, f.rooms, f.verifier, time.Hour, false, logs.GetLoggerFromLevel(slog.LevelDebug))
	f.handler = srv.Routes(nil)
	return f
}

func (f fixture) do(method, path, body string, token string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)
	return w
}

func (f fixture) asAlice() {
	f.verifier.EXPECT().Verify(gomock.Any(), "alice-token").Return(alice, nil)
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestServer_Register(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.auth.EXPECT().Register(gomock.Any(), auth.RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "ComplexPass123!"}).
		Return(domain.User{ID: 1, Email: "alice@example.com", Username: "alice", PasswordHash: "secret-hash"}, nil)

	w := f.do(http.MethodPost, "/api/users", `{"username":"alice","email":"alice@example.com","password":"ComplexPass123!"}`, "")

	req.Equal(http.StatusCreated, w.Code)
	req.Contains(w.Body.String(), `"username":"alice"`)
	req.NotContains(w.Body.String(), "secret-hash")
}

func TestServer_Register_Unknown_Fields(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/users", `{"username":"alice","admin":true}`, "")

	req.Equal(http.StatusBadRequest, w.Code)
	req.Equal(map[string]string{"error": "InvalidRequest", "message": "Invalid request"}, errorOf(t, w))
}

func TestServer_Login_Sets_Cookie(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.auth.EXPECT().Login(gomock.Any(), "alice@example.com", "ComplexPass123!").
		Return(services.Session{Token: "jwt", User: domain.User{ID: 1, Username: "alice"}}, nil)

	w := f.do(http.MethodPost, "/api/auth/login", `{"email":"alice@example.com","password":"ComplexPass123!"}`, "")

	req.Equal(http.StatusOK, w.Code)
	req.JSONEq(`{"token":"jwt","username":"alice","id":1}`, w.Body.String())
	cookies := w.Result().Cookies()
	req.Len(cookies, 1)
	req.Equal(auth.CookieName, cookies[0].Name)
	req.Equal("jwt", cookies[0].Value)
	req.True(cookies[0].HttpOnly)
}

func TestServer_Token_Invalid_Credentials(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.auth.EXPECT().Login(gomock.Any(), "alice@example.com", "nope").Return(services.Session{}, errors.ErrInvalidCredentials)

	w := f.do(http.MethodPost, "/api/auth/token", `{"email":"alice@example.com","password":"nope"}`, "")

	req.Equal(http.StatusUnauthorized, w.Code)
	req.Equal("InvalidCredentials", errorOf(t, w)["error"])
	req.Empty(w.Result().Cookies())
}

func TestServer_Protected_Routes_Require_Token(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.verifier.EXPECT().Verify(gomock.Any(), "").Return(domain.Identity{}, errors.ErrTokenMissing)

	w := f.do(http.MethodGet, "/api/rooms", "", "")

	req.Equal(http.StatusUnauthorized, w.Code)
	req.Equal("TokenMissing", errorOf(t, w)["error"])
}

func TestServer_Create_And_Get_Room(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.asAlice()
	f.asAlice()
	f.rooms.EXPECT().Create(gomock.Any(), alice, services.CreateRoomRequest{Name: "general"}).
		Return(domain.Room{ID: 5, Name: "general", CreatedBy: 1, MemberCount: 1}, nil)
	f.rooms.EXPECT().Get(gomock.Any(), domain.RoomID(5)).Return(services.RoomDetail{
		Room:     domain.Room{ID: 5, Name: "general", CreatedBy: 1, MemberCount: 1},
		Messages: []domain.Message{{RoomID: 5, SenderID: 1, SenderName: "alice", Content: "hi", Sequence: 1}},
	}, nil)

	created := f.do(http.MethodPost, "/api/rooms", `{"name":"general"}`, "alice-token")
	req.Equal(http.StatusCreated, created.Code)

	got := f.do(http.MethodGet, "/api/rooms/5", "", "alice-token")
	req.Equal(http.StatusOK, got.Code)
	var detail struct {
		ID          int64 `json:"id"`
		MemberCount int   `json:"memberCount"`
		Messages    []struct {
			Content  string `json:"content"`
			Sequence uint64 `json:"sequence"`
		} `json:"messages"`
	}
	req.NoError(json.Unmarshal(got.Body.Bytes(), &detail))
	req.Equal(int64(5), detail.ID)
	req.Equal(1, detail.MemberCount)
	req.Len(detail.Messages, 1)
	req.Equal("hi", detail.Messages[0].Content)
}

func TestServer_Room_Errors(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		setup  func(f fixture)
		status int
		kind   string
	}{
		{
			name: "bad id", method: http.MethodGet, path: "/api/rooms/abc",
			setup:  func(fixture) {},
			status: http.StatusBadRequest, kind: "InvalidRequest",
		},
		{
			name: "unknown room", method: http.MethodGet, path: "/api/rooms/9",
			setup: func(f fixture) {
				f.rooms.EXPECT().Get(gomock.Any(), domain.RoomID(9)).Return(services.RoomDetail{}, errors.ErrRoomNotFound)
			},
			status: http.StatusNotFound, kind: "RoomNotFound",
		},
		{
			name: "delete by non creator", method: http.MethodDelete, path: "/api/rooms/9",
			setup: func(f fixture) {
				f.rooms.EXPECT().Delete(gomock.Any(), alice, domain.RoomID(9)).Return(errors.ErrForbidden)
			},
			status: http.StatusForbidden, kind: "Forbidden",
		},
		{
			name: "history by non member", method: http.MethodGet, path: "/api/rooms/9/messages?before=10&limit=5",
			setup: func(f fixture) {
				f.rooms.EXPECT().Messages(gomock.Any(), alice, domain.RoomID(9), uint64(10), 5).Return(nil, errors.ErrNotAuthorized)
			},
			status: http.StatusForbidden, kind: "NotAuthorized",
		},
		{
			name: "bad before", method: http.MethodGet, path: "/api/rooms/9/messages?before=-1",
			setup:  func(fixture) {},
			status: http.StatusBadRequest, kind: "InvalidRequest",
		},
		{
			name: "storage detail never leaks", method: http.MethodGet, path: "/api/rooms",
			setup: func(f fixture) {
				f.rooms.EXPECT().List(gomock.Any()).Return(nil, errors.ErrPersistenceFailed)
			},
			status: http.StatusServiceUnavailable, kind: "PersistenceFailed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			f := newFixture(t)
			f.asAlice()
			tt.setup(f)

			w := f.do(tt.method, tt.path, "", "alice-token")

			req.Equal(tt.status, w.Code)
			req.Equal(tt.kind, errorOf(t, w)["error"])
		})
	}
}

func TestServer_Membership_Routes(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.asAlice()
	f.asAlice()
	f.rooms.EXPECT().Join(gomock.Any(), alice, domain.RoomID(3)).Return(domain.Room{ID: 3, MemberCount: 2}, nil)
	f.rooms.EXPECT().RemoveMember(gomock.Any(), alice, domain.RoomID(3), domain.UserID(7)).Return(nil)

	joined := f.do(http.MethodPost, "/api/rooms/3/join", "", "alice-token")
	req.Equal(http.StatusOK, joined.Code)
	req.Contains(joined.Body.String(), `"memberCount":2`)

	removed := f.do(http.MethodDelete, "/api/rooms/3/members/7", "", "alice-token")
	req.Equal(http.StatusNoContent, removed.Code)
}

func TestServer_Search(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.asAlice()
	f.rooms.EXPECT().Search(gomock.Any(), alice, domain.RoomID(3), "hello", 0).
		Return([]domain.Message{{RoomID: 3, Content: "hello there", Sequence: 4}}, nil)

	w := f.do(http.MethodGet, "/api/rooms/3/messages/search?q=hello", "", "alice-token")

	req.Equal(http.StatusOK, w.Code)
	req.Contains(w.Body.String(), "hello there")
}

func TestServer_Update_User(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.asAlice()
	f.users.EXPECT().Update(gomock.Any(), alice, domain.UserID(1), gomock.Any()).
		DoAndReturn(func(_ any, _ domain.Identity, _ domain.UserID, r auth.UpdateUserRequest) (domain.User, error) {
			req.Nil(r.Email)
			req.Equal("alicia", *r.Username)
			return domain.User{ID: 1, Username: "alicia"}, nil
		})

	w := f.do(http.MethodPut, "/api/users/1", `{"username":"alicia"}`, "alice-token")

	req.Equal(http.StatusOK, w.Code)
	req.Contains(w.Body.String(), "alicia")
}
