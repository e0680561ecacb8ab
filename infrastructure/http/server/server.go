// Package server is the REST surface for accounts, rooms and membership.
// Live messaging goes through the websocket endpoint, mounted here as well.
package server

import (
	"chat-rooms/auth"
	"chat-rooms/contract"
	"chat-rooms/domain"
	"chat-rooms/errors"
	"chat-rooms/services"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

type Server struct {
	auth     services.IAuthService
	users    services.IUserService
	rooms    services.IRoomService
	verifier contract.ICredentialVerifier
	// secureCookie is off for plain http development setups.
	secureCookie bool
	tokenTTL     time.Duration
	log          *slog.Logger
}

func NewServer(
	authService services.IAuthService,
	users services.IUserService,
	rooms services.IRoomService,
	verifier contract.ICredentialVerifier,
	tokenTTL time.Duration,
	secureCookie bool,
	log *slog.Logger,
) *Server {
	return &Server{
		auth:         authService,
		users:        users,
		rooms:        rooms,
		verifier:     verifier,
		tokenTTL:     tokenTTL,
		secureCookie: secureCookie,
		log:          log,
	}
}

// Routes builds the router. websocket may be nil when only REST is served.
func (s *Server) Routes(websocket http.Handler) http.Handler {
	mux := http.NewServeMux()
	protected := auth.Middleware(s.verifier, s.log)
	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, protected(h))
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if websocket != nil {
		mux.Handle("GET /ws", websocket)
	}

	mux.HandleFunc("POST /api/users", s.register)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("POST /api/auth/token", s.token)
	mux.HandleFunc("POST /api/auth/logout", s.logout)

	handle("GET /api/users", s.listUsers)
	handle("GET /api/users/{id}", s.getUser)
	handle("PUT /api/users/{id}", s.updateUser)
	handle("DELETE /api/users/{id}", s.deleteUser)

	handle("POST /api/rooms", s.createRoom)
	handle("GET /api/rooms", s.listRooms)
	handle("GET /api/rooms/{id}", s.getRoom)
	handle("DELETE /api/rooms/{id}", s.deleteRoom)
	handle("POST /api/rooms/{id}/join", s.joinRoom)
	handle("DELETE /api/rooms/{id}/members/{userId}", s.removeMember)
	handle("GET /api/rooms/{id}/messages", s.listMessages)
	handle("GET /api/rooms/{id}/messages/search", s.searchMessages)

	return mux
}

func identity(r *http.Request) domain.Identity {
	id, _ := auth.IdentityFrom(r.Context())
	return id
}

func pathRoomID(r *http.Request) (domain.RoomID, error) {
	id, ok := domain.ParseRoomID(r.PathValue("id"))
	if !ok {
		return 0, errors.ErrInvalidRequest
	}
	return id, nil
}

func pathUserID(r *http.Request, name string) (domain.UserID, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.ErrInvalidRequest
	}
	return domain.UserID(id), nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.ErrInvalidRequest
	}
	return v, nil
}
