// Package client is a small Go client of the chat server: REST calls for
// accounts and rooms, and a websocket session for live messaging. It backs
// the terminal client and the end to end tests.
package client

import (
	"bytes"
	"chat-rooms/domain"
	"chat-rooms/infrastructure/ws"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type Session struct {
	Token    string        `json:"token"`
	Username string        `json:"username"`
	ID       domain.UserID `json:"id"`
}

type Room struct {
	ID          domain.RoomID `json:"id"`
	Name        string        `json:"name"`
	CreatedBy   domain.UserID `json:"createdBy"`
	MemberCount int           `json:"memberCount"`
}

// APIError is a non 2xx REST answer.
type APIError struct {
	Status  int
	Kind    string `json:"error"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Kind, e.Message)
}

// API calls the REST surface of a server at baseURL, e.g. http://localhost:8080.
type API struct {
	baseURL string
	http    *http.Client
}

func NewAPI(baseURL string) *API {
	return &API{baseURL: strings.TrimRight(baseURL, "/"), http: &http.Client{Timeout: 10 * time.Second}}
}

func (a *API) Register(ctx context.Context, email, username, password string) error {
	body := map[string]string{"email": email, "username": username, "password": password}
	return a.do(ctx, http.MethodPost, "/api/users", "", body, nil)
}

// Token logs in without setting the cookie.
func (a *API) Token(ctx context.Context, email, password string) (Session, error) {
	var s Session
	err := a.do(ctx, http.MethodPost, "/api/auth/token", "", map[string]string{"email": email, "password": password}, &s)
	return s, err
}

func (a *API) CreateRoom(ctx context.Context, token, name string) (Room, error) {
	var r Room
	err := a.do(ctx, http.MethodPost, "/api/rooms", token, map[string]string{"name": name}, &r)
	return r, err
}

func (a *API) JoinRoom(ctx context.Context, token string, room domain.RoomID) error {
	return a.do(ctx, http.MethodPost, fmt.Sprintf("/api/rooms/%d/join", room), token, nil, nil)
}

func (a *API) RemoveMember(ctx context.Context, token string, room domain.RoomID, user domain.UserID) error {
	return a.do(ctx, http.MethodDelete, fmt.Sprintf("/api/rooms/%d/members/%d", room, user), token, nil, nil)
}

func (a *API) ListRooms(ctx context.Context, token string) ([]Room, error) {
	var rooms []Room
	err := a.do(ctx, http.MethodGet, "/api/rooms", token, nil, &rooms)
	return rooms, err
}

func (a *API) do(ctx context.Context, method, path, token string, in, out any) error {
	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return err
		}
	}
	r, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, &body)
	if err != nil {
		return err
	}
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.http.Do(r)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Conn is one authenticated websocket session. Frames received from the
// server are delivered in order on Frames until the socket closes.
type Conn struct {
	socket  *websocket.Conn
	frames  chan ws.Frame
	writeMu sync.Mutex
	log     *slog.Logger

	mu       sync.Mutex
	closeErr error
}

// Dial opens the websocket with the token in the query string. The first
// frame is the connection ack, or the socket is closed with 1008.
func Dial(ctx context.Context, baseURL, token string, log *slog.Logger) (*Conn, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/ws")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if token != "" {
		u.RawQuery = url.Values{"token": {token}}.Encode()
	}

	socket, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	c := &Conn{socket: socket, frames: make(chan ws.Frame, 64), log: log}
	go c.readLoop()
	return c, nil
}

func (c *Conn) Frames() <-chan ws.Frame {
	return c.frames
}

// Err is the reason the read loop stopped, valid once Frames is closed.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeErr
}

func (c *Conn) readLoop() {
	defer close(c.frames)
	for {
		_, raw, err := c.socket.ReadMessage()
		if err != nil {
			c.mu.Lock()
			c.closeErr = err
			c.mu.Unlock()
			return
		}
		var frame ws.Frame
		if err = json.Unmarshal(raw, &frame); err != nil {
			c.log.Warn("Dropping malformed frame", "error", err)
			continue
		}
		c.frames <- frame
	}
}

func (c *Conn) Send(frameType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(ws.Frame{Type: frameType, Data: data})
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.socket.WriteMessage(websocket.TextMessage, raw)
}

func (c *Conn) Join(room domain.RoomID) error {
	return c.Send(ws.TypeRoomJoin, ws.RoomPayload{RoomID: room})
}

func (c *Conn) Leave(room domain.RoomID) error {
	return c.Send(ws.TypeRoomLeave, ws.RoomPayload{RoomID: room})
}

func (c *Conn) Post(room domain.RoomID, content string) error {
	return c.Send(ws.TypeChatMessage, ws.MessagePayload{RoomID: room, Content: content})
}

func (c *Conn) History(room domain.RoomID, before uint64, limit int) error {
	return c.Send(ws.TypeChatHistory, ws.HistoryPayload{RoomID: room, Before: before, Limit: limit})
}

// Close sends a normal close frame and releases the socket.
func (c *Conn) Close() error {
	c.writeMu.Lock()
	_ = c.socket.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.socket.Close()
}
