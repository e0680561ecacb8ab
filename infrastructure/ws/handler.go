// Package ws is the websocket transport: handshake authentication, frame
// decoding, the bounded per-connection ingress queue and the read/write
// pumps.
package ws

import (
	"chat-rooms/auth"
	"chat-rooms/contract"
	"chat-rooms/domain"
	"chat-rooms/domain/event"
	"chat-rooms/errors"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	ReasonTokenRequired = "Authentication token required"
	ReasonTokenInvalid  = "Invalid authentication token"
)

type Config struct {
	AuthTimeout          time.Duration
	IngressQueueSize     int
	ConnectionBufferSize int
	MaxFrameSize         int64
	PongWait             time.Duration
	PingPeriod           time.Duration
	WriteWait            time.Duration
}

// DefaultConfig fills the socket timings. Queue and buffer sizes come from
// the environment.
func DefaultConfig(authTimeout time.Duration, ingressQueueSize, connectionBufferSize int) Config {
	return Config{
		AuthTimeout:          authTimeout,
		IngressQueueSize:     ingressQueueSize,
		ConnectionBufferSize: connectionBufferSize,
		MaxFrameSize:         64 * 1024,
		PongWait:             60 * time.Second,
		PingPeriod:           54 * time.Second,
		WriteWait:            10 * time.Second,
	}
}

type Handler struct {
	orchestrator contract.IOrchestrator
	upgrader     websocket.Upgrader
	config       Config
	log          *slog.Logger
}

func NewHandler(orchestrator contract.IOrchestrator, origins *OriginPolicy, config Config, log *slog.Logger) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.Check,
		},
		config: config,
		log:    log,
	}
}

// ServeHTTP upgrades the request and blocks until the connection is gone.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("Websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	c := &connection{
		id:           domain.NewConnectionID(),
		conn:         conn,
		sink:         NewSink(h.config.ConnectionBufferSize),
		queue:        make(chan domain.Command, h.config.IngressQueueSize),
		orchestrator: h.orchestrator,
		config:       h.config,
	}
	c.log = h.log.With("conn_id", c.id, "remote_addr", r.RemoteAddr)
	c.serve(r)
}

type connection struct {
	id           domain.ConnectionID
	conn         *websocket.Conn
	sink         *Sink
	queue        chan domain.Command
	orchestrator contract.IOrchestrator
	config       Config
	log          *slog.Logger
}

func (c *connection) serve(r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c.orchestrator.Connect(c.id, c.sink)
	defer c.orchestrator.Disconnect(c.id)

	token := auth.TokenFromRequest(r)
	if token == "" {
		token = c.awaitAuthFrame()
	}
	identity, err := c.orchestrator.Authenticate(ctx, c.id, token)
	if err != nil {
		c.reject(err)
		return
	}
	c.log = c.log.With("user_id", identity.UserID)
	c.log.Info("Websocket connected")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump()
	}()
	go c.ingressWorker(ctx)

	c.readPump(ctx)

	close(c.queue)
	c.sink.Close()
	<-writerDone
	c.log.Info("Websocket disconnected")
}

// awaitAuthFrame gives clients that cannot set headers AuthTimeout to send
// {"type":"auth","data":{"token":"..."}} as their first frame.
func (c *connection) awaitAuthFrame() string {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.config.AuthTimeout))
	defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()

	_, raw, err := c.conn.ReadMessage()
	if err != nil {
		return ""
	}
	frame, err := DecodeFrame(raw)
	if err != nil || frame.Type != TypeAuth {
		return ""
	}
	var payload AuthPayload
	if err = json.Unmarshal(frame.Data, &payload); err != nil {
		return ""
	}
	return payload.Token
}

// reject closes the socket with a policy violation. Missing tokens and
// every other failure get distinct reasons; a verifier that broke rather
// than refused the token is still reported to the client as invalid.
func (c *connection) reject(err error) {
	reason := ReasonTokenInvalid
	if errors.KindOf(err) == errors.KindTokenMissing {
		reason = ReasonTokenRequired
	}
	if errors.IsCredentialFailure(err) {
		c.log.Info("Websocket rejected", "kind", errors.KindOf(err), "reason", reason)
	} else {
		c.log.Error("Credential check failed", "kind", errors.KindOf(err), "reason", reason, "error", err)
	}
	deadline := time.Now().Add(c.config.WriteWait)
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), deadline)
	_ = c.conn.Close()
}

func (c *connection) readPump(ctx context.Context) {
	c.conn.SetReadLimit(c.config.MaxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		frame, err := DecodeFrame(raw)
		if err == nil && frame.Type == TypeAuth {
			// The identity is bound at handshake and never replaced.
			continue
		}
		var cmd domain.Command
		if err == nil {
			cmd, err = ToCommand(c.id, frame)
		}
		if err != nil {
			c.fail(ctx, frame, err)
			continue
		}

		select {
		case c.queue <- cmd:
		default:
			c.fail(ctx, frame, fmt.Errorf("%w: %d commands pending", errors.ErrBackpressure, len(c.queue)))
		}
	}
}

// ingressWorker runs the commands of this connection one at a time, in the
// order they were read.
func (c *connection) ingressWorker(ctx context.Context) {
	for cmd := range c.queue {
		if err := c.orchestrator.Handle(ctx, cmd); err != nil {
			c.log.Debug("Command failed", "command", fmt.Sprintf("%T", cmd), "error", err)
		}
	}
}

func (c *connection) fail(ctx context.Context, frame Frame, err error) {
	scope := ""
	switch frame.Type {
	case TypeRoomJoin, TypeRoomLeave, TypeChatMessage, TypeChatHistory:
		scope = frame.Type
	}
	c.log.Info("Frame rejected", "type", frame.Type, "kind", errors.KindOf(err), "error", err)
	if err = c.sink.Consume(ctx, event.NewFailure(scope, err, roomOf(frame))); err != nil {
		c.log.Debug("Failure reply not delivered", "error", err)
	}
}

func (c *connection) logReadError(err error) {
	switch {
	case stderrors.Is(err, websocket.ErrReadLimit):
		c.log.Info("Frame exceeded maximum size", "max_bytes", c.config.MaxFrameSize)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		c.log.Debug("Client closed connection", "error", err)
	default:
		c.log.Debug("Websocket read ended", "error", err)
	}
}

// writePump is the only writer of the socket. Frames queued while writing
// are flushed in the same wake-up.
func (c *connection) writePump() {
	ticker := time.NewTicker(c.config.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.sink.send:
			if !c.write(payload) {
				return
			}
			for n := len(c.sink.send); n > 0; n-- {
				if !c.write(<-c.sink.send) {
					return
				}
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.sink.Done():
			code, reason := websocket.CloseNormalClosure, ""
			if c.sink.Overflowed() {
				code, reason = websocket.CloseTryAgainLater, "Connection too slow"
				c.log.Warn("Closing slow connection")
			}
			_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(c.config.WriteWait))
			return
		}
	}
}

func (c *connection) write(payload []byte) bool {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.log.Debug("Websocket write failed", "error", err)
		return false
	}
	return true
}
