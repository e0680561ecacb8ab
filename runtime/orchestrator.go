// Package runtime holds the live state of the chat: connections, room
// subscriptions, per-room sequencing and event delivery. It holds no
// durable state; users, rooms and messages live behind the store contracts.
package runtime

import (
	"chat-rooms/contract"
	"chat-rooms/domain"
	"chat-rooms/domain/event"
	"chat-rooms/errors"
	"chat-rooms/internal/await"
	"chat-rooms/moderation"
	"chat-rooms/runtime/workers"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type Config struct {
	MaxContentLength        int
	HistoryLimit            int
	RequireMembershipToJoin bool
	AuthTimeout             time.Duration
	PersistenceTimeout      time.Duration
	SequenceMaxAttempts     int
	SinkTimeout             time.Duration
	BufferSize              int
}

// Orchestrator is the entry point of the transport layer into the runtime.
// It turns connection lifecycle calls and commands into registry updates,
// pipeline runs and scoped replies.
type Orchestrator struct {
	mu              sync.Mutex
	log             *slog.Logger
	config          Config
	supervisor      contract.ISupervisor
	registry        contract.IRegistry
	verifier        contract.ICredentialVerifier
	membership      contract.IMembershipStore
	messages        contract.IMessageLog
	dispatcher      *Dispatcher
	sequencer       *Sequencer
	ingress         *Ingress
	permanentEvents chan event.Event
	permanentSinks  []contract.EventSink
	fanout          *workers.EventFanout
}

func NewOrchestrator(
	log *slog.Logger,
	supervisor contract.ISupervisor,
	registry contract.IRegistry,
	verifier contract.ICredentialVerifier,
	membership contract.IMembershipStore,
	messages contract.IMessageLog,
	moderator *moderation.Moderator,
	config Config,
) *Orchestrator {
	permanentEvents := make(chan event.Event, config.BufferSize)
	dispatcher := NewDispatcher(registry, log, config.SinkTimeout, permanentEvents)
	sequencer := NewSequencer()
	ingress := NewIngress(registry, membership, messages, dispatcher, sequencer, moderator, IngressConfig{
		MaxContentLength:    config.MaxContentLength,
		PersistenceTimeout:  config.PersistenceTimeout,
		SequenceMaxAttempts: config.SequenceMaxAttempts,
	}, log)

	return &Orchestrator{
		log:             log,
		config:          config,
		supervisor:      supervisor,
		registry:        registry,
		verifier:        verifier,
		membership:      membership,
		messages:        messages,
		dispatcher:      dispatcher,
		sequencer:       sequencer,
		ingress:         ingress,
		permanentEvents: permanentEvents,
	}
}

var _ contract.IOrchestrator = (*Orchestrator)(nil)

// Add registers permanent sinks. They receive every room broadcast through
// the supervised fanout worker. Must be called before Start.
func (o *Orchestrator) Add(sinks ...contract.EventSink) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.permanentSinks = append(o.permanentSinks, sinks...)
}

// Start builds the fanout worker and runs the supervisor in the background.
// Extra workers, such as telemetry, are supervised alongside.
func (o *Orchestrator) Start(ctx context.Context, extra ...contract.Worker) {
	o.mu.Lock()
	o.fanout = workers.NewEventFanout(o.log, o.permanentEvents, o.config.SinkTimeout, o.permanentSinks...)
	o.supervisor.Add(o.fanout)
	o.supervisor.Add(extra...)
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers", "permanent_sinks", len(o.permanentSinks))
	go o.supervisor.Run(ctx)
}

// Stop cancels the supervised workers.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}

func (o *Orchestrator) Connect(id domain.ConnectionID, sink contract.EventSink) {
	o.registry.Register(id, sink)
	o.log.Debug("Connection registered", "conn_id", id)
}

// Authenticate verifies token within the auth timeout and binds the
// resulting identity to the connection. On success the connection receives
// its acknowledgement before anything else.
func (o *Orchestrator) Authenticate(ctx context.Context, id domain.ConnectionID, token string) (domain.Identity, error) {
	authCtx, cancel := context.WithTimeout(ctx, o.config.AuthTimeout)
	defer cancel()

	identity, err := await.Do(authCtx, func(ctx context.Context) (domain.Identity, error) {
		return o.verifier.Verify(ctx, token)
	})
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
			err = fmt.Errorf("%w: verification: %v", errors.ErrUnauthenticated, err)
		}
		o.log.Info("Connection rejected", "conn_id", id, "kind", errors.KindOf(err), "error", err)
		return domain.Identity{}, err
	}

	if err = o.registry.Authenticate(id, identity); err != nil {
		return domain.Identity{}, err
	}
	o.log.Info("Connection authenticated", "conn_id", id, "user_id", identity.UserID)

	if err = o.dispatcher.Unicast(ctx, id, event.ConnectionAck{UserID: identity.UserID}); err != nil {
		return domain.Identity{}, err
	}
	return identity, nil
}

// Handle runs one command. Failures are reported to the originating
// connection as a scoped error event and returned for the caller's logs.
func (o *Orchestrator) Handle(ctx context.Context, cmd domain.Command) error {
	var (
		scope string
		room  domain.RoomID
		err   error
	)
	switch c := cmd.(type) {
	case domain.PostMessageCommand:
		scope, room = event.TypeChatMessage, c.Room
		_, err = o.ingress.Post(ctx, c)
	case domain.JoinRoomCommand:
		scope, room = "room:join", c.Room
		err = o.join(ctx, c)
	case domain.LeaveRoomCommand:
		scope, room = "room:leave", c.Room
		err = o.leave(ctx, c)
	case domain.HistoryCommand:
		scope, room = event.TypeChatHistory, c.Room
		err = o.history(ctx, c)
	default:
		return fmt.Errorf("%w: unsupported command %T", errors.ErrInvalidRequest, cmd)
	}
	if err == nil {
		return nil
	}

	identity, _ := o.registry.IdentityOf(cmd.Connection())
	kind := errors.KindOf(err)
	attrs := []any{"scope", scope, "room_id", room, "user_id", identity.UserID, "conn_id", cmd.Connection(), "kind", kind, "error", err}
	if kind == errors.KindPersistenceFailed || kind == errors.KindInternal {
		o.log.Error("Command failed", attrs...)
	} else {
		o.log.Info("Command rejected", attrs...)
	}

	if replyErr := o.dispatcher.Unicast(ctx, cmd.Connection(), event.NewFailure(scope, err, room)); replyErr != nil {
		o.log.Debug("Failure reply not delivered", "conn_id", cmd.Connection(), "error", replyErr)
	}
	return err
}

// Disconnect is called once per connection when its transport is gone.
func (o *Orchestrator) Disconnect(id domain.ConnectionID) {
	o.registry.DropConnection(id)
	o.log.Debug("Connection dropped", "conn_id", id)
}

// join moves (connection, room) to Subscribed and replies with the most
// recent history. Joining an already joined room replays the history.
func (o *Orchestrator) join(ctx context.Context, cmd domain.JoinRoomCommand) error {
	identity, ok := o.registry.IdentityOf(cmd.Conn)
	if !ok {
		return fmt.Errorf("%w: connection %s", errors.ErrUnauthenticated, cmd.Conn)
	}

	member, err := o.isMember(ctx, cmd.Room, identity.UserID)
	if err != nil {
		return err
	}
	if o.config.RequireMembershipToJoin && !member {
		return fmt.Errorf("%w: user %d in room %d", errors.ErrNotAuthorized, identity.UserID, cmd.Room)
	}

	if err = o.registry.Subscribe(cmd.Conn, cmd.Room); err != nil {
		return err
	}
	if err = o.dispatcher.Unicast(ctx, cmd.Conn, event.RoomJoined{Room: cmd.Room}); err != nil {
		return err
	}
	// Without durable membership the history stays private, as for explicit
	// history requests.
	if !member {
		return nil
	}

	messages, err := o.readHistory(ctx, cmd.Room, 0, o.config.HistoryLimit)
	if err != nil {
		// The subscription stands: live messages flow, only history is missing.
		return err
	}
	return o.dispatcher.Unicast(ctx, cmd.Conn, event.NewHistory(cmd.Room, messages))
}

// leave is always permitted and idempotent.
func (o *Orchestrator) leave(ctx context.Context, cmd domain.LeaveRoomCommand) error {
	o.registry.Unsubscribe(cmd.Conn, cmd.Room)
	return o.dispatcher.Unicast(ctx, cmd.Conn, event.RoomLeft{Room: cmd.Room})
}

// history serves explicit history requests, used by clients to fill gaps.
// It requires durable membership, like sending.
func (o *Orchestrator) history(ctx context.Context, cmd domain.HistoryCommand) error {
	identity, ok := o.registry.IdentityOf(cmd.Conn)
	if !ok {
		return fmt.Errorf("%w: connection %s", errors.ErrUnauthenticated, cmd.Conn)
	}
	member, err := o.isMember(ctx, cmd.Room, identity.UserID)
	if err != nil {
		return err
	}
	if !member {
		return fmt.Errorf("%w: user %d in room %d", errors.ErrNotAuthorized, identity.UserID, cmd.Room)
	}

	limit := cmd.Limit
	if limit <= 0 || limit > o.config.HistoryLimit {
		limit = o.config.HistoryLimit
	}
	messages, err := o.readHistory(ctx, cmd.Room, cmd.BeforeSequence, limit)
	if err != nil {
		return err
	}
	return o.dispatcher.Unicast(ctx, cmd.Conn, event.NewHistory(cmd.Room, messages))
}

func (o *Orchestrator) isMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error) {
	checkCtx, cancel := context.WithTimeout(ctx, o.config.PersistenceTimeout)
	defer cancel()

	member, err := await.Do(checkCtx, func(ctx context.Context) (bool, error) {
		return o.membership.IsMember(ctx, roomID, userID)
	})
	if err != nil && !stderrors.Is(err, errors.ErrRoomNotFound) {
		return false, fmt.Errorf("%w: membership of user %d in room %d: %v", errors.ErrPersistenceFailed, userID, roomID, err)
	}
	return member, err
}

func (o *Orchestrator) readHistory(ctx context.Context, roomID domain.RoomID, before uint64, limit int) ([]domain.Message, error) {
	readCtx, cancel := context.WithTimeout(ctx, o.config.PersistenceTimeout)
	defer cancel()

	messages, err := await.Do(readCtx, func(ctx context.Context) ([]domain.Message, error) {
		return o.messages.Before(ctx, roomID, before, limit)
	})
	if err != nil && !stderrors.Is(err, errors.ErrPersistenceFailed) {
		return nil, fmt.Errorf("%w: history of room %d: %v", errors.ErrPersistenceFailed, roomID, err)
	}
	return messages, err
}

// Stats is a flat snapshot for telemetry and the debug endpoint.
func (o *Orchestrator) Stats() map[string]any {
	stats := map[string]any{
		"rooms_sequencing":  o.sequencer.Len(),
		"permanent_backlog": len(o.permanentEvents),
	}
	if r, ok := o.registry.(interface{ Stats() RegistryStats }); ok {
		s := r.Stats()
		stats["connections"] = s.Connections
		stats["authenticated"] = s.Authenticated
		stats["rooms_live"] = s.Rooms
		stats["subscriptions"] = s.Subscriptions
	}
	o.mu.Lock()
	fanout := o.fanout
	o.mu.Unlock()
	if fanout != nil {
		f := fanout.Stats()
		stats["fanout_delivered"] = f.Delivered
		stats["fanout_failed"] = f.Failed
	}
	return stats
}
