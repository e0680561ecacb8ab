package runtime

import (
	"chat-rooms/contract"
	"chat-rooms/domain"
	"chat-rooms/domain/event"
	"chat-rooms/errors"
	"chat-rooms/internal/await"
	"chat-rooms/moderation"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type IngressConfig struct {
	MaxContentLength   int
	PersistenceTimeout time.Duration
	// SequenceMaxAttempts bounds the retries of an append that lost a
	// sequence race. Other failures are never retried.
	SequenceMaxAttempts int
	// LateCommitGrace bounds how long a room stays owned by an append that
	// outlived PersistenceTimeout. Zero means PersistenceTimeout.
	LateCommitGrace time.Duration
}

// Ingress takes one inbound chat message from identity check to broadcast.
// A message is either persisted and then broadcast, or neither.
type Ingress struct {
	registry   contract.IRegistry
	membership contract.IMembershipStore
	messages   contract.IMessageLog
	dispatcher contract.IDispatcher
	sequencer  *Sequencer
	moderator  *moderation.Moderator
	config     IngressConfig
	log        *slog.Logger
	now        func() time.Time
}

func NewIngress(
	registry contract.IRegistry,
	membership contract.IMembershipStore,
	messages contract.IMessageLog,
	dispatcher contract.IDispatcher,
	sequencer *Sequencer,
	moderator *moderation.Moderator,
	config IngressConfig,
	log *slog.Logger,
) *Ingress {
	return &Ingress{
		registry:   registry,
		membership: membership,
		messages:   messages,
		dispatcher: dispatcher,
		sequencer:  sequencer,
		moderator:  moderator,
		config:     config,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Post runs the pipeline for cmd and returns the persisted message. Every
// error wraps one of the taxonomy sentinels.
func (i *Ingress) Post(ctx context.Context, cmd domain.PostMessageCommand) (domain.Message, error) {
	identity, ok := i.registry.IdentityOf(cmd.Conn)
	if !ok {
		return domain.Message{}, fmt.Errorf("%w: connection %s", errors.ErrUnauthenticated, cmd.Conn)
	}

	if !domain.ValidContent(cmd.Content, i.config.MaxContentLength) {
		return domain.Message{}, fmt.Errorf("%w: %d runes", errors.ErrInvalidContent, len([]rune(cmd.Content)))
	}

	if err := i.authorize(ctx, cmd.Room, identity.UserID); err != nil {
		return domain.Message{}, err
	}

	content, censored := i.moderator.Censor(cmd.Content)
	if len(censored) > 0 {
		i.log.Info("Message censored", "room_id", cmd.Room, "user_id", identity.UserID,
			"words", len(censored), "lang", moderation.Language(cmd.Content))
	}

	draft := domain.Draft{
		ID:         uuid.New(),
		RoomID:     cmd.Room,
		SenderID:   identity.UserID,
		SenderName: identity.Username,
		Content:    content,
		CreatedAt:  i.now(),
	}
	return i.sequenceAndBroadcast(ctx, draft)
}

// authorize re-reads durable membership. It is never cached.
func (i *Ingress) authorize(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	checkCtx, cancel := context.WithTimeout(ctx, i.config.PersistenceTimeout)
	defer cancel()

	member, err := await.Do(checkCtx, func(ctx context.Context) (bool, error) {
		return i.membership.IsMember(ctx, roomID, userID)
	})
	switch {
	case stderrors.Is(err, errors.ErrRoomNotFound):
		return err
	case err != nil:
		return fmt.Errorf("%w: membership of user %d in room %d: %v", errors.ErrPersistenceFailed, userID, roomID, err)
	case !member:
		return fmt.Errorf("%w: user %d in room %d", errors.ErrNotAuthorized, userID, roomID)
	}
	return nil
}

type appendResult struct {
	message domain.Message
	err     error
}

// sequenceAndBroadcast owns the room while it appends and broadcasts, so
// subscribers observe messages of a room in sequence order.
//
// When the append outlives the persistence timeout the sender gets
// PersistenceFailed right away. The room stays owned until the append
// really returns, for at most LateCommitGrace; if it committed in that
// window, the message is broadcast then.
func (i *Ingress) sequenceAndBroadcast(ctx context.Context, draft domain.Draft) (domain.Message, error) {
	persistCtx, cancel := context.WithTimeout(ctx, i.config.PersistenceTimeout)
	defer cancel()

	release, err := i.sequencer.Acquire(persistCtx, draft.RoomID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: waiting for room %d: %v", errors.ErrPersistenceFailed, draft.RoomID, err)
	}

	done := make(chan appendResult, 1)
	go func() {
		message, err := i.appendWithRetry(persistCtx, draft)
		done <- appendResult{message: message, err: err}
	}()

	select {
	case res := <-done:
		defer release()
		if res.err != nil {
			return domain.Message{}, res.err
		}
		i.broadcast(context.WithoutCancel(ctx), res.message)
		return res.message, nil
	case <-persistCtx.Done():
		go i.awaitLateAppend(draft.RoomID, done, release)
		return domain.Message{}, fmt.Errorf("%w: append to room %d: %v", errors.ErrPersistenceFailed, draft.RoomID, persistCtx.Err())
	}
}

// awaitLateAppend holds the room for an append that missed its deadline.
// Once the grace expires the room is released, and a commit arriving after
// that is never broadcast since later messages of the room may already be out.
func (i *Ingress) awaitLateAppend(roomID domain.RoomID, done <-chan appendResult, release func()) {
	grace := i.config.LateCommitGrace
	if grace <= 0 {
		grace = i.config.PersistenceTimeout
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case res := <-done:
		defer release()
		if res.err == nil {
			i.log.Warn("Message committed after timeout", "room_id", roomID, "sequence", res.message.Sequence)
			i.broadcast(context.Background(), res.message)
		}
	case <-timer.C:
		release()
		i.log.Error("Append still pending, room released", "room_id", roomID, "grace", grace)
		if res := <-done; res.err == nil {
			i.log.Warn("Message committed after room release, not broadcast", "room_id", roomID, "sequence", res.message.Sequence)
		}
	}
}

func (i *Ingress) appendWithRetry(ctx context.Context, draft domain.Draft) (domain.Message, error) {
	var err error
	for attempt := 1; attempt <= max(i.config.SequenceMaxAttempts, 1); attempt++ {
		var message domain.Message
		message, err = i.messages.Append(ctx, draft)
		if err == nil {
			return message, nil
		}
		if !stderrors.Is(err, errors.ErrSequenceConflict) {
			break
		}
		i.log.Debug("Sequence conflict, retrying", "room_id", draft.RoomID, "attempt", attempt)
	}
	if stderrors.Is(err, errors.ErrRoomNotFound) || stderrors.Is(err, errors.ErrPersistenceFailed) {
		return domain.Message{}, err
	}
	return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrPersistenceFailed, err)
}

func (i *Ingress) broadcast(ctx context.Context, message domain.Message) {
	n := i.dispatcher.Broadcast(ctx, message.RoomID, event.NewMessagePosted(message))
	i.log.Debug("Message broadcast", "room_id", message.RoomID, "sequence", message.Sequence, "subscribers", n)
}
