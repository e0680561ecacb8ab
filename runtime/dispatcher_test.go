package runtime

import (
	"chat-rooms/domain"
	"chat-rooms/domain/event"
	"chat-rooms/errors"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type brokenSink struct{}

func (brokenSink) Consume(context.Context, event.Event) error { return errors.ErrSinkFull }

// stuckSink blocks until its delivery deadline.
type stuckSink struct{}

func (stuckSink) Consume(ctx context.Context, _ event.Event) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestDispatcher_Broadcast_Drops_Failing_Subscriber(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	permanent := make(chan event.Event, 1)
	dispatcher := NewDispatcher(registry, logs.GetLoggerFromLevel(slog.LevelDebug), 20*time.Millisecond, permanent)

	// Given one healthy, one broken and one stuck subscriber
	healthy, healthySink := connect(registry, 1)
	broken := domain.NewConnectionID()
	registry.Register(broken, brokenSink{})
	req.NoError(registry.Authenticate(broken, domain.Identity{UserID: 2}))
	stuck := domain.NewConnectionID()
	registry.Register(stuck, stuckSink{})
	req.NoError(registry.Authenticate(stuck, domain.Identity{UserID: 3}))
	for _, id := range []domain.ConnectionID{healthy, broken, stuck} {
		req.NoError(registry.Subscribe(id, 1))
	}

	// When
	delivered := dispatcher.Broadcast(context.Background(), 1, event.RoomJoined{Room: 1})

	// Then only the healthy one is served and kept
	req.Equal(1, delivered)
	req.Len(healthySink.Events(), 1)
	req.Equal([]domain.ConnectionID{healthy}, ids(registry.SubscribersOf(1)))
	_, ok := registry.IdentityOf(broken)
	req.False(ok)

	// And permanent sinks get their copy
	req.Len(permanent, 1)
}

func TestDispatcher_Broadcast_Full_Permanent_Channel_Does_Not_Block(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	dispatcher := NewDispatcher(registry, logs.GetLoggerFromLevel(slog.LevelDebug), 20*time.Millisecond, make(chan event.Event))

	req.Zero(dispatcher.Broadcast(context.Background(), 1, event.RoomLeft{Room: 1}))
}

func TestDispatcher_Unicast_Unknown_Connection(t *testing.T) {
	req := require.New(t)
	dispatcher := NewDispatcher(NewRegistry(), logs.GetLoggerFromLevel(slog.LevelDebug), 20*time.Millisecond, nil)

	err := dispatcher.Unicast(context.Background(), domain.NewConnectionID(), event.ConnectionAck{UserID: 1})

	req.ErrorIs(err, errors.ErrSinkClosed)
}
