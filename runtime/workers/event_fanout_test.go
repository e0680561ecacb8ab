package workers

import (
	"chat-rooms/domain"
	"chat-rooms/domain/event"
	"chat-rooms/errors"
	"chat-rooms/mocks"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func posted() event.MessagePosted {
	return event.NewMessagePosted(domain.Message{
		ID: uuid.New(), RoomID: 5, SenderID: 1, SenderName: "alice",
		Content: "hello", Sequence: 1, CreatedAt: time.Now().UTC(),
	})
}

func TestEventFanout_FailingSinkIsIsolated(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	failing := mocks.NewMockEventSink(ctrl)
	healthy := mocks.NewMockEventSink(ctrl)
	evt := posted()

	// Given a first sink that always fails
	failing.EXPECT().Consume(gomock.Any(), evt).Return(errors.ErrSinkFull).Times(1)
	healthy.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)

	fanout := NewEventFanout(log, nil, 100*time.Millisecond, failing, healthy)

	// When fanning out
	fanout.Fanout(context.Background(), evt)

	// Then the second sink still got the event
	req.Equal(FanoutStats{Delivered: 1, Failed: 1}, fanout.Stats())
}

func TestEventFanout_RunDrainsChannel(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	sink := mocks.NewMockEventSink(ctrl)
	events := make(chan event.Event, 3)

	received := make(chan event.Event, 3)
	sink.EXPECT().Consume(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, e event.Event) error {
			received <- e
			return nil
		}).Times(3)

	fanout := NewEventFanout(slog.Default(), events, 100*time.Millisecond, sink)
	for range 3 {
		events <- posted()
	}
	close(events)

	// Run returns nil once the channel is closed
	req.NoError(fanout.Run(context.Background()))
	req.Len(received, 3)
}
