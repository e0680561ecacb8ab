package sink_test

import (
	"chat-rooms/domain"
	"chat-rooms/domain/event"
	"chat-rooms/mocks"
	"chat-rooms/sink"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func posted(sequence uint64) event.MessagePosted {
	return event.MessagePosted{ID: uuid.New(), Room: 1, UserID: 2, Username: "bob", Content: "hello", Sequence: sequence}
}

func TestSearchSink_Consume(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockIndex := mocks.NewMockIMessageIndex(ctrl)
	// Silencing logs for clean test output
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	t.Run("Flush triggered by size limit", func(t *testing.T) {
		req := require.New(t)
		maxSize := 3
		s := sink.NewSearchSink(mockIndex, logger, maxSize, 10*time.Second)

		mockIndex.EXPECT().
			Index(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(messages ...domain.Message) error {
				req.Len(messages, maxSize)
				req.Equal(uint64(1), messages[0].Sequence)
				req.Equal("bob", messages[0].SenderName)
				return nil
			}).Times(1)

		for i := 1; i <= maxSize; i++ {
			req.NoError(s.Consume(ctx, posted(uint64(i))))
		}
	})

	t.Run("Flush triggered by timeout", func(t *testing.T) {
		req := require.New(t)
		timeout := 30 * time.Millisecond
		s := sink.NewSearchSink(mockIndex, logger, 100, timeout)

		done := make(chan struct{})
		mockIndex.EXPECT().Index(gomock.Any()).
			DoAndReturn(func(messages ...domain.Message) error {
				close(done)
				return nil
			}).Times(1)

		req.NoError(s.Consume(ctx, posted(1)))

		select {
		case <-done:
		case <-time.After(time.Second):
			req.Fail("timer never flushed")
		}
	})

	t.Run("Other events are ignored", func(t *testing.T) {
		req := require.New(t)
		s := sink.NewSearchSink(mockIndex, logger, 1, time.Second)

		req.NoError(s.Consume(ctx, event.RoomJoined{Room: 1}))
		req.NoError(s.Flush())
	})

	t.Run("Concurrent access safety", func(t *testing.T) {
		req := require.New(t)
		numWorkers := 10
		eventsPerWorker := 10
		s := sink.NewSearchSink(mockIndex, logger, eventsPerWorker, time.Minute)

		var mu sync.Mutex
		indexed := 0
		mockIndex.EXPECT().Index(gomock.Any()).
			DoAndReturn(func(messages ...domain.Message) error {
				mu.Lock()
				indexed += len(messages)
				mu.Unlock()
				return nil
			}).AnyTimes()

		var wg sync.WaitGroup
		for range numWorkers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := range eventsPerWorker {
					_ = s.Consume(ctx, posted(uint64(j)))
				}
			}()
		}
		wg.Wait()
		req.NoError(s.Flush())

		mu.Lock()
		defer mu.Unlock()
		req.Equal(numWorkers*eventsPerWorker, indexed)
	})
}
