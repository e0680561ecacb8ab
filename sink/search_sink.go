package sink

import (
	"chat-rooms/domain"
	"chat-rooms/domain/event"
	"chat-rooms/infrastructure/search"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SearchSink is a permanent sink feeding the full text index with every
// broadcast message. Messages are indexed in batches: a batch is flushed
// when it reaches maxBatch or flushInterval after its first message.
type SearchSink struct {
	mu            sync.Mutex
	timer         *time.Timer
	index         search.IMessageIndex
	log           *slog.Logger
	messages      []domain.Message
	maxBatch      int
	flushInterval time.Duration
}

func NewSearchSink(index search.IMessageIndex, log *slog.Logger, maxBatch int, flushInterval time.Duration) *SearchSink {
	return &SearchSink{
		index:         index,
		log:           log,
		maxBatch:      max(maxBatch, 1),
		flushInterval: flushInterval,
	}
}

// Consume ignores everything but MessagePosted.
func (s *SearchSink) Consume(_ context.Context, e event.Event) error {
	posted, ok := e.(event.MessagePosted)
	if !ok {
		return nil
	}

	s.mu.Lock()
	s.messages = append(s.messages, fromPosted(posted))

	// First message of a new batch: make sure it does not wait forever
	// when traffic is low.
	if len(s.messages) == 1 && s.timer == nil {
		s.timer = time.AfterFunc(s.flushInterval, func() {
			if err := s.Flush(); err != nil {
				s.log.Error("Timed search flush failed", "error", err)
			}
		})
	}
	full := len(s.messages) >= s.maxBatch
	s.mu.Unlock()

	if full {
		return s.Flush()
	}
	return nil
}

// Flush indexes the pending batch. It is also called on shutdown.
func (s *SearchSink) Flush() error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if len(s.messages) == 0 {
		s.mu.Unlock()
		return nil
	}
	// Swap so the next batch fills while this one is written.
	batch := s.messages
	s.messages = make([]domain.Message, 0, s.maxBatch)
	s.mu.Unlock()

	if err := s.index.Index(batch...); err != nil {
		return fmt.Errorf("indexing %d messages: %w", len(batch), err)
	}
	s.log.Debug("Search batch indexed", "count", len(batch))
	return nil
}

func fromPosted(e event.MessagePosted) domain.Message {
	return domain.Message{
		ID:         e.ID,
		RoomID:     e.Room,
		SenderID:   e.UserID,
		SenderName: e.Username,
		Content:    e.Content,
		Sequence:   e.Sequence,
		CreatedAt:  e.CreatedAt,
	}
}
