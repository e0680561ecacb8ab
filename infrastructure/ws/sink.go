package ws

import (
	"chat-rooms/domain/event"
	"chat-rooms/errors"
	"context"
	"sync"
	"sync/atomic"
)

// Sink is the outbound buffer of one websocket connection. The write pump
// drains it. A full buffer means the client is too slow: the sink fails,
// the dispatcher drops the connection and the pump closes it.
type Sink struct {
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	overflow  atomic.Bool
}

func NewSink(bufferSize int) *Sink {
	return &Sink{send: make(chan []byte, bufferSize), done: make(chan struct{})}
}

func (s *Sink) Consume(ctx context.Context, e event.Event) error {
	payload, err := EncodeEvent(e)
	if err != nil {
		return err
	}
	select {
	case <-s.done:
		return errors.ErrSinkClosed
	default:
	}
	select {
	case s.send <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		s.overflow.Store(true)
		s.Close()
		return errors.ErrSinkFull
	}
}

// Close is safe to call many times.
func (s *Sink) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Sink) Done() <-chan struct{} {
	return s.done
}

// Overflowed reports whether the sink was closed because its buffer filled up.
func (s *Sink) Overflowed() bool {
	return s.overflow.Load()
}
