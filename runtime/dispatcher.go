package runtime

import (
	"chat-rooms/contract"
	"chat-rooms/domain"
	"chat-rooms/domain/event"
	"chat-rooms/errors"
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Dispatcher delivers events to live connections. Delivery is best effort:
// a subscriber whose sink fails is dropped from the registry and the others
// are served anyway.
type Dispatcher struct {
	registry    contract.IRegistry
	log         *slog.Logger
	sinkTimeout time.Duration
	// permanent receives a copy of every room broadcast for the fanout
	// worker. Nil disables it.
	permanent chan<- event.Event
}

func NewDispatcher(registry contract.IRegistry, log *slog.Logger, sinkTimeout time.Duration, permanent chan<- event.Event) *Dispatcher {
	return &Dispatcher{registry: registry, log: log, sinkTimeout: sinkTimeout, permanent: permanent}
}

var _ contract.IDispatcher = (*Dispatcher)(nil)

// Broadcast sends e to every connection subscribed to roomID at call time
// and returns how many accepted it.
func (d *Dispatcher) Broadcast(ctx context.Context, roomID domain.RoomID, e event.Event) int {
	delivered := 0
	for _, subscriber := range d.registry.SubscribersOf(roomID) {
		if err := d.deliver(ctx, subscriber.Sink, e); err != nil {
			d.log.Warn("Dropping unreachable subscriber",
				"room_id", roomID, "conn_id", subscriber.ID, "type", e.Type(), "error", err)
			d.registry.DropConnection(subscriber.ID)
			continue
		}
		delivered++
	}

	if d.permanent != nil {
		select {
		case d.permanent <- e:
		default:
			d.log.Debug("Permanent sink channel full, event lost", "room_id", roomID, "type", e.Type())
		}
	}
	return delivered
}

// Unicast sends a scoped reply to one connection. A failing sink drops the
// connection like in Broadcast.
func (d *Dispatcher) Unicast(ctx context.Context, id domain.ConnectionID, e event.Event) error {
	sink, ok := d.registry.SinkOf(id)
	if !ok {
		return fmt.Errorf("%w: connection %s", errors.ErrSinkClosed, id)
	}
	if err := d.deliver(ctx, sink, e); err != nil {
		d.log.Warn("Dropping unreachable connection", "conn_id", id, "type", e.Type(), "error", err)
		d.registry.DropConnection(id)
		return err
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, sink contract.EventSink, e event.Event) error {
	sinkCtx, cancel := context.WithTimeout(ctx, d.sinkTimeout)
	defer cancel()
	return sink.Consume(sinkCtx, e)
}
