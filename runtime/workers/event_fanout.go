package workers

import (
	"chat-rooms/contract"
	"chat-rooms/domain/event"
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// EventFanout forwards broadcast events to permanent in-process consumers
// such as the search index.
//
// It provides best-effort fan-out with no guarantees regarding delivery,
// retries or durability. Live connections are never served from here: the
// dispatcher delivers to them directly.
type EventFanout struct {
	log         *slog.Logger
	events      <-chan event.Event
	sinks       []contract.EventSink
	sinkTimeout time.Duration
	delivered   atomic.Uint64
	failed      atomic.Uint64
}

func NewEventFanout(log *slog.Logger, events <-chan event.Event, sinkTimeout time.Duration, sinks ...contract.EventSink) *EventFanout {
	return &EventFanout{log: log, events: events, sinkTimeout: sinkTimeout, sinks: sinks}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt, ok := <-w.events:
			if !ok {
				w.log.Debug("Event channel closed, stopping fanout")
				return nil
			}
			w.Fanout(ctx, evt)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping fanout")
			return nil
		}
	}
}

// Fanout hands the event to every sink, one at a time, each bounded by the
// sink timeout. A failing sink never prevents delivery to the next one.
func (w *EventFanout) Fanout(ctx context.Context, evt event.Event) {
	for _, sink := range w.sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		err := sink.Consume(sinkCtx, evt)
		cancel()
		if err != nil {
			w.failed.Add(1)
			w.log.Warn("Permanent sink failed", "type", evt.Type(), "error", err)
			continue
		}
		w.delivered.Add(1)
	}
}

type FanoutStats struct {
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
}

func (w *EventFanout) Stats() FanoutStats {
	return FanoutStats{Delivered: w.delivered.Load(), Failed: w.failed.Load()}
}
