package runtime

import (
	"chat-rooms/domain"
	"context"
	"sync"
)

// Sequencer serializes the assign-and-persist step per room. Rooms are
// independent: holding one room never delays another.
//
// A slot is a one token channel rather than a mutex so that waiting for a
// room can be abandoned when the caller's context expires.
type Sequencer struct {
	mu    sync.Mutex
	slots map[domain.RoomID]*slot
}

type slot struct {
	token chan struct{}
	refs  int
}

func NewSequencer() *Sequencer {
	return &Sequencer{slots: make(map[domain.RoomID]*slot)}
}

// Acquire blocks until the caller owns roomID or ctx is done. The returned
// release must be called exactly once.
func (s *Sequencer) Acquire(ctx context.Context, roomID domain.RoomID) (func(), error) {
	s.mu.Lock()
	sl, ok := s.slots[roomID]
	if !ok {
		sl = &slot{token: make(chan struct{}, 1)}
		s.slots[roomID] = sl
	}
	sl.refs++
	s.mu.Unlock()

	select {
	case sl.token <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-sl.token
				s.unref(roomID, sl)
			})
		}, nil
	case <-ctx.Done():
		s.unref(roomID, sl)
		return nil, ctx.Err()
	}
}

// unref forgets idle rooms so the map does not grow with every room ever
// written to.
func (s *Sequencer) unref(roomID domain.RoomID, sl *slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl.refs--
	if sl.refs == 0 {
		delete(s.slots, roomID)
	}
}

// Len is the number of rooms with a holder or a waiter.
func (s *Sequencer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}
