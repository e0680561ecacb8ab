package runtime

import (
	"chat-rooms/contract"
	"chat-rooms/domain"
	"chat-rooms/errors"
	"fmt"
	"sync"
)

type Set map[domain.ConnectionID]struct{}

// connection is the registry-owned state of one live transport session.
// Outside the registry a connection is only its ConnectionID.
type connection struct {
	identity domain.Identity
	sink     contract.EventSink
	rooms    map[domain.RoomID]struct{}
}

// Registry is an arena of live connections keyed by ConnectionID, plus the
// reverse room -> subscribers index used for fan-out. Both directions are
// updated under the same lock so they never disagree.
type Registry struct {
	mu          sync.RWMutex
	connections map[domain.ConnectionID]*connection
	roomMembers map[domain.RoomID]Set
}

func NewRegistry() *Registry {
	return &Registry{
		connections: make(map[domain.ConnectionID]*connection),
		roomMembers: make(map[domain.RoomID]Set),
	}
}

var _ contract.IRegistry = (*Registry)(nil)

// Register creates the arena entry of a freshly accepted transport. The
// connection has no identity until Authenticate succeeds.
func (r *Registry) Register(id domain.ConnectionID, sink contract.EventSink) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.connections[id]; ok {
		return
	}
	r.connections[id] = &connection{sink: sink, rooms: make(map[domain.RoomID]struct{})}
}

// Authenticate binds identity to the connection. The identity of a
// connection never changes once set.
func (r *Registry) Authenticate(id domain.ConnectionID, identity domain.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.connections[id]
	if !ok {
		return fmt.Errorf("%w: unknown connection %s", errors.ErrUnauthenticated, id)
	}
	if !c.identity.IsZero() && c.identity.UserID != identity.UserID {
		return fmt.Errorf("%w: connection %s already bound to user %d", errors.ErrUnauthenticated, id, c.identity.UserID)
	}
	c.identity = identity
	return nil
}

func (r *Registry) IdentityOf(id domain.ConnectionID) (domain.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.connections[id]
	if !ok || c.identity.IsZero() {
		return domain.Identity{}, false
	}
	return c.identity, true
}

func (r *Registry) SinkOf(id domain.ConnectionID) (contract.EventSink, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.connections[id]
	if !ok {
		return nil, false
	}
	return c.sink, true
}

// Subscribe is idempotent. Only authenticated connections can subscribe.
func (r *Registry) Subscribe(id domain.ConnectionID, roomID domain.RoomID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.connections[id]
	if !ok || c.identity.IsZero() {
		return fmt.Errorf("%w: connection %s", errors.ErrUnauthenticated, id)
	}
	c.rooms[roomID] = struct{}{}

	if _, ok := r.roomMembers[roomID]; !ok {
		r.roomMembers[roomID] = make(Set)
	}
	r.roomMembers[roomID][id] = struct{}{}
	return nil
}

// Unsubscribe is idempotent and a no-op for unknown pairs.
func (r *Registry) Unsubscribe(id domain.ConnectionID, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.connections[id]; ok {
		delete(c.rooms, roomID)
	}
	r.removeFromRoom(id, roomID)
}

// DropConnection removes the connection from every room and deletes its
// arena entry. Safe for unknown connections.
func (r *Registry) DropConnection(id domain.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.connections[id]
	if !ok {
		return
	}
	for roomID := range c.rooms {
		r.removeFromRoom(id, roomID)
	}
	delete(r.connections, id)
}

// removeFromRoom must be called with the write lock held. Empty rooms are
// removed so the index does not grow with dead rooms.
func (r *Registry) removeFromRoom(id domain.ConnectionID, roomID domain.RoomID) {
	members, ok := r.roomMembers[roomID]
	if !ok {
		return
	}
	delete(members, id)
	if len(members) == 0 {
		delete(r.roomMembers, roomID)
	}
}

// SubscribersOf reads the current subscriber set. The returned slice is a
// copy taken at call time.
func (r *Registry) SubscribersOf(roomID domain.RoomID) []contract.Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.roomMembers[roomID]
	if !ok {
		return nil
	}
	subscribers := make([]contract.Subscriber, 0, len(members))
	for id := range members {
		if c, exists := r.connections[id]; exists {
			subscribers = append(subscribers, contract.Subscriber{ID: id, Sink: c.sink})
		}
	}
	return subscribers
}

func (r *Registry) SubscriptionsOf(id domain.ConnectionID) []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.connections[id]
	if !ok {
		return nil
	}
	rooms := make([]domain.RoomID, 0, len(c.rooms))
	for roomID := range c.rooms {
		rooms = append(rooms, roomID)
	}
	return rooms
}

type RegistryStats struct {
	Connections   int `json:"connections"`
	Authenticated int `json:"authenticated"`
	Rooms         int `json:"rooms"`
	Subscriptions int `json:"subscriptions"`
}

func (r *Registry) Stats() RegistryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := RegistryStats{Connections: len(r.connections), Rooms: len(r.roomMembers)}
	for _, c := range r.connections {
		if !c.identity.IsZero() {
			stats.Authenticated++
		}
		stats.Subscriptions += len(c.rooms)
	}
	return stats
}
