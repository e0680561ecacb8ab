//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-rooms/domain"
	"chat-rooms/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives events for one destination: a live connection, or a
// permanent consumer such as the search index.
type EventSink interface {
	Consume(ctx context.Context, e event.Event) error
}

type Subscriber struct {
	ID   domain.ConnectionID
	Sink EventSink
}

// IRegistry is the single source of truth for who receives broadcasts right
// now. It is never used to authorize a send.
type IRegistry interface {
	Register(id domain.ConnectionID, sink EventSink)
	Authenticate(id domain.ConnectionID, identity domain.Identity) error
	IdentityOf(id domain.ConnectionID) (domain.Identity, bool)
	SinkOf(id domain.ConnectionID) (EventSink, bool)
	Subscribe(id domain.ConnectionID, roomID domain.RoomID) error
	Unsubscribe(id domain.ConnectionID, roomID domain.RoomID)
	DropConnection(id domain.ConnectionID)
	SubscribersOf(roomID domain.RoomID) []Subscriber
	SubscriptionsOf(id domain.ConnectionID) []domain.RoomID
}

// IMembershipStore is the durable user to room mapping. Implementations must
// not cache: a removal is visible to the very next call.
type IMembershipStore interface {
	IsMember(ctx context.Context, roomID domain.RoomID, userID domain.UserID) (bool, error)
}

// IMessageLog is the append-only per-room message sequence.
type IMessageLog interface {
	// Append assigns the next sequence of the room and persists the message
	// atomically. A failed call consumes no sequence number.
	Append(ctx context.Context, draft domain.Draft) (domain.Message, error)
	Recent(ctx context.Context, roomID domain.RoomID, limit int) ([]domain.Message, error)
	Before(ctx context.Context, roomID domain.RoomID, before uint64, limit int) ([]domain.Message, error)
}

type IDispatcher interface {
	Broadcast(ctx context.Context, roomID domain.RoomID, e event.Event) int
	Unicast(ctx context.Context, id domain.ConnectionID, e event.Event) error
}

// IUserLookup is what the credential verifier needs from the user store.
type IUserLookup interface {
	GetUser(ctx context.Context, id domain.UserID) (domain.User, error)
}

// ICredentialVerifier resolves a bearer token to an identity.
type ICredentialVerifier interface {
	Verify(ctx context.Context, token string) (domain.Identity, error)
}

type IOrchestrator interface {
	Connect(id domain.ConnectionID, sink EventSink)
	Authenticate(ctx context.Context, id domain.ConnectionID, token string) (domain.Identity, error)
	Handle(ctx context.Context, cmd domain.Command) error
	Disconnect(id domain.ConnectionID)
}
