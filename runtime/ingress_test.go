package runtime

import (
	"chat-rooms/domain"
	"chat-rooms/domain/event"
	"chat-rooms/errors"
	"chat-rooms/mocks"
	"chat-rooms/moderation"
	"context"
	stderrors "errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type ingressFixture struct {
	registry   *Registry
	membership *mocks.MockIMembershipStore
	messages   *mocks.MockIMessageLog
	ingress    *Ingress
}

func newIngressFixture(t *testing.T, moderator *moderation.Moderator) ingressFixture {
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := NewRegistry()
	membership := mocks.NewMockIMembershipStore(ctrl)
	messages := mocks.NewMockIMessageLog(ctrl)
	dispatcher := NewDispatcher(registry, log, 50*time.Millisecond, nil)
	ingress := NewIngress(registry, membership, messages, dispatcher, NewSequencer(), moderator, IngressConfig{
		MaxContentLength:    10,
		PersistenceTimeout:  30 * time.Millisecond,
		SequenceMaxAttempts: 3,
		LateCommitGrace:     200 * time.Millisecond,
	}, log)
	return ingressFixture{registry: registry, membership: membership, messages: messages, ingress: ingress}
}

func persisted(draft domain.Draft, sequence uint64) domain.Message {
	return domain.Message{
		ID:         draft.ID,
		RoomID:     draft.RoomID,
		SenderID:   draft.SenderID,
		SenderName: draft.SenderName,
		Content:    draft.Content,
		Sequence:   sequence,
		CreatedAt:  draft.CreatedAt,
	}
}

func TestIngress_Post_Broadcasts_To_Room_Subscribers_Only(t *testing.T) {
	req := require.New(t)
	f := newIngressFixture(t, nil)
	ctx := context.Background()

	// Given a sender and a listener in room 1, and a bystander in room 2
	sender, senderSink := connect(f.registry, 1)
	listener, listenerSink := connect(f.registry, 2)
	bystander, bystanderSink := connect(f.registry, 3)
	req.NoError(f.registry.Subscribe(sender, 1))
	req.NoError(f.registry.Subscribe(listener, 1))
	req.NoError(f.registry.Subscribe(bystander, 2))

	f.membership.EXPECT().IsMember(gomock.Any(), domain.RoomID(1), domain.UserID(1)).Return(true, nil)
	f.messages.EXPECT().Append(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, draft domain.Draft) (domain.Message, error) {
			return persisted(draft, 7), nil
		})

	// When
	message, err := f.ingress.Post(ctx, domain.PostMessageCommand{Conn: sender, Room: 1, Content: "hello"})

	// Then
	req.NoError(err)
	req.Equal(uint64(7), message.Sequence)
	req.Equal("u", message.SenderName)
	req.Len(senderSink.Events(), 1)
	req.Len(listenerSink.Events(), 1)
	req.Empty(bystanderSink.Events())

	posted, ok := listenerSink.Events()[0].(event.MessagePosted)
	req.True(ok)
	req.Equal("hello", posted.Content)
	req.Equal(domain.UserID(1), posted.UserID)
}

func TestIngress_Post_Unauthenticated(t *testing.T) {
	req := require.New(t)
	f := newIngressFixture(t, nil)

	// Given a connection that never authenticated
	id := domain.NewConnectionID()
	f.registry.Register(id, &Sink{})

	_, err := f.ingress.Post(context.Background(), domain.PostMessageCommand{Conn: id, Room: 1, Content: "hi"})

	req.Equal(errors.KindUnauthenticated, errors.KindOf(err))
}

func TestIngress_Post_InvalidContent(t *testing.T) {
	f := newIngressFixture(t, nil)
	id, _ := connect(f.registry, 1)

	for _, content := range []string{"", "   \n\t", strings.Repeat("a", 11)} {
		_, err := f.ingress.Post(context.Background(), domain.PostMessageCommand{Conn: id, Room: 1, Content: content})
		require.Equal(t, errors.KindInvalidContent, errors.KindOf(err), "content %q", content)
	}
}

func TestIngress_Post_Counts_Runes_Not_Bytes(t *testing.T) {
	req := require.New(t)
	f := newIngressFixture(t, nil)
	id, _ := connect(f.registry, 1)

	f.membership.EXPECT().IsMember(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)
	f.messages.EXPECT().Append(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, draft domain.Draft) (domain.Message, error) {
			return persisted(draft, 1), nil
		})

	// Ten runes, thirty bytes
	_, err := f.ingress.Post(context.Background(), domain.PostMessageCommand{Conn: id, Room: 1, Content: "éééééééééé"})
	req.NoError(err)
}

func TestIngress_Post_Non_Member_Never_Appends(t *testing.T) {
	req := require.New(t)
	f := newIngressFixture(t, nil)

	// Given a live subscription but no durable membership
	id, sink := connect(f.registry, 1)
	req.NoError(f.registry.Subscribe(id, 1))
	f.membership.EXPECT().IsMember(gomock.Any(), domain.RoomID(1), domain.UserID(1)).Return(false, nil)

	// When
	_, err := f.ingress.Post(context.Background(), domain.PostMessageCommand{Conn: id, Room: 1, Content: "hi"})

	// Then nothing was persisted nor broadcast
	req.Equal(errors.KindNotAuthorized, errors.KindOf(err))
	req.Empty(sink.Events())
}

func TestIngress_Post_Room_Not_Found(t *testing.T) {
	req := require.New(t)
	f := newIngressFixture(t, nil)
	id, _ := connect(f.registry, 1)
	f.membership.EXPECT().IsMember(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errors.ErrRoomNotFound)

	_, err := f.ingress.Post(context.Background(), domain.PostMessageCommand{Conn: id, Room: 9, Content: "hi"})

	req.Equal(errors.KindRoomNotFound, errors.KindOf(err))
}

func TestIngress_Post_Retries_Sequence_Conflict_Only(t *testing.T) {
	req := require.New(t)
	f := newIngressFixture(t, nil)
	id, _ := connect(f.registry, 1)
	f.membership.EXPECT().IsMember(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)

	// Given two conflicts before a successful append
	gomock.InOrder(
		f.messages.EXPECT().Append(gomock.Any(), gomock.Any()).Return(domain.Message{}, errors.ErrSequenceConflict),
		f.messages.EXPECT().Append(gomock.Any(), gomock.Any()).Return(domain.Message{}, errors.ErrSequenceConflict),
		f.messages.EXPECT().Append(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, draft domain.Draft) (domain.Message, error) {
				return persisted(draft, 3), nil
			}),
	)

	message, err := f.ingress.Post(context.Background(), domain.PostMessageCommand{Conn: id, Room: 1, Content: "hi"})

	req.NoError(err)
	req.Equal(uint64(3), message.Sequence)
}

func TestIngress_Post_Does_Not_Retry_Other_Failures(t *testing.T) {
	req := require.New(t)
	f := newIngressFixture(t, nil)
	id, sink := connect(f.registry, 1)
	req.NoError(f.registry.Subscribe(id, 1))
	f.membership.EXPECT().IsMember(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)
	f.messages.EXPECT().Append(gomock.Any(), gomock.Any()).Return(domain.Message{}, stderrors.New("disk full")).Times(1)

	_, err := f.ingress.Post(context.Background(), domain.PostMessageCommand{Conn: id, Room: 1, Content: "hi"})

	req.Equal(errors.KindPersistenceFailed, errors.KindOf(err))
	req.Empty(sink.Events())
}

func TestIngress_Post_Stuck_Store_Times_Out(t *testing.T) {
	req := require.New(t)
	f := newIngressFixture(t, nil)
	id, _ := connect(f.registry, 1)
	f.membership.EXPECT().IsMember(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil).Times(2)

	// Given an append honouring its context
	f.messages.EXPECT().Append(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ domain.Draft) (domain.Message, error) {
			<-ctx.Done()
			return domain.Message{}, ctx.Err()
		})

	// When
	start := time.Now()
	_, err := f.ingress.Post(context.Background(), domain.PostMessageCommand{Conn: id, Room: 1, Content: "hi"})

	// Then the sender is released by the timeout
	req.Equal(errors.KindPersistenceFailed, errors.KindOf(err))
	req.Less(time.Since(start), time.Second)

	// And the room is usable again
	f.messages.EXPECT().Append(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, draft domain.Draft) (domain.Message, error) {
			return persisted(draft, 1), nil
		})
	req.Eventually(func() bool {
		return f.ingress.sequencer.Len() == 0
	}, time.Second, 5*time.Millisecond)
	_, err = f.ingress.Post(context.Background(), domain.PostMessageCommand{Conn: id, Room: 1, Content: "again"})
	req.NoError(err)
}

func TestIngress_Post_Late_Commit_Is_Still_Broadcast(t *testing.T) {
	req := require.New(t)
	f := newIngressFixture(t, nil)
	id, sink := connect(f.registry, 1)
	req.NoError(f.registry.Subscribe(id, 1))
	f.membership.EXPECT().IsMember(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)

	// Given an append that ignores its deadline and commits late
	f.messages.EXPECT().Append(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, draft domain.Draft) (domain.Message, error) {
			time.Sleep(80 * time.Millisecond)
			return persisted(draft, 1), nil
		})

	_, err := f.ingress.Post(context.Background(), domain.PostMessageCommand{Conn: id, Room: 1, Content: "hi"})
	req.Equal(errors.KindPersistenceFailed, errors.KindOf(err))

	// Then subscribers still see the persisted message
	req.Eventually(func() bool { return len(sink.Events()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestIngress_Post_Hung_Append_Releases_Room_After_Grace(t *testing.T) {
	req := require.New(t)
	f := newIngressFixture(t, nil)
	id, sink := connect(f.registry, 1)
	req.NoError(f.registry.Subscribe(id, 1))
	f.membership.EXPECT().IsMember(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil).Times(2)

	// Given an append that ignores its context and hangs well past the grace
	unblock := make(chan struct{})
	t.Cleanup(func() { close(unblock) })
	f.messages.EXPECT().Append(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, draft domain.Draft) (domain.Message, error) {
			<-unblock
			return persisted(draft, 1), nil
		})

	// When
	_, err := f.ingress.Post(context.Background(), domain.PostMessageCommand{Conn: id, Room: 1, Content: "hi"})
	req.Equal(errors.KindPersistenceFailed, errors.KindOf(err))

	// Then the room is released while the append is still pending
	req.Eventually(func() bool {
		return f.ingress.sequencer.Len() == 0
	}, time.Second, 5*time.Millisecond)

	// And the next message of the room goes through
	f.messages.EXPECT().Append(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, draft domain.Draft) (domain.Message, error) {
			return persisted(draft, 1), nil
		})
	message, err := f.ingress.Post(context.Background(), domain.PostMessageCommand{Conn: id, Room: 1, Content: "again"})
	req.NoError(err)
	req.Equal("again", message.Content)
	req.Len(sink.Events(), 1)
}

func TestIngress_Post_Censors_Content(t *testing.T) {
	req := require.New(t)
	moderator, err := moderation.NewModerator([]string{"darn"}, '*', logs.GetLoggerFromLevel(slog.LevelDebug))
	req.NoError(err)
	f := newIngressFixture(t, moderator)
	id, _ := connect(f.registry, 1)
	f.membership.EXPECT().IsMember(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)
	f.messages.EXPECT().Append(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, draft domain.Draft) (domain.Message, error) {
			return persisted(draft, 1), nil
		})

	message, err := f.ingress.Post(context.Background(), domain.PostMessageCommand{Conn: id, Room: 1, Content: "oh darn"})

	req.NoError(err)
	req.Equal("oh ****", message.Content)
}
