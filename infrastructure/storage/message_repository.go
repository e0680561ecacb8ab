//go:generate go run go.uber.org/mock/mockgen -source=message_repository.go -destination=../../mocks/mock_message_repository.go -package=mocks
package storage

import (
	"chat-rooms/contract"
	"chat-rooms/domain"
	"chat-rooms/errors"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dgraph-io/badger/v4"
)

type IMessageRepository interface {
	contract.IMessageLog
	LastSequence(ctx context.Context, roomID domain.RoomID) (uint64, error)
}

// MessageRepository is the append-only message log. For a fixed room the
// stored sequences are exactly 1..N.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) *MessageRepository {
	return &MessageRepository{db: db, log: log}
}

var _ IMessageRepository = (*MessageRepository)(nil)

// Append reads the room counter, writes the message under counter+1 and
// bumps the counter in a single transaction. A concurrent append on the
// same room makes the commit fail with ErrSequenceConflict and nothing is
// written, so no sequence number is ever consumed by a failed call.
func (m *MessageRepository) Append(ctx context.Context, draft domain.Draft) (domain.Message, error) {
	var message domain.Message
	err := commit(ctx, m.db, func(txn *badger.Txn) error {
		if _, err := getRoom(txn, draft.RoomID); err != nil {
			return err
		}
		seq, err := nextCounter(txn, messageSeqKey(draft.RoomID))
		if err != nil {
			return err
		}
		message = domain.Message{
			ID:         draft.ID,
			RoomID:     draft.RoomID,
			SenderID:   draft.SenderID,
			SenderName: draft.SenderName,
			Content:    draft.Content,
			Sequence:   seq,
			CreatedAt:  draft.CreatedAt,
		}
		return txn.Set(messageKey(draft.RoomID, seq), encodeMessage(message))
	})
	switch {
	case err == nil:
		return message, nil
	case stderrors.Is(err, errors.ErrRoomNotFound):
		return domain.Message{}, err
	case stderrors.Is(err, badger.ErrConflict):
		return domain.Message{}, fmt.Errorf("%w: room %d", errors.ErrSequenceConflict, draft.RoomID)
	default:
		return domain.Message{}, fmt.Errorf("%w: room %d: %v", errors.ErrPersistenceFailed, draft.RoomID, err)
	}
}

// Recent returns at most limit messages, the newest ones, in ascending
// sequence order.
func (m *MessageRepository) Recent(ctx context.Context, roomID domain.RoomID, limit int) ([]domain.Message, error) {
	return m.Before(ctx, roomID, 0, limit)
}

// Before returns at most limit messages with a sequence strictly lower than
// before, in ascending order. A zero before means no upper bound.
func (m *MessageRepository) Before(ctx context.Context, roomID domain.RoomID, before uint64, limit int) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 || before == 1 {
		return []domain.Message{}, nil
	}

	messages := make([]domain.Message, 0, limit)
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(roomID)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		var seek []byte
		if before == 0 {
			seek = append(slices.Clone(prefix), maxSequenceText...)
		} else {
			seek = messageKey(roomID, before-1)
		}

		for it.Seek(seek); it.ValidForPrefix(prefix) && len(messages) < limit; it.Next() {
			err := it.Item().Value(func(val []byte) error {
				message, err := decodeMessage(val)
				if err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: history of room %d: %v", errors.ErrPersistenceFailed, roomID, err)
	}
	slices.Reverse(messages)
	return messages, nil
}

func (m *MessageRepository) LastSequence(ctx context.Context, roomID domain.RoomID) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var seq uint64
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		seq, err = readCounter(txn, messageSeqKey(roomID))
		return err
	})
	return seq, err
}
