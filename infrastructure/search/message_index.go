//go:generate go run go.uber.org/mock/mockgen -source=message_index.go -destination=../../mocks/mock_message_index.go -package=mocks
package search

import (
	"chat-rooms/domain"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
)

const (
	fieldRoom       = "room"
	fieldSender     = "sender_id"
	fieldSenderName = "sender_name"
	fieldContent    = "content"
	fieldSequence   = "sequence"
	fieldCreatedAt  = "created_at"
)

type IMessageIndex interface {
	Index(messages ...domain.Message) error
	Search(ctx context.Context, roomID domain.RoomID, text string, limit int) ([]domain.Message, error)
	DeleteRoom(roomID domain.RoomID) error
}

// MessageIndex is the full text index of persisted messages. Badger stays
// the source of truth: the index may lag behind it and is rebuilt by
// replaying the log.
type MessageIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewMessageIndex(writer *bluge.Writer, log *slog.Logger) *MessageIndex {
	return &MessageIndex{writer: writer, log: log}
}

var _ IMessageIndex = (*MessageIndex)(nil)

// Index writes messages in one batch. Re-indexing the same message id
// replaces the previous document.
func (i *MessageIndex) Index(messages ...domain.Message) error {
	if len(messages) == 0 {
		return nil
	}
	batch := bluge.NewBatch()
	for _, m := range messages {
		doc := bluge.NewDocument(m.ID.String()).
			AddField(bluge.NewKeywordField(fieldRoom, m.RoomID.String()).StoreValue()).
			AddField(bluge.NewKeywordField(fieldSender, strconv.FormatInt(int64(m.SenderID), 10)).StoreValue()).
			AddField(bluge.NewStoredOnlyField(fieldSenderName, []byte(m.SenderName))).
			AddField(bluge.NewTextField(fieldContent, m.Content).StoreValue()).
			AddField(bluge.NewNumericField(fieldSequence, float64(m.Sequence)).StoreValue().Sortable()).
			AddField(bluge.NewDateTimeField(fieldCreatedAt, m.CreatedAt).StoreValue())
		batch.Update(doc.ID(), doc)
	}
	if err := i.writer.Batch(batch); err != nil {
		return fmt.Errorf("index %d messages: %w", len(messages), err)
	}
	return nil
}

// Search runs a match query on content, scoped to one room, newest first.
func (i *MessageIndex) Search(ctx context.Context, roomID domain.RoomID, text string, limit int) ([]domain.Message, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("open index reader: %w", err)
	}
	defer func() { _ = reader.Close() }()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(roomID.String()).SetField(fieldRoom)).
		AddMust(bluge.NewMatchQuery(text).SetField(fieldContent))
	request := bluge.NewTopNSearch(limit, query).SortBy([]string{"-" + fieldSequence})

	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("search room %d: %w", roomID, err)
	}

	var messages []domain.Message
	match, err := iterator.Next()
	for err == nil && match != nil {
		var m domain.Message
		m.RoomID = roomID
		var visitErr error
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				m.ID, visitErr = uuid.Parse(string(value))
			case fieldSender:
				var id int64
				id, visitErr = strconv.ParseInt(string(value), 10, 64)
				m.SenderID = domain.UserID(id)
			case fieldSenderName:
				m.SenderName = string(value)
			case fieldContent:
				m.Content = string(value)
			case fieldSequence:
				var seq float64
				seq, visitErr = bluge.DecodeNumericFloat64(value)
				m.Sequence = uint64(seq)
			case fieldCreatedAt:
				var at time.Time
				at, visitErr = bluge.DecodeDateTime(value)
				m.CreatedAt = at.UTC()
			}
			return visitErr == nil
		})
		if err == nil {
			err = visitErr
		}
		if err != nil {
			break
		}
		messages = append(messages, m)
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, fmt.Errorf("read search results: %w", err)
	}
	return messages, nil
}

// DeleteRoom removes every indexed message of a deleted room.
func (i *MessageIndex) DeleteRoom(roomID domain.RoomID) error {
	reader, err := i.writer.Reader()
	if err != nil {
		return fmt.Errorf("open index reader: %w", err)
	}
	defer func() { _ = reader.Close() }()

	request := bluge.NewAllMatches(bluge.NewTermQuery(roomID.String()).SetField(fieldRoom))
	iterator, err := reader.Search(context.Background(), request)
	if err != nil {
		return err
	}

	batch := bluge.NewBatch()
	n := 0
	match, err := iterator.Next()
	for err == nil && match != nil {
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				batch.Delete(bluge.Identifier(value))
				n++
				return false
			}
			return true
		})
		if err != nil {
			break
		}
		match, err = iterator.Next()
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	i.log.Debug("Removing room from index", "room_id", roomID, "documents", n)
	return i.writer.Batch(batch)
}
