//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"directory-chat/domain"
	"directory-chat/errors"
)

type IMessageRepository interface {
	StoreMessage(message domain.Message) (domain.Message, error)
	GetMessage(messageID int64) (domain.Message, error)
	ListMessages(groupID int64, limit, offset int) ([]domain.Message, error)
	CountMessages(groupID int64) (int, error)
	MarkRead(messageID int64, userID string) error
	MarkGroupRead(groupID int64, userID string) error
	CountUnread(groupID int64, userID string) (int, error)
}

// MessageRepository persists the append-only per-group message log in
// BadgerDB. IDs are drawn from a badger sequence so they are monotonic
// across restarts.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
	seq *badger.Sequence
}

const messageSeqKey = "seq:message"

func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte(messageSeqKey), 64)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &MessageRepository{db: db, log: log, seq: seq}, nil
}

// Close releases unclaimed sequence numbers back to the store.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

// messageKey is formatted as "msg:{group_id}:{timestamp_padded}:{id_padded}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order equals (CreatedAt, ID) order).
//  2. Disambiguate two messages created in the same nanosecond by the
//     monotonic ID.
func messageKey(groupID int64, at time.Time, id int64) []byte {
	return []byte(fmt.Sprintf("msg:%d:%019d:%019d", groupID, at.UnixNano(), id))
}

func messagePrefix(groupID int64) []byte {
	return []byte(fmt.Sprintf("msg:%d:", groupID))
}

// indexKey maps a message ID to its log key, so mark-read can find a
// message without knowing its group or timestamp.
func indexKey(id int64) []byte {
	return []byte(fmt.Sprintf("msgidx:%019d", id))
}

// StoreMessage assigns the next monotonic ID and persists the message
// row plus its ID index entry in one transaction.
func (m *MessageRepository) StoreMessage(message domain.Message) (domain.Message, error) {
	next, err := m.seq.Next()
	if err != nil {
		return domain.Message{}, fmt.Errorf("next message id: %w", err)
	}
	message.ID = int64(next) + 1
	if message.ReadBy == nil {
		message.ReadBy = []string{}
	}

	value, err := json.Marshal(message)
	if err != nil {
		return domain.Message{}, err
	}
	key := messageKey(message.GroupID, message.CreatedAt, message.ID)

	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, value); err != nil {
			return err
		}
		return txn.Set(indexKey(message.ID), key)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

// GetMessage resolves a message by ID through the index row.
func (m *MessageRepository) GetMessage(messageID int64) (domain.Message, error) {
	var message domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		value, err := m.readByID(txn, messageID)
		if err != nil {
			return err
		}
		return json.Unmarshal(value, &message)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

// ListMessages returns the group's messages ordered by (CreatedAt, ID)
// ascending. Pagination is the caller's concern; limit <= 0 means no
// limit. Presentation direction is layered on top by callers.
func (m *MessageRepository) ListMessages(groupID int64, limit, offset int) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(groupID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		skipped := 0
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			if limit > 0 && len(messages) == limit {
				break
			}
			var message domain.Message
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &message)
			})
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	return messages, err
}

// CountMessages counts the group's log entries. Keys only, no value reads.
func (m *MessageRepository) CountMessages(groupID int64) (int, error) {
	count := 0
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(groupID)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// MarkRead adds userID to the message's ReadBy set. Idempotent: a user
// already present leaves the row untouched and the call succeeds.
func (m *MessageRepository) MarkRead(messageID int64, userID string) error {
	return m.db.Update(func(txn *badger.Txn) error {
		value, err := m.readByID(txn, messageID)
		if err != nil {
			return err
		}
		var message domain.Message
		if err := json.Unmarshal(value, &message); err != nil {
			return err
		}
		if message.IsReadBy(userID) {
			return nil
		}
		message.ReadBy = append(message.ReadBy, userID)
		updated, err := json.Marshal(message)
		if err != nil {
			return err
		}
		return txn.Set(messageKey(message.GroupID, message.CreatedAt, message.ID), updated)
	})
}

// MarkGroupRead acknowledges every message of the group for userID,
// skipping self-sent messages and messages already acknowledged.
func (m *MessageRepository) MarkGroupRead(groupID int64, userID string) error {
	return m.db.Update(func(txn *badger.Txn) error {
		prefix := messagePrefix(groupID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var message domain.Message
			err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, &message)
			})
			if err != nil {
				return err
			}
			if !message.UnreadFor(userID) {
				continue
			}
			message.ReadBy = append(message.ReadBy, userID)
			updated, err := json.Marshal(message)
			if err != nil {
				return err
			}
			if err := txn.Set(item.KeyCopy(nil), updated); err != nil {
				return err
			}
		}
		return nil
	})
}

// CountUnread derives the per-group unread count for userID by scanning
// the group's log: unread iff sender differs and userID is absent from
// ReadBy. Nothing is stored; the count always reflects current state.
func (m *MessageRepository) CountUnread(groupID int64, userID string) (int, error) {
	count := 0
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(groupID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var message domain.Message
			err := it.Item().Value(func(value []byte) error {
				return json.Unmarshal(value, &message)
			})
			if err != nil {
				return err
			}
			if message.UnreadFor(userID) {
				count++
			}
		}
		return nil
	})
	return count, err
}

// readByID resolves the index row then the message row inside txn.
func (m *MessageRepository) readByID(txn *badger.Txn, messageID int64) ([]byte, error) {
	idx, err := txn.Get(indexKey(messageID))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, errors.ErrMessageNotFound
		}
		return nil, err
	}
	key, err := idx.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	item, err := txn.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, errors.ErrMessageNotFound
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}
