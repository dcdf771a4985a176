//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"kutter/domain"
	"kutter/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-playground/validator/v10"
)

const (
	messagePrefix     = "msg:"
	sequenceKey       = "seq:messages"
	sequenceBandwidth = 100
)

type IMessageRepository interface {
	Create(author domain.Identity, body string) (domain.Message, error)
	Delete(requester domain.Identity, id domain.MessageID) error
	List() ([]domain.Message, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	seq           *badger.Sequence
	validate      *validator.Validate
	maxLength     int
	limitMessages *int
}

// NewMessageRepository leases message ids from a badger sequence.
// maxLength bounds a body in runes, zero disables the bound.
// limitMessages caps List to the latest messages when set and positive.
func NewMessageRepository(db *badger.DB, log *slog.Logger, maxLength int, limitMessages *int) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte(sequenceKey), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &MessageRepository{
		db:            db,
		log:           log,
		seq:           seq,
		validate:      validator.New(),
		maxLength:     maxLength,
		limitMessages: limitMessages,
	}, nil
}

// Create validates the body, assigns the next id and a server timestamp,
// then persists the message.
// The key is formatted as "msg:{id_padded}" so that a prefix scan returns
// messages in creation order.
func (m *MessageRepository) Create(author domain.Identity, body string) (domain.Message, error) {
	if err := m.validateBody(body); err != nil {
		return domain.Message{}, err
	}

	next, err := m.seq.Next()
	if err != nil {
		return domain.Message{}, fmt.Errorf("next message id: %w", err)
	}
	// Sequences start at zero, ids start at one
	message := domain.Message{
		ID:        domain.MessageID(next + 1),
		Author:    author,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message.ID), marshalMessage(message))
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("store message %d: %w", message.ID, err)
	}
	return message, nil
}

// Delete removes a message in a single transaction.
// The author check happens before anything is written.
func (m *MessageRepository) Delete(requester domain.Identity, id domain.MessageID) error {
	return m.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(messageKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errors.ErrNotFound
		}
		if err != nil {
			return err
		}

		var message domain.Message
		err = item.Value(func(val []byte) error {
			message, err = unmarshalMessage(val)
			return err
		})
		if err != nil {
			return err
		}

		if !message.AuthoredBy(requester) {
			return errors.ErrForbidden
		}
		return txn.Delete(messageKey(id))
	})
}

// List returns messages oldest first.
func (m *MessageRepository) List() ([]domain.Message, error) {
	return ReadMessages(m.db, m.log, m.limitMessages)
}

// ReadMessages scans the stored messages, oldest first. It only reads,
// so it also works on a database opened read-only.
// With a positive limit, only the latest ones are kept: the scan runs backwards
// from the newest key and the result is reversed.
func ReadMessages(db *badger.DB, log *slog.Logger, limit *int) ([]domain.Message, error) {
	messages := make([]domain.Message, 0)
	err := db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix)
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(append([]byte(messagePrefix), 0xFF)); it.ValidForPrefix(prefix); it.Next() {
			if limit != nil && *limit > 0 && len(messages) == *limit {
				log.Debug(fmt.Sprintf("Maximum of %d message reached", *limit))
				break
			}
			err := it.Item().Value(func(val []byte) error {
				message, err := unmarshalMessage(val)
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
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}

// Close returns the unused part of the leased id range.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

func (m *MessageRepository) validateBody(body string) error {
	if err := m.validate.Var(strings.TrimSpace(body), "required"); err != nil {
		return errors.ErrEmptyMessage
	}
	if m.maxLength <= 0 {
		return nil
	}
	if err := m.validate.Var(body, fmt.Sprintf("max=%d", m.maxLength)); err != nil {
		return fmt.Errorf("%w: at most %d characters", errors.ErrMessageTooLong, m.maxLength)
	}
	return nil
}

func messageKey(id domain.MessageID) []byte {
	return []byte(fmt.Sprintf("%s%019d", messagePrefix, id))
}
