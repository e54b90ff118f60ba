//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_conversation_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"you-chat/domain"
	"you-chat/errors"
)

type IConversationRepository interface {
	FindOrCreate(a, b string) (domain.Conversation, bool, error)
	GetByID(id string) (domain.Conversation, error)
	ListByMember(userID string) ([]domain.Conversation, error)
	FindByMembers(a, b string) (domain.Conversation, error)
}

// ConversationRepository keys conversations two ways: "conv:{id}" holds
// the record, "convpair:{p1}:{p2}" (members in canonical order) holds the
// id. Because the pair key is checked and written inside one badger
// transaction, two concurrent first messages between the same pair cannot
// create two conversations: the second transaction conflicts and retries
// into the find path.
type ConversationRepository struct {
	db *badger.DB
}

func NewConversationRepository(db *badger.DB) IConversationRepository {
	return &ConversationRepository{db: db}
}

// FindOrCreate returns the conversation for the unordered pair {a, b},
// creating it when absent. The second return reports whether a new record
// was created.
func (c *ConversationRepository) FindOrCreate(a, b string) (domain.Conversation, bool, error) {
	p1, p2 := domain.CanonicalPair(a, b)

	// Keep retrying on transaction conflicts: the loser of a race re-reads
	// the pair key and lands on the find path.
	for {
		conv, created, err := c.findOrCreateOnce(p1, p2)
		if err == badger.ErrConflict {
			continue
		}
		if err != nil {
			return domain.Conversation{}, false, err
		}
		return conv, created, nil
	}
}

func (c *ConversationRepository) findOrCreateOnce(p1, p2 string) (domain.Conversation, bool, error) {
	var conv domain.Conversation
	created := false

	err := c.db.Update(func(txn *badger.Txn) error {
		created = false
		item, err := txn.Get([]byte(pairKey(p1, p2)))
		if err == nil {
			var id string
			if err := item.Value(func(val []byte) error {
				id = string(val)
				return nil
			}); err != nil {
				return err
			}
			conv, err = getConversation(txn, id)
			return err
		}
		if err != badger.ErrKeyNotFound {
			return err
		}

		conv = domain.Conversation{
			ID:        uuid.NewString(),
			Members:   [2]string{p1, p2},
			CreatedAt: time.Now().UTC(),
		}
		data, err := json.Marshal(conv)
		if err != nil {
			return err
		}
		if err := txn.Set([]byte(pairKey(p1, p2)), []byte(conv.ID)); err != nil {
			return err
		}
		if err := txn.Set([]byte(convKey(conv.ID)), data); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return domain.Conversation{}, false, err
	}
	return conv, created, nil
}

// FindByMembers is the read-only half of FindOrCreate.
func (c *ConversationRepository) FindByMembers(a, b string) (domain.Conversation, error) {
	p1, p2 := domain.CanonicalPair(a, b)

	var conv domain.Conversation
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(pairKey(p1, p2)))
		if err != nil {
			return errors.ErrConversationNotFound
		}
		var id string
		if err := item.Value(func(val []byte) error {
			id = string(val)
			return nil
		}); err != nil {
			return err
		}
		conv, err = getConversation(txn, id)
		return err
	})
	return conv, err
}

func (c *ConversationRepository) GetByID(id string) (domain.Conversation, error) {
	var conv domain.Conversation
	err := c.db.View(func(txn *badger.Txn) error {
		var err error
		conv, err = getConversation(txn, id)
		return err
	})
	return conv, err
}

// ListByMember scans all conversations. A per-user index key would avoid
// the scan but is not worth it at two members per conversation.
func (c *ConversationRepository) ListByMember(userID string) ([]domain.Conversation, error) {
	var convs []domain.Conversation
	err := c.db.View(func(txn *badger.Txn) error {
		prefix := []byte("conv:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var conv domain.Conversation
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &conv)
			})
			if err != nil {
				return err
			}
			if conv.HasMember(userID) {
				convs = append(convs, conv)
			}
		}
		return nil
	})
	return convs, err
}

func getConversation(txn *badger.Txn, id string) (domain.Conversation, error) {
	item, err := txn.Get([]byte(convKey(id)))
	if err != nil {
		return domain.Conversation{}, errors.ErrConversationNotFound
	}
	var conv domain.Conversation
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &conv)
	})
	return conv, err
}

func convKey(id string) string {
	return "conv:" + id
}

func pairKey(p1, p2 string) string {
	return "convpair:" + p1 + ":" + p2
}
