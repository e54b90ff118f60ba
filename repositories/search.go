//go:generate go run go.uber.org/mock/mockgen -source=search.go -destination=../mocks/mock_search_repository.go -package=mocks
package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"

	"you-chat/domain"
)

const defaultSearchPageSize = 50

// SearchHit is one full-text match, rebuilt from the stored index fields.
type SearchHit struct {
	MessageID      uuid.UUID `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Body           string    `json:"body"`
	At             time.Time `json:"at"`
}

type ISearchRepository interface {
	IndexBatch(messages []domain.Message) error
	Search(ctx context.Context, query, conversationID string, page int) ([]SearchHit, uint64, error)
}

// SearchRepository maintains a Bluge full-text index over message bodies.
// Indexing is write-behind relative to Badger: the index can lag a flush
// interval behind persisted messages and is rebuilt from scratch on data
// loss, so it never participates in durability.
type SearchRepository struct {
	writer   *bluge.Writer
	log      *slog.Logger
	pageSize *int
}

func NewSearchRepository(writer *bluge.Writer, log *slog.Logger, pageSize *int) *SearchRepository {
	return &SearchRepository{writer: writer, log: log, pageSize: pageSize}
}

// IndexBatch applies one atomic index batch. Re-indexing the same message
// id replaces the previous document.
func (s *SearchRepository) IndexBatch(messages []domain.Message) error {
	batch := bluge.NewBatch()
	for _, m := range messages {
		doc := bluge.NewDocument(m.ID.String()).
			AddField(bluge.NewKeywordField("conversation_id", m.ConversationID).StoreValue()).
			AddField(bluge.NewKeywordField("sender_id", m.SenderID).StoreValue()).
			AddField(bluge.NewTextField("body", m.Body).StoreValue()).
			AddField(bluge.NewDateTimeField("at", m.CreatedAt).StoreValue())
		batch.Update(doc.ID(), doc)
	}
	if err := s.writer.Batch(batch); err != nil {
		return fmt.Errorf("indexing %d messages: %w", len(messages), err)
	}
	s.log.Debug("Indexed messages", "count", len(messages))
	return nil
}

// Search runs a match query over message bodies, optionally scoped to a
// single conversation. Page is zero-based. The second return value is the
// total hit count across all pages.
func (s *SearchRepository) Search(ctx context.Context, query, conversationID string, page int) ([]SearchHit, uint64, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, 0, fmt.Errorf("opening index reader: %w", err)
	}
	defer reader.Close()

	size := defaultSearchPageSize
	if s.pageSize != nil {
		size = *s.pageSize
	}

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(query).SetField("body"))
	if conversationID != "" {
		q.AddMust(bluge.NewTermQuery(conversationID).SetField("conversation_id"))
	}

	request := bluge.NewTopNSearch(size, q).
		SetFrom(page * size).
		WithStandardAggregations()

	it, err := reader.Search(ctx, request)
	if err != nil {
		return nil, 0, fmt.Errorf("searching index: %w", err)
	}

	var hits []SearchHit
	next, err := it.Next()
	for err == nil && next != nil {
		var hit SearchHit
		visitErr := next.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID, _ = uuid.Parse(string(value))
			case "conversation_id":
				hit.ConversationID = string(value)
			case "sender_id":
				hit.SenderID = string(value)
			case "body":
				hit.Body = string(value)
			case "at":
				if at, dateErr := bluge.DecodeDateTime(value); dateErr == nil {
					hit.At = at
				}
			}
			return true
		})
		if visitErr != nil {
			return nil, 0, fmt.Errorf("loading stored fields: %w", visitErr)
		}
		hits = append(hits, hit)
		next, err = it.Next()
	}
	if err != nil {
		return nil, 0, fmt.Errorf("iterating matches: %w", err)
	}

	return hits, it.Aggregations().Count(), nil
}
