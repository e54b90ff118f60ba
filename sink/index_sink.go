// Package sink holds EventSink implementations that sit at the end of the
// message pipeline: consumers that observe delivered messages without
// taking part in routing decisions.
package sink

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"you-chat/domain"
	"you-chat/domain/event"
	"you-chat/repositories"
)

// IndexSink feeds delivered messages into the full-text search index.
//
// It acts as a buffer between the hot routing path and Bluge: events are
// aggregated and flushed either when the buffer reaches maxEvents or when
// bufferTimeout elapses, whichever comes first. The routing path never
// waits on an index write.
type IndexSink struct {
	mu            sync.Mutex
	timer         *time.Timer
	repository    repositories.ISearchRepository
	log           *slog.Logger
	events        []event.MessageDelivered
	maxEvents     int
	bufferTimeout time.Duration
}

func NewIndexSink(
	repository repositories.ISearchRepository,
	log *slog.Logger,
	maxEvents int,
	bufferTimeout time.Duration,
) *IndexSink {
	return &IndexSink{
		repository:    repository,
		log:           log,
		maxEvents:     maxEvents,
		bufferTimeout: bufferTimeout,
	}
}

// Consume implements the EventSink interface. Non-message events are
// ignored silently.
func (s *IndexSink) Consume(_ context.Context, e event.DomainEvent) error {
	evt, ok := e.(event.MessageDelivered)
	if !ok {
		return nil
	}

	s.mu.Lock()
	s.events = append(s.events, evt)

	// Timer management: if this is the first event of a new batch,
	// start a background timer so data is not stuck under low throughput.
	if len(s.events) == 1 && s.timer == nil {
		s.timer = time.AfterFunc(s.bufferTimeout, func() {
			if err := s.Flush(); err != nil {
				s.log.Error("Batching: Timeout flush failed", "error", err)
			}
		})
	}

	isFull := len(s.events) >= s.maxEvents
	s.mu.Unlock()

	if isFull {
		return s.Flush()
	}
	return nil
}

// Flush drains the buffer into the index. It swaps the buffer out under
// the lock so new events keep accumulating while Bluge writes.
func (s *IndexSink) Flush() error {
	s.mu.Lock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	// Double-check for empty buffer in case of concurrent flush calls.
	if len(s.events) == 0 {
		s.mu.Unlock()
		return nil
	}

	batch := s.events
	s.events = make([]event.MessageDelivered, 0, s.maxEvents)
	s.mu.Unlock()

	messages := make([]domain.Message, 0, len(batch))
	for _, evt := range batch {
		messages = append(messages, domain.Message{
			ID:             evt.MessageID,
			ConversationID: evt.ConversationID,
			SenderID:       evt.SenderID,
			Body:           evt.Body,
			CreatedAt:      evt.At,
		})
	}
	return s.repository.IndexBatch(messages)
}
