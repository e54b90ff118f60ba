package sink

import (
	"context"

	"you-chat/domain"
	"you-chat/domain/event"
)

// Timeline holds a simple local timeline of messages as they arrive.
// The terminal client uses it to redraw its conversation view.
type Timeline struct {
	Owner    string
	Messages []domain.Message
}

func NewTimeline(owner string) *Timeline {
	return &Timeline{Owner: owner}
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageDelivered:
		t.Messages = append(t.Messages, fromEvent(evt))
		return nil
	}
	return nil
}

func fromEvent(evt event.MessageDelivered) domain.Message {
	return domain.Message{
		ID:             evt.MessageID,
		ConversationID: evt.ConversationID,
		SenderID:       evt.SenderID,
		Body:           evt.Body,
		CreatedAt:      evt.At,
	}
}
