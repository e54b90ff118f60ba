// Package ws is the realtime transport: one websocket per client, JSON
// frames wrapping domain events. The envelope is deliberately dumb so the
// event vocabulary lives in domain/event, not here.
package ws

import (
	"encoding/json"
	"fmt"
	"time"

	"you-chat/domain"
	"you-chat/domain/event"
)

// Inbound event names (client to server).
const (
	EventAddUser     = "addUser"
	EventSendMessage = "sendMessage"
)

// Outbound event names (server to client).
const (
	EventGetUsers            = "getUsers"
	EventGetMessage          = "getMessage"
	EventUpdateConversations = "updateConversations"
	EventError               = "error"
)

// Frame is the wire envelope for every message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// SendMessagePayload is the data of an inbound sendMessage frame. The
// conversationId may be the "new" sentinel on a first message.
type SendMessagePayload struct {
	SenderID       string `json:"senderId"`
	ReceiverID     string `json:"receiverId"`
	ConversationID string `json:"conversationId"`
	Body           string `json:"message"`
}

// MessagePayload is the data of an outbound getMessage frame, and of
// updateConversations frames which reuse the same shape.
type MessagePayload struct {
	MessageID      string         `json:"messageId,omitempty"`
	SenderID       string         `json:"senderId"`
	ReceiverID     string         `json:"receiverId"`
	ConversationID string         `json:"conversationId"`
	Body           string         `json:"message"`
	Sender         domain.Profile `json:"user"`
	Lang           string         `json:"lang,omitempty"`
	At             time.Time      `json:"at,omitempty"`
}

// ErrorPayload is the data of an outbound error frame.
type ErrorPayload struct {
	Message string `json:"message"`
}

// NewFrame wraps a payload into an envelope.
func NewFrame(eventName string, payload any) (Frame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, fmt.Errorf("encoding %s payload: %w", eventName, err)
	}
	return Frame{Event: eventName, Data: data}, nil
}

// FrameFromEvent maps a domain event onto its wire frame.
func FrameFromEvent(e event.DomainEvent) (Frame, error) {
	switch evt := e.(type) {
	case event.MessageDelivered:
		return NewFrame(EventGetMessage, MessagePayload{
			MessageID:      evt.MessageID.String(),
			SenderID:       evt.SenderID,
			ReceiverID:     evt.ReceiverID,
			ConversationID: evt.ConversationID,
			Body:           evt.Body,
			Sender:         evt.Sender,
			Lang:           evt.Lang,
			At:             evt.At,
		})
	case event.ConversationListUpdated:
		return NewFrame(EventUpdateConversations, MessagePayload{
			SenderID:       evt.SenderID,
			ReceiverID:     evt.ReceiverID,
			ConversationID: evt.ConversationID,
			Body:           evt.Body,
			Sender:         evt.Sender,
		})
	case event.PresenceChanged:
		entries := evt.Entries
		if entries == nil {
			entries = []domain.PresenceEntry{}
		}
		return NewFrame(EventGetUsers, entries)
	default:
		return Frame{}, fmt.Errorf("no wire mapping for event %q", e.Name())
	}
}
