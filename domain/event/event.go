package event

import (
	"time"

	"github.com/google/uuid"

	"you-chat/domain"
)

// DomainEvent is anything the runtime can deliver to a connected client
// or to a permanent sink. Name returns the wire event name so transports
// stay a dumb envelope around the payload.
type DomainEvent interface {
	Name() string
}

// MessageDelivered carries a persisted message to the live connections of
// its sender and receiver. Lang is the detected language of the body,
// attached for logging and client-side hints; it never affects routing.
type MessageDelivered struct {
	MessageID      uuid.UUID
	ConversationID string
	SenderID       string
	ReceiverID     string
	Body           string
	Sender         domain.Profile
	Lang           string
	At             time.Time
}

func (MessageDelivered) Name() string { return "getMessage" }

// ConversationListUpdated is broadcast to every connection so clients
// showing a conversation list can refresh without a full reload. Clients
// filter out updates for conversations they are not part of.
type ConversationListUpdated struct {
	ConversationID string
	SenderID       string
	ReceiverID     string
	Body           string
	Sender         domain.Profile
}

func (ConversationListUpdated) Name() string { return "updateConversations" }

// PresenceChanged carries a full snapshot of who is online. It is emitted
// on every successful register and every unregister, and broadcast to all
// connections rather than diffed.
type PresenceChanged struct {
	Entries []domain.PresenceEntry
}

func (PresenceChanged) Name() string { return "getUsers" }
