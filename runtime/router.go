package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"you-chat/contract"
	"you-chat/domain"
	"you-chat/domain/event"
	"you-chat/errors"
	"you-chat/moderation"
	"you-chat/repositories"
)

// NewConversation is the sentinel conversation id a client sends with the
// first message to a peer. The router resolves it to a real conversation
// before persisting.
const NewConversation = "new"

// SendCommand is a routing request for one chat message.
type SendCommand struct {
	SenderID       string
	ReceiverID     string
	ConversationID string
	Body           string
}

// SendResult reports where the message ended up. ConversationID is always
// the resolved id, never the "new" sentinel. Delivered lists the user ids
// that received a live getMessage push.
type SendResult struct {
	Message   domain.Message
	Delivered []string
}

// Router validates, persists and fans out chat messages. Live delivery
// targets come from the presence registry; permanent sinks (the search
// indexer) receive every routed message regardless of who is online.
type Router struct {
	registry         contract.IRegistry
	users            repositories.IUserRepository
	resolver         *Resolver
	messages         repositories.IMessageRepository
	moderator        *moderation.Moderator
	permanent        []contract.EventSink
	broadcastUpdates bool
	log              *slog.Logger
}

func NewRouter(
	registry contract.IRegistry,
	users repositories.IUserRepository,
	resolver *Resolver,
	messages repositories.IMessageRepository,
	moderator *moderation.Moderator,
	broadcastUpdates bool,
	log *slog.Logger,
) *Router {
	return &Router{
		registry:         registry,
		users:            users,
		resolver:         resolver,
		messages:         messages,
		moderator:        moderator,
		broadcastUpdates: broadcastUpdates,
		log:              log,
	}
}

// AddPermanentSink registers a sink that receives every routed message.
// Not safe to call once Send is in use.
func (r *Router) AddPermanentSink(sink contract.EventSink) {
	r.permanent = append(r.permanent, sink)
}

// Send routes one message end to end. Persistence happens before any
// delivery: a storage failure aborts the send and no sink sees the
// message. Delivery failures do not fail the send.
func (r *Router) Send(ctx context.Context, cmd SendCommand) (SendResult, error) {
	if err := cmd.validate(); err != nil {
		return SendResult{}, err
	}

	conversationID := cmd.ConversationID
	if conversationID == NewConversation {
		resolved, err := r.resolver.Resolve(cmd.SenderID, cmd.ReceiverID)
		if err != nil {
			return SendResult{}, err
		}
		conversationID = resolved
	}

	body, censored := r.moderator.Censor(cmd.Body)
	if len(censored) > 0 {
		r.log.Info("Censored message body",
			"sender_id", cmd.SenderID,
			"words", len(censored))
	}

	msg := domain.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       cmd.SenderID,
		Body:           body,
		CreatedAt:      time.Now().UTC(),
	}
	if err := r.messages.StoreMessage(msg); err != nil {
		return SendResult{}, fmt.Errorf("storing message: %w", err)
	}

	delivered := event.MessageDelivered{
		MessageID:      msg.ID,
		ConversationID: conversationID,
		SenderID:       cmd.SenderID,
		ReceiverID:     cmd.ReceiverID,
		Body:           msg.Body,
		Lang:           moderation.DetectLanguage(msg.Body),
		At:             msg.CreatedAt,
	}
	result := SendResult{Message: msg}

	// The message is durable at this point. A sender without a user record
	// cannot be announced, so live delivery is skipped, but the permanent
	// sinks still see the message.
	sender, err := r.users.GetUserByID(cmd.SenderID)
	if err != nil {
		r.log.Warn("Sender profile unavailable, skipping live delivery",
			"sender_id", cmd.SenderID,
			"error", err)
		for _, sink := range r.permanent {
			r.deliver(ctx, sink, delivered)
		}
		return result, nil
	}
	delivered.Sender = sender.Profile()
	if sink, online := r.registry.Lookup(cmd.ReceiverID); online {
		if r.deliver(ctx, sink, delivered) {
			result.Delivered = append(result.Delivered, cmd.ReceiverID)
		}
	}
	if sink, online := r.registry.Lookup(cmd.SenderID); online {
		if r.deliver(ctx, sink, delivered) {
			result.Delivered = append(result.Delivered, cmd.SenderID)
		}
	}

	if r.broadcastUpdates {
		update := event.ConversationListUpdated{
			ConversationID: conversationID,
			SenderID:       cmd.SenderID,
			ReceiverID:     cmd.ReceiverID,
			Body:           msg.Body,
			Sender:         sender.Profile(),
		}
		for _, sink := range r.registry.Sinks() {
			r.deliver(ctx, sink, update)
		}
	}

	for _, sink := range r.permanent {
		r.deliver(ctx, sink, delivered)
	}

	return result, nil
}

func (r *Router) deliver(ctx context.Context, sink contract.EventSink, evt event.DomainEvent) bool {
	if err := sink.Consume(ctx, evt); err != nil {
		r.log.Warn("Dropping event for unreachable sink",
			"event", evt.Name(),
			"error", err)
		return false
	}
	return true
}

func (c SendCommand) validate() error {
	if c.SenderID == "" || c.Body == "" {
		return errors.ErrMissingFields
	}
	if c.ConversationID == "" {
		return errors.ErrMissingFields
	}
	if c.ConversationID == NewConversation && c.ReceiverID == "" {
		return errors.ErrMissingFields
	}
	return nil
}
