package runtime

import (
	"fmt"
	"log/slog"

	"you-chat/repositories"
)

// Resolver owns the find-or-create invariant on conversations: at most
// one conversation per unordered user pair. The repository enforces it
// transactionally, so concurrent first messages between the same pair
// converge on a single conversation id.
type Resolver struct {
	conversations repositories.IConversationRepository
	log           *slog.Logger
}

func NewResolver(conversations repositories.IConversationRepository, log *slog.Logger) *Resolver {
	return &Resolver{conversations: conversations, log: log}
}

func (r *Resolver) Resolve(userA, userB string) (string, error) {
	conv, created, err := r.conversations.FindOrCreate(userA, userB)
	if err != nil {
		return "", fmt.Errorf("resolving conversation: %w", err)
	}
	if created {
		r.log.Info("Created conversation",
			"conversation_id", conv.ID,
			"members", conv.Members)
	}
	return conv.ID, nil
}
