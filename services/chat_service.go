//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"you-chat/domain"
	"you-chat/repositories"
	"you-chat/runtime"
)

// ConversationView is a conversation joined with the peer's public profile,
// shaped for a client rendering a conversation list.
type ConversationView struct {
	ID        string         `json:"id"`
	Peer      domain.Profile `json:"peer"`
	CreatedAt time.Time      `json:"createdAt"`
}

// MessageView is a message joined with its sender's public profile, so a
// client rendering history needs no follow-up user fetches.
type MessageView struct {
	ID             uuid.UUID      `json:"id"`
	ConversationID string         `json:"conversationId"`
	SenderID       string         `json:"senderId"`
	Sender         domain.Profile `json:"user"`
	Body           string         `json:"message"`
	CreatedAt      time.Time      `json:"createdAt"`
}

type IChatService interface {
	SendMessage(ctx context.Context, cmd runtime.SendCommand) (runtime.SendResult, error)
	GetMessages(conversationID string, cursor *string) ([]MessageView, *string, error)
	GetConversations(userID string) ([]ConversationView, error)
	CreateConversation(senderID, receiverID string) (domain.Conversation, error)
	FindConversation(senderID, receiverID string) (domain.Conversation, error)
	Search(ctx context.Context, query, conversationID string, page int) ([]repositories.SearchHit, uint64, error)
}

type ChatService struct {
	router        *runtime.Router
	conversations repositories.IConversationRepository
	messages      repositories.IMessageRepository
	users         repositories.IUserRepository
	search        repositories.ISearchRepository
}

func NewChatService(
	router *runtime.Router,
	conversations repositories.IConversationRepository,
	messages repositories.IMessageRepository,
	users repositories.IUserRepository,
	search repositories.ISearchRepository,
) *ChatService {
	return &ChatService{
		router:        router,
		conversations: conversations,
		messages:      messages,
		users:         users,
		search:        search,
	}
}

func (s *ChatService) SendMessage(ctx context.Context, cmd runtime.SendCommand) (runtime.SendResult, error) {
	return s.router.Send(ctx, cmd)
}

// GetMessages returns a conversation page oldest-first, each message
// joined with its sender's profile. The "new" sentinel names a
// conversation that does not exist yet, so its history is empty by
// definition rather than an error.
func (s *ChatService) GetMessages(conversationID string, cursor *string) ([]MessageView, *string, error) {
	if conversationID == runtime.NewConversation {
		return nil, nil, nil
	}
	messages, next, err := s.messages.GetMessages(conversationID, cursor)
	if err != nil {
		return nil, nil, err
	}

	// Two-party conversations have at most two distinct senders per page.
	profiles := make(map[string]domain.Profile)
	views := make([]MessageView, 0, len(messages))
	for _, m := range messages {
		sender, ok := profiles[m.SenderID]
		if !ok {
			user, err := s.users.GetUserByID(m.SenderID)
			if err != nil {
				return nil, nil, err
			}
			sender = user.Profile()
			profiles[m.SenderID] = sender
		}
		views = append(views, MessageView{
			ID:             m.ID,
			ConversationID: m.ConversationID,
			SenderID:       m.SenderID,
			Sender:         sender,
			Body:           m.Body,
			CreatedAt:      m.CreatedAt,
		})
	}
	return views, next, nil
}

// GetConversations lists the caller's conversations with each peer's
// profile resolved, so clients need no follow-up user fetches.
func (s *ChatService) GetConversations(userID string) ([]ConversationView, error) {
	conversations, err := s.conversations.ListByMember(userID)
	if err != nil {
		return nil, err
	}

	views := make([]ConversationView, 0, len(conversations))
	for _, conv := range conversations {
		peer, err := s.users.GetUserByID(conv.Peer(userID))
		if err != nil {
			return nil, err
		}
		views = append(views, ConversationView{
			ID:        conv.ID,
			Peer:      peer.Profile(),
			CreatedAt: conv.CreatedAt,
		})
	}
	return views, nil
}

func (s *ChatService) CreateConversation(senderID, receiverID string) (domain.Conversation, error) {
	conv, _, err := s.conversations.FindOrCreate(senderID, receiverID)
	return conv, err
}

// FindConversation is the read-only lookup by member pair, for callers
// that must not create one as a side effect.
func (s *ChatService) FindConversation(senderID, receiverID string) (domain.Conversation, error) {
	return s.conversations.FindByMembers(senderID, receiverID)
}

func (s *ChatService) Search(ctx context.Context, query, conversationID string, page int) ([]repositories.SearchHit, uint64, error) {
	return s.search.Search(ctx, query, conversationID, page)
}
