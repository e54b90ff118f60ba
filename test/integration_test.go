package test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"you-chat/auth"
	"you-chat/domain/event"
	"you-chat/moderation"
	"you-chat/repositories"
	"you-chat/runtime"
	"you-chat/services"
	"you-chat/sink"
)

// stack is the whole server wired on real storage, minus the network.
type stack struct {
	registry *runtime.Registry
	router   *runtime.Router
	auth     services.IAuthService
	chat     services.IChatService
	users    services.IUserService
	index    *sink.IndexSink
}

func newStack(t *testing.T, broadcastUpdates bool) *stack {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelError)

	// Reduced to 16 Mo for testing (avoid 2 Go of preallocated storage)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	req.NoError(err)
	t.Cleanup(func() { _ = writer.Close() })

	moderator, err := moderation.NewModerator([]string{"badger"}, '*', log)
	req.NoError(err)

	userRepository := repositories.NewUserRepository(db)
	conversationRepository := repositories.NewConversationRepository(db)
	messageRepository := repositories.NewMessageRepository(db, log, lo.ToPtr(100))
	searchRepository := repositories.NewSearchRepository(writer, log, nil)

	registry := runtime.NewRegistry()
	resolver := runtime.NewResolver(conversationRepository, log)
	router := runtime.NewRouter(
		registry, userRepository, resolver, messageRepository,
		&moderator, broadcastUpdates, log,
	)

	index := sink.NewIndexSink(searchRepository, log, 100, time.Hour)
	router.AddPermanentSink(index)

	tokens := auth.NewTokenManager("integration-secret-32-bytes-long!!!!", time.Hour)

	return &stack{
		registry: registry,
		router:   router,
		auth:     services.NewAuthService(userRepository, tokens),
		chat: services.NewChatService(
			router, conversationRepository, messageRepository, userRepository, searchRepository,
		),
		users: services.NewUserService(userRepository),
		index: index,
	}
}

// collector is an in-memory stand-in for a live connection.
type collector struct {
	events []event.DomainEvent
}

func (c *collector) Consume(_ context.Context, e event.DomainEvent) error {
	c.events = append(c.events, e)
	return nil
}

func (c *collector) delivered() []event.MessageDelivered {
	var out []event.MessageDelivered
	for _, e := range c.events {
		if m, ok := e.(event.MessageDelivered); ok {
			out = append(out, m)
		}
	}
	return out
}

func Test_Scenario_FirstContact(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	s := newStack(t, false)

	// Given two registered users, both online
	alice, err := s.auth.Register("Alice Martin", "alice@example.com", "ComplexPass123!")
	req.NoError(err)
	req.NotEmpty(alice.Token)
	bob, err := s.auth.Register("Bob Dupont", "bob@example.com", "ComplexPass123!")
	req.NoError(err)

	aliceSink, bobSink := &collector{}, &collector{}
	req.True(s.registry.Register(alice.ID, "conn-a", aliceSink))
	req.True(s.registry.Register(bob.ID, "conn-b", bobSink))

	// When Alice messages Bob without an existing conversation
	result, err := s.chat.SendMessage(ctx, runtime.SendCommand{
		SenderID:       alice.ID,
		ReceiverID:     bob.ID,
		ConversationID: runtime.NewConversation,
		Body:           "it begins with a badger",
	})
	req.NoError(err)

	// Then a conversation now exists and both ends got the message
	req.NotEmpty(result.Message.ConversationID)
	req.ElementsMatch([]string{alice.ID, bob.ID}, result.Delivered)

	req.Len(bobSink.delivered(), 1)
	got := bobSink.delivered()[0]
	req.Equal("it begins with a ******", got.Body)
	req.Equal("Alice Martin", got.Sender.FullName)
	req.Len(aliceSink.delivered(), 1)

	// And the history endpoint returns it oldest-first
	messages, _, err := s.chat.GetMessages(result.Message.ConversationID, nil)
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("it begins with a ******", messages[0].Body)

	// And Alice's conversation list resolves Bob as the peer
	views, err := s.chat.GetConversations(alice.ID)
	req.NoError(err)
	req.Len(views, 1)
	req.Equal(bob.ID, views[0].Peer.ID)

	// And once the index sink flushes, search finds the message
	s.index.Flush()
	hits, total, err := s.chat.Search(ctx, "begins", "", 0)
	req.NoError(err)
	req.Equal(uint64(1), total)
	req.Equal(result.Message.ConversationID, hits[0].ConversationID)
}

func Test_Scenario_OfflineReceiver(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	s := newStack(t, false)

	alice, err := s.auth.Register("Alice Martin", "alice@example.com", "ComplexPass123!")
	req.NoError(err)
	bob, err := s.auth.Register("Bob Dupont", "bob@example.com", "ComplexPass123!")
	req.NoError(err)

	// Given only Alice is online
	aliceSink := &collector{}
	req.True(s.registry.Register(alice.ID, "conn-a", aliceSink))

	// When she messages the offline Bob
	result, err := s.chat.SendMessage(ctx, runtime.SendCommand{
		SenderID:       alice.ID,
		ReceiverID:     bob.ID,
		ConversationID: runtime.NewConversation,
		Body:           "are you there?",
	})
	req.NoError(err)

	// Then only she saw a live delivery
	req.Equal([]string{alice.ID}, result.Delivered)

	// And Bob finds the message in history when he comes back
	messages, _, err := s.chat.GetMessages(result.Message.ConversationID, nil)
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("are you there?", messages[0].Body)
}

func Test_Scenario_ReconnectKeepsHistory(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	s := newStack(t, false)

	alice, err := s.auth.Register("Alice Martin", "alice@example.com", "ComplexPass123!")
	req.NoError(err)
	bob, err := s.auth.Register("Bob Dupont", "bob@example.com", "ComplexPass123!")
	req.NoError(err)

	aliceSink := &collector{}
	req.True(s.registry.Register(alice.ID, "conn-a", aliceSink))

	// Given an established conversation
	first, err := s.chat.SendMessage(ctx, runtime.SendCommand{
		SenderID:       alice.ID,
		ReceiverID:     bob.ID,
		ConversationID: runtime.NewConversation,
		Body:           "first",
	})
	req.NoError(err)
	conversationID := first.Message.ConversationID

	// When Alice drops and reconnects with a fresh connection
	req.True(s.registry.Unregister("conn-a"))
	freshSink := &collector{}
	req.True(s.registry.Register(alice.ID, "conn-a2", freshSink))

	// Then sending on the existing conversation still works
	_, err = s.chat.SendMessage(ctx, runtime.SendCommand{
		SenderID:       alice.ID,
		ReceiverID:     bob.ID,
		ConversationID: conversationID,
		Body:           "second",
	})
	req.NoError(err)

	// And history holds both messages in order
	messages, _, err := s.chat.GetMessages(conversationID, nil)
	req.NoError(err)
	req.Len(messages, 2)
	req.Equal("first", messages[0].Body)
	req.Equal("second", messages[1].Body)

	// And no duplicate conversation was created along the way
	conv, err := s.chat.CreateConversation(alice.ID, bob.ID)
	req.NoError(err)
	req.Equal(conversationID, conv.ID)
}

func Test_Scenario_LoginAfterRegister(t *testing.T) {
	req := require.New(t)
	s := newStack(t, false)

	_, err := s.auth.Register("Alice Martin", "alice@example.com", "ComplexPass123!")
	req.NoError(err)

	// When she logs back in with the right password
	user, err := s.auth.Login("alice@example.com", "ComplexPass123!")
	req.NoError(err)
	req.NotEmpty(user.Token)

	// And the directory shows her to other users only
	bob, err := s.auth.Register("Bob Dupont", "bob@example.com", "ComplexPass123!")
	req.NoError(err)
	profiles, err := s.users.ListOthers(bob.ID)
	req.NoError(err)
	req.Len(profiles, 1)
	req.Equal("Alice Martin", profiles[0].FullName)
}
