package runtime_test

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"you-chat/contract"
	"you-chat/domain"
	"you-chat/domain/event"
	"you-chat/errors"
	"you-chat/mocks"
	"you-chat/moderation"
	"you-chat/runtime"
)

var badgerWriteFailure = fmt.Errorf("badger: disk full")

func newTestRouter(t *testing.T, ctrl *gomock.Controller, broadcastUpdates bool) (
	*runtime.Router,
	*mocks.MockIRegistry,
	*mocks.MockIUserRepository,
	*mocks.MockIConversationRepository,
	*mocks.MockIMessageRepository,
) {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelError)

	registry := mocks.NewMockIRegistry(ctrl)
	users := mocks.NewMockIUserRepository(ctrl)
	conversations := mocks.NewMockIConversationRepository(ctrl)
	messages := mocks.NewMockIMessageRepository(ctrl)

	moderator, err := moderation.NewModerator([]string{"badger"}, '*', log)
	require.New(t).NoError(err)

	router := runtime.NewRouter(registry, users, runtime.NewResolver(conversations, log), messages, &moderator, broadcastUpdates, log)
	return router, registry, users, conversations, messages
}

func TestRouter_Send_BothOnline(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	req := require.New(t)
	router, registry, users, _, messages := newTestRouter(t, ctrl, false)

	sender := domain.User{ID: "u1", FullName: "Ada Lovelace", Email: "ada@example.com"}

	// Given both participants hold a live connection
	senderSink := mocks.NewMockEventSink(ctrl)
	receiverSink := mocks.NewMockEventSink(ctrl)
	registry.EXPECT().Lookup("u2").Return(receiverSink, true)
	registry.EXPECT().Lookup("u1").Return(senderSink, true)
	users.EXPECT().GetUserByID("u1").Return(sender, nil)

	var stored domain.Message
	messages.EXPECT().StoreMessage(gomock.Any()).DoAndReturn(func(m domain.Message) error {
		stored = m
		return nil
	})

	var toReceiver event.DomainEvent
	receiverSink.EXPECT().Consume(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e event.DomainEvent) error {
			toReceiver = e
			return nil
		})
	senderSink.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(nil)

	// When a message is routed to an existing conversation
	result, err := router.Send(context.Background(), runtime.SendCommand{
		SenderID:       "u1",
		ReceiverID:     "u2",
		ConversationID: "c1",
		Body:           "hello there",
	})

	// Then it is persisted and pushed to both sides
	req.NoError(err)
	req.Equal("c1", result.Message.ConversationID)
	req.Equal("hello there", stored.Body)
	req.Equal([]string{"u2", "u1"}, result.Delivered)

	delivered, ok := toReceiver.(event.MessageDelivered)
	req.True(ok)
	req.Equal("getMessage", delivered.Name())
	req.Equal("u1", delivered.SenderID)
	req.Equal(sender.Profile(), delivered.Sender)
}

func TestRouter_Send_ReceiverOffline(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	req := require.New(t)
	router, registry, users, _, messages := newTestRouter(t, ctrl, false)

	// Given the receiver has no live connection
	senderSink := mocks.NewMockEventSink(ctrl)
	registry.EXPECT().Lookup("u2").Return(nil, false)
	registry.EXPECT().Lookup("u1").Return(senderSink, true)
	users.EXPECT().GetUserByID("u1").Return(domain.User{ID: "u1"}, nil)
	messages.EXPECT().StoreMessage(gomock.Any()).Return(nil)

	// Then only the sender sees the echo
	senderSink.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	result, err := router.Send(context.Background(), runtime.SendCommand{
		SenderID:       "u1",
		ReceiverID:     "u2",
		ConversationID: "c1",
		Body:           "are you there?",
	})
	req.NoError(err)
	req.Equal([]string{"u1"}, result.Delivered)
}

func TestRouter_Send_ResolvesNewConversation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	req := require.New(t)
	router, registry, users, conversations, messages := newTestRouter(t, ctrl, false)

	// Given no conversation exists yet between the pair
	conversations.EXPECT().
		FindOrCreate("u1", "u2").
		Return(domain.Conversation{ID: "c-new", Members: [2]string{"u1", "u2"}}, true, nil)
	users.EXPECT().GetUserByID("u1").Return(domain.User{ID: "u1"}, nil)
	messages.EXPECT().StoreMessage(gomock.Any()).Return(nil)
	registry.EXPECT().Lookup(gomock.Any()).Return(nil, false).Times(2)

	// When the client sends the sentinel conversation id
	result, err := router.Send(context.Background(), runtime.SendCommand{
		SenderID:       "u1",
		ReceiverID:     "u2",
		ConversationID: runtime.NewConversation,
		Body:           "first contact",
	})

	// Then the message lands in the resolved conversation
	req.NoError(err)
	req.Equal("c-new", result.Message.ConversationID)
	req.Empty(result.Delivered)
}

func TestRouter_Send_ValidatesCommand(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	router, _, _, _, _ := newTestRouter(t, ctrl, false)

	tests := []struct {
		name string
		cmd  runtime.SendCommand
	}{
		{name: "missing sender", cmd: runtime.SendCommand{ReceiverID: "u2", ConversationID: "c1", Body: "hi"}},
		{name: "missing body", cmd: runtime.SendCommand{SenderID: "u1", ReceiverID: "u2", ConversationID: "c1"}},
		{name: "missing conversation", cmd: runtime.SendCommand{SenderID: "u1", ReceiverID: "u2", Body: "hi"}},
		{name: "new without receiver", cmd: runtime.SendCommand{SenderID: "u1", ConversationID: runtime.NewConversation, Body: "hi"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			_, err := router.Send(context.Background(), tt.cmd)
			req.ErrorIs(err, errors.ErrMissingFields)
		})
	}
}

func TestRouter_Send_CensorsBeforePersisting(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	req := require.New(t)
	router, registry, users, _, messages := newTestRouter(t, ctrl, false)

	users.EXPECT().GetUserByID("u1").Return(domain.User{ID: "u1"}, nil)
	registry.EXPECT().Lookup(gomock.Any()).Return(nil, false).Times(2)

	var stored domain.Message
	messages.EXPECT().StoreMessage(gomock.Any()).DoAndReturn(func(m domain.Message) error {
		stored = m
		return nil
	})

	_, err := router.Send(context.Background(), runtime.SendCommand{
		SenderID:       "u1",
		ReceiverID:     "u2",
		ConversationID: "c1",
		Body:           "a wild badger appears",
	})
	req.NoError(err)
	req.Equal("a wild ****** appears", stored.Body)
}

func TestRouter_Send_StorageFailureAbortsDelivery(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	req := require.New(t)
	router, _, _, _, messages := newTestRouter(t, ctrl, false)

	messages.EXPECT().StoreMessage(gomock.Any()).Return(badgerWriteFailure)

	// No Lookup or GetUserByID expectations: a failed write must not reach
	// the registry, and the profile fetch only happens after persistence
	_, err := router.Send(context.Background(), runtime.SendCommand{
		SenderID:       "u1",
		ReceiverID:     "u2",
		ConversationID: "c1",
		Body:           "lost forever",
	})
	req.ErrorIs(err, badgerWriteFailure)
}

func TestRouter_Send_UnknownSenderStillPersists(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	req := require.New(t)
	router, _, users, _, messages := newTestRouter(t, ctrl, false)

	// Given the sender id has no user record behind it
	users.EXPECT().GetUserByID("ghost").Return(domain.User{}, errors.ErrUserNotFound)

	var stored domain.Message
	messages.EXPECT().StoreMessage(gomock.Any()).DoAndReturn(func(m domain.Message) error {
		stored = m
		return nil
	})

	// And a permanent sink that indexes every routed message
	indexer := mocks.NewMockEventSink(ctrl)
	router.AddPermanentSink(indexer)
	indexer.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	// When the send goes through; no Lookup expectations, live delivery
	// must be skipped entirely
	result, err := router.Send(context.Background(), runtime.SendCommand{
		SenderID:       "ghost",
		ReceiverID:     "u2",
		ConversationID: "c1",
		Body:           "from nowhere",
	})

	// Then the message is durable even though nobody could be notified
	req.NoError(err)
	req.Equal("from nowhere", stored.Body)
	req.Empty(result.Delivered)
}

func TestRouter_Send_BroadcastsConversationUpdates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	req := require.New(t)
	router, registry, users, _, messages := newTestRouter(t, ctrl, true)

	users.EXPECT().GetUserByID("u1").Return(domain.User{ID: "u1"}, nil)
	messages.EXPECT().StoreMessage(gomock.Any()).Return(nil)
	registry.EXPECT().Lookup(gomock.Any()).Return(nil, false).Times(2)

	// Given a third connected user uninvolved in the conversation
	bystander := mocks.NewMockEventSink(ctrl)
	registry.EXPECT().Sinks().Return([]contract.EventSink{bystander})

	var seen event.DomainEvent
	bystander.EXPECT().Consume(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, e event.DomainEvent) error {
			seen = e
			return nil
		})

	_, err := router.Send(context.Background(), runtime.SendCommand{
		SenderID:       "u1",
		ReceiverID:     "u2",
		ConversationID: "c1",
		Body:           "news travel",
	})
	req.NoError(err)
	req.Equal("updateConversations", seen.Name())
}

func TestRouter_Send_FeedsPermanentSinks(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	req := require.New(t)
	router, registry, users, _, messages := newTestRouter(t, ctrl, false)

	users.EXPECT().GetUserByID("u1").Return(domain.User{ID: "u1"}, nil)
	messages.EXPECT().StoreMessage(gomock.Any()).Return(nil)
	registry.EXPECT().Lookup(gomock.Any()).Return(nil, false).Times(2)

	// Given a permanent sink such as the search indexer
	indexer := mocks.NewMockEventSink(ctrl)
	router.AddPermanentSink(indexer)

	// Then it receives the message even with everyone offline
	indexer.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	_, err := router.Send(context.Background(), runtime.SendCommand{
		SenderID:       "u1",
		ReceiverID:     "u2",
		ConversationID: "c1",
		Body:           "indexed anyway",
	})
	req.NoError(err)
}
