package ws_test

import (
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"you-chat/domain"
	"you-chat/domain/event"
	"you-chat/errors"
	"you-chat/mocks"
	"you-chat/moderation"
	"you-chat/runtime"
	"you-chat/runtime/workers"
	"you-chat/ws"
)

type testServer struct {
	srv      *httptest.Server
	users    *mocks.MockIUserRepository
	messages *mocks.MockIMessageRepository
}

func newTestServer(t *testing.T, ctrl *gomock.Controller) *testServer {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelError)

	users := mocks.NewMockIUserRepository(ctrl)
	conversations := mocks.NewMockIConversationRepository(ctrl)
	messages := mocks.NewMockIMessageRepository(ctrl)

	moderator, err := moderation.NewModerator([]string{"badger"}, '*', log)
	require.New(t).NoError(err)

	registry := runtime.NewRegistry()
	router := runtime.NewRouter(registry, users, runtime.NewResolver(conversations, log), messages, &moderator, false, log)

	presence := make(chan event.DomainEvent, 16)
	fanout := workers.NewPresenceFanout(log, registry, presence, time.Second)
	sup := workers.NewSupervisor(log)
	go sup.Add(fanout).Run(t.Context())

	handler := ws.NewHandler(registry, router, presence, log)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, users: users, messages: messages}
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.New(t).NoError(err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, eventName string, payload any) {
	t.Helper()
	frame, err := ws.NewFrame(eventName, payload)
	require.New(t).NoError(err)
	require.New(t).NoError(conn.WriteJSON(frame))
}

// waitForEvent reads frames until one matches the wanted event name,
// skipping unrelated traffic such as presence refreshes.
func waitForEvent(t *testing.T, conn *websocket.Conn, eventName string) ws.Frame {
	t.Helper()
	req := require.New(t)
	deadline := time.Now().Add(3 * time.Second)
	req.NoError(conn.SetReadDeadline(deadline))

	for {
		var frame ws.Frame
		req.NoError(conn.ReadJSON(&frame), "waiting for %s", eventName)
		if frame.Event == eventName {
			return frame
		}
	}
}

func TestHandler_AddUserBroadcastsPresence(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	req := require.New(t)
	ts := newTestServer(t, ctrl)

	conn := ts.dial(t)

	// When the client identifies itself
	sendFrame(t, conn, ws.EventAddUser, "u1")

	// Then it receives the online roster including itself
	frame := waitForEvent(t, conn, ws.EventGetUsers)
	var entries []domain.PresenceEntry
	req.NoError(json.Unmarshal(frame.Data, &entries))
	req.Len(entries, 1)
	req.Equal("u1", entries[0].UserID)
	req.NotEmpty(entries[0].ConnID)
}

func TestHandler_MessageReachesReceiverAndSender(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	req := require.New(t)
	ts := newTestServer(t, ctrl)

	ts.users.EXPECT().
		GetUserByID("u1").
		Return(domain.User{ID: "u1", FullName: "Ada", Email: "ada@example.com"}, nil).
		AnyTimes()
	ts.messages.EXPECT().StoreMessage(gomock.Any()).Return(nil).AnyTimes()

	sender := ts.dial(t)
	receiver := ts.dial(t)
	sendFrame(t, sender, ws.EventAddUser, "u1")
	sendFrame(t, receiver, ws.EventAddUser, "u2")

	// Both sides must be registered before routing
	waitForEvent(t, sender, ws.EventGetUsers)
	waitForEvent(t, receiver, ws.EventGetUsers)

	// When u1 messages u2
	sendFrame(t, sender, ws.EventSendMessage, ws.SendMessagePayload{
		SenderID:       "u1",
		ReceiverID:     "u2",
		ConversationID: "c1",
		Body:           "hello u2",
	})

	// Then both connections get the message with the sender's profile
	for _, conn := range []*websocket.Conn{receiver, sender} {
		frame := waitForEvent(t, conn, ws.EventGetMessage)
		var payload ws.MessagePayload
		req.NoError(json.Unmarshal(frame.Data, &payload))
		req.Equal("hello u2", payload.Body)
		req.Equal("u1", payload.SenderID)
		req.Equal("Ada", payload.Sender.FullName)
	}
}

func TestHandler_DisconnectUpdatesPresence(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	req := require.New(t)
	ts := newTestServer(t, ctrl)

	watcher := ts.dial(t)
	leaver := ts.dial(t)
	sendFrame(t, watcher, ws.EventAddUser, "u1")
	sendFrame(t, leaver, ws.EventAddUser, "u2")

	// Wait until the watcher has seen both online
	for {
		frame := waitForEvent(t, watcher, ws.EventGetUsers)
		var entries []domain.PresenceEntry
		req.NoError(json.Unmarshal(frame.Data, &entries))
		if len(entries) == 2 {
			break
		}
	}

	// When u2 drops the connection
	req.NoError(leaver.Close())

	// Then the roster shrinks back to u1 alone
	frame := waitForEvent(t, watcher, ws.EventGetUsers)
	var entries []domain.PresenceEntry
	req.NoError(json.Unmarshal(frame.Data, &entries))
	req.Len(entries, 1)
	req.Equal("u1", entries[0].UserID)
}

func TestHandler_FailedSendAnswersWithErrorFrame(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	req := require.New(t)
	ts := newTestServer(t, ctrl)

	conn := ts.dial(t)
	sendFrame(t, conn, ws.EventAddUser, "u1")
	waitForEvent(t, conn, ws.EventGetUsers)

	// Given a sendMessage missing its body
	sendFrame(t, conn, ws.EventSendMessage, ws.SendMessagePayload{
		SenderID:       "u1",
		ReceiverID:     "u2",
		ConversationID: "c1",
	})

	// Then the sender learns the message was not durable
	frame := waitForEvent(t, conn, ws.EventError)
	var payload ws.ErrorPayload
	req.NoError(json.Unmarshal(frame.Data, &payload))
	req.Contains(payload.Message, errors.ErrMissingFields.Error())
}

func TestHandler_SecondConnectionDoesNotStealPresence(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	req := require.New(t)
	ts := newTestServer(t, ctrl)

	first := ts.dial(t)
	sendFrame(t, first, ws.EventAddUser, "u1")
	firstFrame := waitForEvent(t, first, ws.EventGetUsers)
	var firstEntries []domain.PresenceEntry
	req.NoError(json.Unmarshal(firstFrame.Data, &firstEntries))

	// When the same user opens a second connection
	second := ts.dial(t)
	sendFrame(t, second, ws.EventAddUser, "u1")

	// Let the duplicate identify reach the handler before the genuine join
	time.Sleep(100 * time.Millisecond)

	// And a different user comes online afterwards
	third := ts.dial(t)
	sendFrame(t, third, ws.EventAddUser, "u2")

	// Then the next snapshot the first connection sees is the one for the
	// genuine join: two entries, with u1 still bound to its first
	// connection. A snapshot for the duplicate would have shown up here
	// with u1 alone.
	frame := waitForEvent(t, first, ws.EventGetUsers)
	var entries []domain.PresenceEntry
	req.NoError(json.Unmarshal(frame.Data, &entries))
	req.Len(entries, 2)
	req.Equal("u1", entries[0].UserID)
	req.Equal(firstEntries[0].ConnID, entries[0].ConnID)
	req.Equal("u2", entries[1].UserID)
}
