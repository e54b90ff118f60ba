package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"you-chat/contract"
	"you-chat/domain/event"
	"you-chat/runtime"
)

// Handler upgrades HTTP requests and drives each connection through its
// lifecycle: connected, identified via addUser, closed. Presence snapshots
// go out through the presence channel after every registry change, so the
// fanout worker owns the broadcast, not the per-connection goroutine.
type Handler struct {
	registry contract.IRegistry
	router   *runtime.Router
	presence chan<- event.DomainEvent
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewHandler(
	registry contract.IRegistry,
	router *runtime.Router,
	presence chan<- event.DomainEvent,
	log *slog.Logger,
) *Handler {
	return &Handler{
		registry: registry,
		router:   router,
		presence: presence,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients are served from arbitrary origins in dev;
			// token auth happens at the API layer, not the socket.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(uuid.New().String(), conn, h.log)
	h.log.Info("Connection opened", "conn_id", client.ConnID(), "remote", r.RemoteAddr)

	go client.WritePump()
	h.readLoop(r.Context(), client)
}

// readLoop runs until the peer disconnects. Whatever happened before, the
// connection leaves the registry exactly once on the way out.
func (h *Handler) readLoop(ctx context.Context, client *Client) {
	defer func() {
		client.Close()
		if h.registry.Unregister(client.ConnID()) {
			h.publishPresence()
		}
		h.log.Info("Connection closed", "conn_id", client.ConnID())
	}()

	client.SetupRead()
	for {
		frame, err := client.ReadFrame()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure) {
				h.log.Warn("Read failed", "conn_id", client.ConnID(), "error", err)
			}
			return
		}
		h.dispatch(ctx, client, frame)
	}
}

func (h *Handler) dispatch(ctx context.Context, client *Client, frame Frame) {
	switch frame.Event {
	case EventAddUser:
		h.handleAddUser(client, frame.Data)
	case EventSendMessage:
		h.handleSendMessage(ctx, client, frame.Data)
	default:
		h.log.Debug("Ignoring unknown event", "event", frame.Event, "conn_id", client.ConnID())
	}
}

// handleAddUser identifies the connection. A user already online keeps
// their first connection and the duplicate socket stays untracked; the
// snapshot only goes out when the roster actually changed.
func (h *Handler) handleAddUser(client *Client, data json.RawMessage) {
	var userID string
	if err := json.Unmarshal(data, &userID); err != nil || userID == "" {
		h.log.Warn("Malformed addUser payload", "conn_id", client.ConnID())
		return
	}

	if !h.registry.Register(userID, client.ConnID(), client) {
		h.log.Debug("User already online, keeping first connection", "user_id", userID)
		return
	}
	h.log.Info("User online", "user_id", userID, "conn_id", client.ConnID())
	h.publishPresence()
}

func (h *Handler) handleSendMessage(ctx context.Context, client *Client, data json.RawMessage) {
	var payload SendMessagePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		client.EnqueueError(ctx, "malformed sendMessage payload")
		return
	}

	_, err := h.router.Send(ctx, runtime.SendCommand{
		SenderID:       payload.SenderID,
		ReceiverID:     payload.ReceiverID,
		ConversationID: payload.ConversationID,
		Body:           payload.Body,
	})
	if err != nil {
		h.log.Warn("Send failed", "conn_id", client.ConnID(), "error", err)
		client.EnqueueError(ctx, err.Error())
	}
}

// publishPresence pushes a fresh snapshot to the fanout worker. Dropping
// is not an option here: presence frames are how clients learn who is
// reachable, so this blocks briefly on a saturated channel.
func (h *Handler) publishPresence() {
	h.presence <- event.PresenceChanged{Entries: h.registry.Snapshot()}
}
