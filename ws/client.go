package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"you-chat/domain/event"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 16
	sendBuffer     = 256
)

// Client owns one websocket connection. All writes go through the send
// channel and a single write pump, because gorilla connections allow only
// one concurrent writer. Client implements contract.EventSink so the
// registry can hand it to the router and the presence fanout directly.
type Client struct {
	connID string
	conn   *websocket.Conn
	send   chan Frame
	log    *slog.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

func NewClient(connID string, conn *websocket.Conn, log *slog.Logger) *Client {
	conn.SetReadLimit(maxMessageSize)
	return &Client{
		connID: connID,
		conn:   conn,
		send:   make(chan Frame, sendBuffer),
		log:    log,
		closed: make(chan struct{}),
	}
}

func (c *Client) ConnID() string { return c.connID }

// Consume implements the EventSink interface: it maps the domain event to
// a wire frame and enqueues it. A full buffer counts as an unreachable
// client rather than a reason to block the router.
func (c *Client) Consume(ctx context.Context, e event.DomainEvent) error {
	frame, err := FrameFromEvent(e)
	if err != nil {
		return err
	}
	return c.Enqueue(ctx, frame)
}

// Enqueue hands a frame to the write pump. It never blocks: a closed
// connection or a full buffer is an error for the caller to log, not a
// reason to stall the routing path.
func (c *Client) Enqueue(_ context.Context, frame Frame) error {
	select {
	case <-c.closed:
		return fmt.Errorf("connection %s is closed", c.connID)
	default:
	}

	select {
	case c.send <- frame:
		return nil
	default:
		return fmt.Errorf("send buffer full on connection %s", c.connID)
	}
}

// EnqueueError reports a failed operation back to this client only.
func (c *Client) EnqueueError(ctx context.Context, message string) {
	frame, err := NewFrame(EventError, ErrorPayload{Message: message})
	if err != nil {
		return
	}
	if err := c.Enqueue(ctx, frame); err != nil {
		c.log.Debug("Dropping error frame", "conn_id", c.connID, "error", err)
	}
}

// WritePump drains the send channel onto the wire and keeps the
// connection alive with pings. It exits when the send channel is starved
// by a closed connection or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			payload, err := json.Marshal(frame)
			if err != nil {
				c.log.Error("Failed to encode frame", "event", frame.Event, "error", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Debug("Write failed, closing connection", "conn_id", c.connID, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			// Flush nothing further; the peer is gone.
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// ReadFrame blocks for the next inbound frame, renewing the read deadline
// on pong traffic.
func (c *Client) ReadFrame() (Frame, error) {
	_, payload, err := c.conn.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	var frame Frame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return Frame{}, fmt.Errorf("decoding frame: %w", err)
	}
	return frame, nil
}

// SetupRead arms the read deadline and pong handler. Must be called once
// before the read loop.
func (c *Client) SetupRead() {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// Close marks the connection dead. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}
