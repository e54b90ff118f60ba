package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"

	"you-chat/domain"
	"you-chat/sink"
	"you-chat/ws"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const (
	// The server pings every ~54s; two missed pings means it is gone.
	liveWindow       = 2 * time.Minute
	controlWriteWait = 10 * time.Second
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string `env:"CHAT_SERVER_ADDR,default=localhost:8080"`
	UserID        string `env:"CHAT_USER_ID,required=true"`
	LogLevel      string `env:"LOG_LEVEL,required=true"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v", err)
	}
	os.Exit(code)
}

// run handles the websocket client lifecycle: connect, announce presence,
// then pump frames in while reading commands from stdin.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Connect to the chat server.
	url := fmt.Sprintf("ws://%s/ws", config.ServerAddress)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerAddress, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	// 4. Announce presence.
	if err := writeFrame(conn, ws.EventAddUser, config.UserID); err != nil {
		return exitRuntime, fmt.Errorf("failed to announce presence: %w", err)
	}

	color.Greenln(">>> Connected as", config.UserID, "(Ctrl+C to quit)")
	color.Grayln("    send with: @<userID> <message>")

	timeline := sink.NewTimeline(config.UserID)

	// conversations remembers the resolved conversation per peer so only
	// the first message to a peer pays the find-or-create round trip.
	conversations := make(map[string]string)

	// 5. Stdin command loop, feeding outbound frames.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			receiver, body, ok := parseCommand(line)
			if !ok {
				color.Redln("Usage: @<userID> <message>")
				continue
			}

			conversationID, known := conversations[receiver]
			if !known {
				conversationID = "new"
			}
			err := writeFrame(conn, ws.EventSendMessage, ws.SendMessagePayload{
				SenderID:       config.UserID,
				ReceiverID:     receiver,
				ConversationID: conversationID,
				Body:           body,
			})
			if err != nil {
				color.Redln("Send failed:", err)
				return
			}
		}
	}()

	// 6. Frame reception in its own goroutine. Websocket read errors are
	// permanent, so the read blocks until a frame arrives and shutdown
	// unblocks it by closing the connection.
	readErr := make(chan error, 1)
	go func() {
		readErr <- receiveFrames(conn, config.UserID, timeline, conversations)
	}()

	select {
	case <-ctx.Done():
		log.Info("Stopping client...")
		return exitOK, nil
	case err := <-readErr:
		if ctx.Err() != nil {
			return exitOK, nil
		}
		return exitRuntime, fmt.Errorf("connection error: %w", err)
	}
}

// receiveFrames pumps inbound frames until the connection dies. The read
// deadline is armed once and renewed on every server ping, never between
// frames: a quiet conversation must not look like a dead connection.
func receiveFrames(conn *websocket.Conn, self string, timeline *sink.Timeline, conversations map[string]string) error {
	_ = conn.SetReadDeadline(time.Now().Add(liveWindow))
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(liveWindow))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(controlWriteWait))
	})

	for {
		var frame ws.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return err
		}
		if err := render(frame, self, timeline, conversations); err != nil {
			color.Redln("Bad frame:", err)
		}
	}
}

// parseCommand splits "@bob hello there" into ("bob", "hello there").
func parseCommand(line string) (receiver, body string, ok bool) {
	if !strings.HasPrefix(line, "@") {
		return "", "", false
	}
	parts := strings.SplitN(line[1:], " ", 2)
	if len(parts) != 2 || parts[0] == "" || strings.TrimSpace(parts[1]) == "" {
		return "", "", false
	}
	return parts[0], strings.TrimSpace(parts[1]), true
}

func render(frame ws.Frame, self string, timeline *sink.Timeline, conversations map[string]string) error {
	switch frame.Event {
	case ws.EventGetMessage:
		var payload ws.MessagePayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			return err
		}
		timeline.Messages = append(timeline.Messages, domain.Message{
			ConversationID: payload.ConversationID,
			SenderID:       payload.SenderID,
			Body:           payload.Body,
			CreatedAt:      payload.At,
		})
		// Remember the conversation for the peer, whichever side we are on.
		peer := payload.SenderID
		if peer == self {
			peer = payload.ReceiverID
		}
		conversations[peer] = payload.ConversationID

		stamp := payload.At.Format(time.TimeOnly)
		if payload.SenderID == self {
			color.Grayln(fmt.Sprintf("[%s] you: %s", stamp, payload.Body))
		} else {
			color.Cyanln(fmt.Sprintf("[%s] %s: %s", stamp, payload.Sender.FullName, payload.Body))
		}

	case ws.EventGetUsers:
		var entries []domain.PresenceEntry
		if err := json.Unmarshal(frame.Data, &entries); err != nil {
			return err
		}
		renderPresence(entries)

	case ws.EventUpdateConversations:
		var payload ws.MessagePayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			return err
		}
		color.Yellowln(fmt.Sprintf("* new activity from %s", payload.Sender.FullName))

	case ws.EventError:
		var payload ws.ErrorPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			return err
		}
		color.Redln("Server:", payload.Message)
	}
	return nil
}

func renderPresence(entries []domain.PresenceEntry) {
	color.Greenln(fmt.Sprintf("--- online (%d) ---", len(entries)))
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"User", "Connection"})
	table.SetBorder(false)
	table.SetHeaderLine(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	for _, e := range entries {
		table.Append([]string{e.UserID, shortID(e.ConnID)})
	}
	table.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func writeFrame(conn *websocket.Conn, eventName string, payload any) error {
	frame, err := ws.NewFrame(eventName, payload)
	if err != nil {
		return err
	}
	return conn.WriteJSON(frame)
}
