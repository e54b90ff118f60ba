package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"you-chat/ws"
)

// BaseSuite drives a running chat server over its real surfaces: the
// REST API and the websocket. Nothing is mocked.
type BaseSuite struct {
	suite.Suite
	Config Config
	client *http.Client
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("SERVER_ADDR not set, skipping end-to-end suite")
	}
	s.client = &http.Client{Timeout: 10 * time.Second}
}

func (s *BaseSuite) header(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// PostJSON performs a POST against the server and decodes the response
// into out. With E2E_DEBUG_JSON set, full bodies land in the test log.
func (s *BaseSuite) PostJSON(t *testing.T, path string, body any, out any) int {
	payload, err := json.Marshal(body)
	s.Require().NoError(err)

	if s.Config.DebugJSON {
		t.Logf("POST %s >> %s", path, payload)
	}

	start := time.Now()
	resp, err := s.client.Post(s.url(path), "application/json", bytes.NewReader(payload))
	s.Require().NoError(err)
	defer resp.Body.Close()

	t.Logf("POST %s [%d] in %v", path, resp.StatusCode, time.Since(start))
	s.decode(t, resp, out)
	return resp.StatusCode
}

// GetJSON performs a GET against the server and decodes the response.
func (s *BaseSuite) GetJSON(t *testing.T, path string, out any) int {
	start := time.Now()
	resp, err := s.client.Get(s.url(path))
	s.Require().NoError(err)
	defer resp.Body.Close()

	t.Logf("GET %s [%d] in %v", path, resp.StatusCode, time.Since(start))
	s.decode(t, resp, out)
	return resp.StatusCode
}

func (s *BaseSuite) decode(t *testing.T, resp *http.Response, out any) {
	if out == nil {
		return
	}
	var raw json.RawMessage
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&raw))
	if s.Config.DebugJSON {
		t.Logf("<< %s", raw)
	}
	s.Require().NoError(json.Unmarshal(raw, out))
}

func (s *BaseSuite) url(path string) string {
	return fmt.Sprintf("http://%s%s", s.Config.ServerAddr, path)
}

// Dial opens a websocket session and announces userID on it.
func (s *BaseSuite) Dial(t *testing.T, userID string) *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial(
		fmt.Sprintf("ws://%s/ws", s.Config.ServerAddr), nil)
	s.Require().NoError(err)
	t.Cleanup(func() { _ = conn.Close() })

	frame, err := ws.NewFrame(ws.EventAddUser, userID)
	s.Require().NoError(err)
	s.Require().NoError(conn.WriteJSON(frame))
	return conn
}

// WaitFor reads frames until one carries the wanted event, skipping the
// unrelated broadcasts that may interleave.
func (s *BaseSuite) WaitFor(conn *websocket.Conn, eventName string) ws.Frame {
	deadline := time.Now().Add(5 * time.Second)
	for {
		s.Require().NoError(conn.SetReadDeadline(deadline))
		var frame ws.Frame
		s.Require().NoError(conn.ReadJSON(&frame))
		if frame.Event == eventName {
			return frame
		}
	}
}
