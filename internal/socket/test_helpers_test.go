package socket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/50naija1/pizuna-app/internal/log"
	"github.com/50naija1/pizuna-app/internal/proto"
)

// startTestServer runs a websocket endpoint that feeds every inbound frame to
// onFrame, which may write reply frames on the connection.
func startTestServer(t *testing.T, onFrame func(ctx context.Context, conn *websocket.Conn, frame proto.Frame)) string {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")

		ctx := r.Context()
		for {
			var frame proto.Frame
			if err := wsjson.Read(ctx, conn, &frame); err != nil {
				return
			}
			if onFrame != nil {
				onFrame(ctx, conn, frame)
			}
		}
	}))
	t.Cleanup(ts.Close)

	return strings.Replace(ts.URL, "http", "ws", 1)
}

// newTestManager builds a manager against url and cleans it up with the test.
func newTestManager(t *testing.T, url string) *Manager {
	t.Helper()

	logger := log.New("error")
	m := NewManager(url, 2*time.Second, logger)
	t.Cleanup(m.Close)
	return m
}

// subscribe registers a handler that forwards payloads to a channel.
func subscribe(m *Manager, event string) (<-chan json.RawMessage, Subscription) {
	ch := make(chan json.RawMessage, 8)
	sub := m.On(event, func(data json.RawMessage) {
		ch <- data
	})
	return ch, sub
}

// mustRecv waits for one payload on ch or fails the test.
func mustRecv(t *testing.T, ch <-chan json.RawMessage, what string) json.RawMessage {
	t.Helper()

	select {
	case data := <-ch:
		return data
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return nil
	}
}
