package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/50naija1/pizuna-app/internal/log"
	"github.com/50naija1/pizuna-app/internal/proto"
	"github.com/50naija1/pizuna-app/internal/socket"
	"github.com/50naija1/pizuna-app/internal/store"
)

// testBackend is a websocket endpoint standing in for the chat server. It
// can auto-acknowledge message_send frames and push arbitrary events.
type testBackend struct {
	t       *testing.T
	url     string
	autoAck bool

	mu     sync.Mutex
	conn   *websocket.Conn
	ctx    context.Context
	nextID int
	sends  []proto.MessageSend
}

func startBackend(t *testing.T, autoAck bool) *testBackend {
	t.Helper()

	b := &testBackend{t: t, autoAck: autoAck}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")

		b.mu.Lock()
		b.conn = conn
		b.ctx = r.Context()
		b.mu.Unlock()

		for {
			var frame proto.Frame
			if err := wsjson.Read(r.Context(), conn, &frame); err != nil {
				return
			}
			b.handle(r.Context(), conn, frame)
		}
	}))
	t.Cleanup(ts.Close)

	b.url = strings.Replace(ts.URL, "http", "ws", 1)
	return b
}

func (b *testBackend) handle(ctx context.Context, conn *websocket.Conn, frame proto.Frame) {
	if frame.Event != proto.EventMessageSend {
		return
	}
	var send proto.MessageSend
	if err := json.Unmarshal(frame.Data, &send); err != nil {
		return
	}

	b.mu.Lock()
	b.sends = append(b.sends, send)
	b.nextID++
	serverID := fmt.Sprintf("srv%d", b.nextID)
	b.mu.Unlock()

	if b.autoAck {
		ack, _ := json.Marshal(proto.MessageAck{TempID: send.TempID, ID: serverID})
		_ = wsjson.Write(ctx, conn, proto.Frame{Event: proto.EventMessageAck, Data: ack})
	}
}

// push delivers an event frame to the connected client.
func (b *testBackend) push(event string, payload any) {
	b.t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		b.mu.Lock()
		conn, ctx := b.conn, b.ctx
		b.mu.Unlock()
		if conn != nil {
			data, _ := json.Marshal(payload)
			if err := wsjson.Write(ctx, conn, proto.Frame{Event: event, Data: data}); err != nil {
				b.t.Fatalf("push %s: %v", event, err)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	b.t.Fatalf("no client connected to push %s", event)
}

// sendCount reports how many message_send frames the backend received.
func (b *testBackend) sendCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sends)
}

// connectManager dials the backend and waits for the connect event.
func connectManager(t *testing.T, url string) *socket.Manager {
	t.Helper()

	m := socket.NewManager(url, 2*time.Second, log.New("error"))
	t.Cleanup(m.Close)

	connected := make(chan struct{}, 1)
	sub := m.On(proto.EventConnect, func(json.RawMessage) {
		select {
		case connected <- struct{}{}:
		default:
		}
	})
	defer m.Off(sub)

	if _, err := m.Connect(context.Background(), "test-token"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	select {
	case <-connected:
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for connect")
	}
	return m
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type fakeHistory struct {
	page []proto.MessageReceive
	err  error
}

func (f *fakeHistory) History(context.Context, string) ([]proto.MessageReceive, error) {
	return f.page, f.err
}

type fakeUploader struct {
	url   string
	err   error
	calls int
}

func (f *fakeUploader) Upload(context.Context, string) (string, error) {
	f.calls++
	return f.url, f.err
}

// openSession opens a session over sock with sensible test defaults.
func openSession(t *testing.T, sock Socket, extra func(*Options)) (*Session, *store.Log) {
	t.Helper()

	msgs := store.NewLog()
	opts := Options{
		Self:     "alice",
		Peer:     "bob",
		Socket:   sock,
		Messages: msgs,
		Logger:   log.New("error"),
	}
	if extra != nil {
		extra(&opts)
	}

	s, err := Open(context.Background(), opts)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	t.Cleanup(s.Close)
	return s, msgs
}
