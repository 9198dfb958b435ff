// Package socket owns the lifecycle of one bidirectional transport session
// bound to an auth token, and fans inbound frames out to named-event handlers.
// Every handler runs on a single dispatch goroutine, so handler-side state is
// mutated from one logical context only.
package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/50naija1/pizuna-app/internal/proto"
)

var (
	// ErrMissingToken is returned when Connect is called without a token.
	// No network attempt is made in that case.
	ErrMissingToken = errors.New("token required to connect socket")
	// ErrAlreadyConnected is returned when a session is already active or
	// being established; the caller must Disconnect first.
	ErrAlreadyConnected = errors.New("socket already connected")
	// ErrNotConnected is returned by Emit when there is no connected session.
	ErrNotConnected = errors.New("socket not connected")
)

// State is the connection lifecycle state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Handler receives the raw payload of a dispatched event.
type Handler func(data json.RawMessage)

// Subscription identifies a registered handler so it can be removed.
type Subscription struct {
	event string
	id    int
}

// Session is one established transport connection. It is owned by the
// Manager that created it and is closed through Manager.Disconnect.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	conn   *websocket.Conn // guarded by Manager.mu
}

// Manager establishes, owns, and tears down the transport session.
type Manager struct {
	url         string
	dialTimeout time.Duration
	log         *zerolog.Logger

	mu       sync.Mutex
	state    State
	sess     *Session
	handlers map[string]map[int]Handler
	nextSub  int

	frames    chan proto.Frame
	done      chan struct{}
	closeOnce sync.Once
}

// NewManager creates a manager for the given websocket URL and starts its
// dispatch goroutine. Close releases it.
func NewManager(url string, dialTimeout time.Duration, logger *zerolog.Logger) *Manager {
	m := &Manager{
		url:         url,
		dialTimeout: dialTimeout,
		log:         logger,
		handlers:    make(map[string]map[int]Handler),
		frames:      make(chan proto.Frame, 64),
		done:        make(chan struct{}),
	}
	go m.dispatchLoop()
	return m
}

// Connect establishes a session authenticated by token. The dial itself is
// asynchronous: transport-level failure surfaces as a connect_error event,
// success as a connect event. Connect errors only on precondition violations.
func (m *Manager) Connect(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	m.mu.Lock()
	if m.state != Disconnected {
		m.mu.Unlock()
		return nil, ErrAlreadyConnected
	}
	sessCtx, cancel := context.WithCancel(ctx)
	sess := &Session{ctx: sessCtx, cancel: cancel}
	m.state = Connecting
	m.sess = sess
	m.mu.Unlock()

	go m.dial(sess, token)
	return sess, nil
}

func (m *Manager) dial(sess *Session, token string) {
	dialCtx, cancel := context.WithTimeout(sess.ctx, m.dialTimeout)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, _, err := websocket.Dial(dialCtx, m.url, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		m.mu.Lock()
		active := m.sess == sess
		if active {
			m.state = Disconnected
			m.sess = nil
		}
		m.mu.Unlock()
		if active {
			m.log.Warn().Err(err).Str("url", m.url).Msg("socket connect failed")
			m.post(proto.EventConnectError, proto.ConnectError{Message: err.Error()})
		}
		return
	}

	m.mu.Lock()
	if m.sess != sess {
		// Disconnect raced the dial; drop the fresh connection.
		m.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "superseded")
		return
	}
	sess.conn = conn
	m.state = Connected
	m.mu.Unlock()

	m.log.Debug().Str("url", m.url).Msg("socket connected")
	m.post(proto.EventConnect, nil)
	go m.readLoop(sess, conn)
}

func (m *Manager) readLoop(sess *Session, conn *websocket.Conn) {
	for {
		var frame proto.Frame
		if err := wsjson.Read(sess.ctx, conn, &frame); err != nil {
			m.mu.Lock()
			active := m.sess == sess
			if active {
				m.state = Disconnected
				m.sess = nil
			}
			m.mu.Unlock()

			if active {
				switch {
				case errors.Is(err, context.Canceled):
				case websocket.CloseStatus(err) == websocket.StatusNormalClosure,
					websocket.CloseStatus(err) == websocket.StatusGoingAway:
				default:
					m.log.Warn().Err(err).Msg("socket read failed")
				}
				conn.Close(websocket.StatusNormalClosure, "closing")
				sess.cancel()
				m.post(proto.EventDisconnect, nil)
			}
			return
		}

		select {
		case m.frames <- frame:
		case <-m.done:
			return
		}
	}
}

// Disconnect closes the active session if any. Safe to call repeatedly.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	sess := m.sess
	m.sess = nil
	was := m.state
	m.state = Disconnected
	m.mu.Unlock()

	if sess == nil {
		return
	}

	sess.cancel()
	if sess.conn != nil {
		sess.conn.Close(websocket.StatusNormalClosure, "bye")
	}
	if was == Connected {
		m.post(proto.EventDisconnect, nil)
	}
}

// Close tears down the session and stops the dispatch goroutine.
func (m *Manager) Close() {
	m.Disconnect()
	m.closeOnce.Do(func() { close(m.done) })
}

// Active returns the connected session, or nil.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Connected {
		return nil
	}
	return m.sess
}

// State reports the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Emit sends an event frame on the active session. It returns
// ErrNotConnected, rather than silently dropping, when no session is up.
func (m *Manager) Emit(event string, data any) error {
	m.mu.Lock()
	sess := m.sess
	connected := m.state == Connected && sess != nil && sess.conn != nil
	m.mu.Unlock()

	if !connected {
		return ErrNotConnected
	}

	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", event, err)
		}
		raw = b
	}

	writeCtx, cancel := context.WithTimeout(sess.ctx, m.dialTimeout)
	defer cancel()
	if err := wsjson.Write(writeCtx, sess.conn, proto.Frame{Event: event, Data: raw}); err != nil {
		return fmt.Errorf("write %s frame: %w", event, err)
	}
	return nil
}

// On registers a handler for the named event and returns its subscription.
func (m *Manager) On(event string, h Handler) Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handlers[event] == nil {
		m.handlers[event] = make(map[int]Handler)
	}
	m.nextSub++
	m.handlers[event][m.nextSub] = h
	return Subscription{event: event, id: m.nextSub}
}

// Off removes a previously registered handler. Unknown subscriptions are a no-op.
func (m *Manager) Off(sub Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers[sub.event], sub.id)
}

func (m *Manager) dispatchLoop() {
	for {
		select {
		case <-m.done:
			return
		case frame := <-m.frames:
			m.dispatch(frame)
		}
	}
}

func (m *Manager) dispatch(frame proto.Frame) {
	m.mu.Lock()
	registered := m.handlers[frame.Event]
	ids := make([]int, 0, len(registered))
	for id := range registered {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, registered[id])
	}
	m.mu.Unlock()

	if len(handlers) == 0 && !isLifecycle(frame.Event) {
		m.log.Debug().Str("event", frame.Event).Msg("no handler for event")
	}
	for _, h := range handlers {
		h(frame.Data)
	}
}

// post queues a locally synthesized lifecycle event for dispatch.
func (m *Manager) post(event string, data any) {
	var raw json.RawMessage
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			raw = b
		}
	}
	select {
	case m.frames <- proto.Frame{Event: event, Data: raw}:
	case <-m.done:
	}
}

func isLifecycle(event string) bool {
	switch event {
	case proto.EventConnect, proto.EventDisconnect, proto.EventConnectError:
		return true
	}
	return false
}
