package client

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"collabboard/internal/protocol"
)

// State is the connection lifecycle state of a Session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Handler consumes decoded server frames. Frames are delivered one at a
// time, in arrival order, from the session's reader goroutine.
type Handler interface {
	Dispatch(msg *protocol.Message)
}

// Session manages one websocket connection to a room. Connect is
// fire-and-forget: the attempt runs in the background and its outcome
// surfaces through the state callback. There is no automatic
// reconnection; after a failure or disconnect the owner decides whether
// to connect again.
type Session struct {
	wsURL   string
	handler Handler
	dialer  *websocket.Dialer

	// onState, if set, is invoked after every state transition. It is
	// called without the session lock held.
	onState func(State)

	mu      sync.Mutex
	state   State
	lastErr error
	roomID  string
	userID  string
	conn    *websocket.Conn

	writeMu sync.Mutex
}

// Option configures a Session.
type Option func(*Session)

// WithStateFunc registers a callback for state transitions.
func WithStateFunc(fn func(State)) Option {
	return func(s *Session) { s.onState = fn }
}

// WithHandshakeTimeout overrides the dial timeout.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(s *Session) { s.dialer.HandshakeTimeout = d }
}

// NewSession creates a session targeting the given websocket base URL,
// e.g. "ws://localhost:8000".
func NewSession(wsURL string, handler Handler, opts ...Option) *Session {
	s := &Session{
		wsURL:   wsURL,
		handler: handler,
		state:   StateDisconnected,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the reason for the most recent error transition, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Room returns the room this session is attached to.
func (s *Session) Room() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID
}

// Connect starts a connection attempt to the room's channel. It is a
// no-op while a connection attempt is in flight or a connection is
// live, regardless of the requested room.
func (s *Session) Connect(roomID, userID string) {
	s.mu.Lock()
	if s.state == StateConnecting || s.state == StateConnected {
		s.mu.Unlock()
		return
	}
	s.state = StateConnecting
	s.lastErr = nil
	s.roomID = roomID
	s.userID = userID
	s.mu.Unlock()
	s.notify(StateConnecting)

	go s.dial(roomID, userID)
}

func (s *Session) dial(roomID, userID string) {
	url := fmt.Sprintf("%s/ws/%s/%s", s.wsURL, roomID, userID)

	conn, _, err := s.dialer.Dial(url, nil)

	s.mu.Lock()
	if s.state != StateConnecting || s.roomID != roomID {
		// Disconnect raced the dial.
		s.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		s.state = StateError
		s.lastErr = err
		s.mu.Unlock()
		log.Printf("[Session] connect failed room=%s: %v", roomID, err)
		s.notify(StateError)

		// Error is transient: settle back to disconnected so the
		// owner can retry.
		s.mu.Lock()
		if s.state == StateError {
			s.state = StateDisconnected
			s.mu.Unlock()
			s.notify(StateDisconnected)
		} else {
			s.mu.Unlock()
		}
		return
	}

	s.conn = conn
	s.state = StateConnected
	s.mu.Unlock()
	log.Printf("[Session] connected room=%s user=%s", roomID, userID)
	s.notify(StateConnected)

	go s.readLoop(conn)
}

// Disconnect closes the connection if one exists. It is idempotent and
// leaves room state (roster, strokes, chat) untouched.
func (s *Session) Disconnect() {
	s.mu.Lock()
	conn := s.conn
	wasIdle := s.state == StateDisconnected
	s.conn = nil
	s.state = StateDisconnected
	s.lastErr = nil
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if !wasIdle {
		s.notify(StateDisconnected)
	}
}

// Send encodes and writes a frame. When the session is not connected it
// silently does nothing, so callers never need to guard UI actions with
// connection checks.
func (s *Session) Send(frame any) {
	s.mu.Lock()
	conn := s.conn
	connected := s.state == StateConnected
	s.mu.Unlock()
	if !connected || conn == nil {
		return
	}

	data, err := protocol.Encode(frame)
	if err != nil {
		log.Printf("[Session] encode failed: %v", err)
		return
	}

	s.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	s.writeMu.Unlock()
	if err != nil {
		log.Printf("[Session] write failed: %v", err)
		s.fail(conn, err)
	}
}

// readLoop is the single reader for the connection. Decoded frames are
// handed to the handler in order; a transport error ends the session.
func (s *Session) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.closed(conn)
			} else {
				s.fail(conn, err)
			}
			return
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			log.Printf("[Session] bad frame: %v", err)
			continue
		}
		s.handler.Dispatch(msg)
	}
}

// closed handles a clean close from the peer.
func (s *Session) closed(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.state = StateDisconnected
	roomID := s.roomID
	s.mu.Unlock()

	conn.Close()
	log.Printf("[Session] closed by server room=%s", roomID)
	s.notify(StateDisconnected)
}

// fail handles a transport error on a live connection.
func (s *Session) fail(conn *websocket.Conn, cause error) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.state = StateError
	s.lastErr = cause
	roomID := s.roomID
	s.mu.Unlock()

	conn.Close()
	log.Printf("[Session] connection lost room=%s: %v", roomID, cause)
	s.notify(StateError)

	s.mu.Lock()
	if s.state == StateError {
		s.state = StateDisconnected
		s.mu.Unlock()
		s.notify(StateDisconnected)
	} else {
		s.mu.Unlock()
	}
}

func (s *Session) notify(st State) {
	if s.onState != nil {
		s.onState(st)
	}
}
