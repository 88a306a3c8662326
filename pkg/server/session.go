package server

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/teslashibe/drowsy/pkg/detection"
	"github.com/teslashibe/drowsy/pkg/protocol"
)

// ErrAlreadyConnected is returned when a second extractor attaches to a session.
var ErrAlreadyConnected = errors.New("session already has an extractor connected")

// writer is the part of a websocket connection a session writes to.
type writer interface {
	WriteMessage(messageType int, data []byte) error
}

// Session is one monitored driver: a detection machine plus the extractor
// connection feeding it, if any.
type Session struct {
	ID      string
	Machine *detection.Machine
	Created time.Time

	mu       sync.Mutex
	conn     writer
	lastSeen time.Time

	frames atomic.Uint64
	sent   atomic.Uint64
}

// attach binds the extractor connection.
func (s *Session) attach(c writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return ErrAlreadyConnected
	}
	s.conn = c
	s.lastSeen = time.Now()
	return nil
}

// detach releases c if it is still the bound connection.
func (s *Session) detach(c writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == c {
		s.conn = nil
	}
}

// Connected reports whether an extractor is attached.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// sendRaw writes pre-encoded JSON to the extractor. Without a connection it
// does nothing.
func (s *Session) sendRaw(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	s.sent.Add(1)
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Send writes msg to the extractor.
func (s *Session) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	return s.sendRaw(data)
}

// SessionInfo contains info about a session
type SessionInfo struct {
	ID        string          `json:"id"`
	State     detection.State `json:"state"`
	Connected bool            `json:"connected"`
	Created   time.Time       `json:"created"`
	LastSeen  time.Time       `json:"last_seen"`
	Frames    uint64          `json:"frames_received"`
}

// Info returns a summary of the session.
func (s *Session) Info() SessionInfo {
	state := s.Machine.State()
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:        s.ID,
		State:     state,
		Connected: s.conn != nil,
		Created:   s.Created,
		LastSeen:  s.lastSeen,
		Frames:    s.frames.Load(),
	}
}
