package mcp

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when a session identifier resolves to
// nothing, either never created or already destroyed.
var ErrSessionNotFound = errors.New("session not found")

// Event is one server-push message delivered on a session's SSE stream.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Session is a stateful binding between one client and the bridge. Sessions
// are created on initialize, looked up by header on every subsequent
// exchange, and destroyed on explicit terminate. A session is never mutated
// after creation; the registry's only mutating operations are insertion and
// eviction.
type Session struct {
	ID        string
	CreatedAt time.Time

	events chan Event
	done   chan struct{}
	once   sync.Once
}

func newSession() *Session {
	return &Session{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		events:    make(chan Event, 32),
		done:      make(chan struct{}),
	}
}

// Notify queues an event for the session's push stream. If no subscriber is
// draining and the buffer is full the event is dropped rather than blocking
// the sender.
func (s *Session) Notify(ev Event) {
	select {
	case <-s.done:
	case s.events <- ev:
	default:
	}
}

// Events exposes the push stream for the SSE writer.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Done is closed when the session is destroyed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) close() {
	s.once.Do(func() { close(s.done) })
}

// SessionRegistry is the concurrency-safe map from session identifier to live
// session. Identifiers are random UUIDs and are never reused after teardown.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

// Create mints a new session and inserts it.
func (r *SessionRegistry) Create() *Session {
	s := newSession()
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
	return s
}

// Lookup resolves an identifier to its live session.
func (r *SessionRegistry) Lookup(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Destroy evicts and closes a session. It reports false when the identifier
// does not resolve to a live session.
func (r *SessionRegistry) Destroy(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if ok {
		s.close()
	}
	return ok
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close destroys every live session, for server shutdown.
func (r *SessionRegistry) Close() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}
