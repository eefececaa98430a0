package cleantxtrelay

import (
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Session is a named editing room. It holds the last-written document and the
// set of connections currently joined.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu           sync.Mutex
	participants map[string]*Connection
	document     json.RawMessage
	lastWriter   string
	revision     uint64
	updatedAt    time.Time
	emptySince   time.Time
	closed       bool
}

// Snapshot is a consistent copy of a session's document state.
type Snapshot struct {
	SessionID  string          `json:"sessionId"`
	Document   json.RawMessage `json:"document"`
	LastWriter string          `json:"lastWriter,omitempty"`
	Revision   uint64          `json:"revision"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// SessionInfo summarizes a session for operators.
type SessionInfo struct {
	ID           string    `json:"id"`
	Participants int       `json:"participants"`
	Identities   []string  `json:"identities"`
	LastWriter   string    `json:"lastWriter,omitempty"`
	Revision     uint64    `json:"revision"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		ID:           id,
		CreatedAt:    now,
		participants: map[string]*Connection{},
		emptySince:   now,
	}
}

// Snapshot returns the session's current document state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	doc := s.document
	if doc == nil {
		doc = EmptyDocument
	}
	return Snapshot{
		SessionID:  s.ID,
		Document:   doc,
		LastWriter: s.lastWriter,
		Revision:   s.revision,
		UpdatedAt:  s.updatedAt,
	}
}

// Info summarizes the session.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	identities := make([]string, 0, len(s.participants))
	for _, c := range s.participants {
		identities = append(identities, c.Identity)
	}
	sort.Strings(identities)

	return SessionInfo{
		ID:           s.ID,
		Participants: len(s.participants),
		Identities:   identities,
		LastWriter:   s.lastWriter,
		Revision:     s.revision,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.updatedAt,
	}
}

// Len returns the number of joined connections.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.participants)
}

func (s *Session) isMemberLocked(c *Connection) bool {
	return s.participants[c.ID] == c
}

// removeLocked drops c and reports whether the session is now empty.
func (s *Session) removeLocked(c *Connection, now time.Time) bool {
	if s.isMemberLocked(c) {
		delete(s.participants, c.ID)
		if len(s.participants) == 0 {
			s.emptySince = now
		}
	}
	return len(s.participants) == 0
}

func (s *Session) idleLocked(now time.Time, ttl time.Duration) bool {
	return len(s.participants) == 0 && now.Sub(s.emptySince) >= ttl
}
