package cleantxtrelay

import (
	"sync"
	"time"
)

// Connection is one participant's live channel to the relay. Frames queued
// with Send are delivered by the transport in the order they were queued.
type Connection struct {
	ID          string
	Identity    string
	ConnectedAt time.Time

	mu        sync.Mutex
	sessionID string

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newConnection(id, identity string, buffer int, now time.Time) *Connection {
	return &Connection{
		ID:          id,
		Identity:    identity,
		ConnectedAt: now,
		send:        make(chan []byte, buffer),
		done:        make(chan struct{}),
	}
}

// SessionID returns the session the connection has joined, or "".
func (c *Connection) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Connection) setSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = sessionID
}

// bind records sessionID unless the connection is already closed. Close and
// bind are serialized, so a connection closed after a successful bind always
// observes its session on the way out.
func (c *Connection) bind(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Closed() {
		return false
	}
	c.sessionID = sessionID
	return true
}

// Outbound returns the queue of frames waiting to be written.
func (c *Connection) Outbound() <-chan []byte {
	return c.send
}

// Done is closed once the connection has been closed.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Closed reports whether Close has been called.
func (c *Connection) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Close marks the connection closed. It is safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		close(c.done)
	})
}

// Send queues frame without blocking and reports whether it was queued. A
// full queue closes the connection; frames are never skipped.
func (c *Connection) Send(frame []byte) bool {
	if c.Closed() {
		return false
	}

	select {
	case c.send <- frame:
		return true
	default:
		c.Close()
		return false
	}
}
