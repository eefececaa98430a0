package cleantxtrelay

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Registry maps session ids to live sessions. Lock order is registry, then
// session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: map[string]*Session{},
		now:      time.Now,
	}
}

// GetOrCreate returns the session with the given id, creating an empty one if
// none exists. Concurrent callers for the same id get the same session.
func (r *Registry) GetOrCreate(id string) *Session {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[id]; ok {
		return s
	}
	s = newSession(id, r.now())
	r.sessions[id] = s
	return s
}

// Lookup returns the session with the given id or ErrSessionNotFound.
func (r *Registry) Lookup(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrSessionNotFound, id)
	}
	return s, nil
}

// Remove drops the session if it has no participants. It reports whether the
// session was removed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	return r.reclaimLocked(s, r.now(), 0)
}

func (r *Registry) removeIfIdle(s *Session, ttl time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.sessions[s.ID]; !ok || cur != s {
		return false
	}
	return r.reclaimLocked(s, r.now(), ttl)
}

// reclaimLocked requires r.mu. A reclaimed session is marked closed so that a
// join racing with removal retries against a fresh session.
func (r *Registry) reclaimLocked(s *Session, now time.Time, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.idleLocked(now, ttl) {
		return false
	}
	s.closed = true
	delete(r.sessions, s.ID)
	return true
}

// Sweep removes every session that has been empty for at least ttl and
// returns how many were removed.
func (r *Registry) Sweep(ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var removed int
	for _, s := range r.sessions {
		if r.reclaimLocked(s, now, ttl) {
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done. onSweep, if set, is
// called after every pass. A non-positive interval returns immediately.
func (r *Registry) RunSweeper(ctx context.Context, interval, ttl time.Duration, onSweep func(removed, remaining int)) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := r.Sweep(ttl)
			if onSweep != nil {
				onSweep(removed, r.Len())
			}
		}
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sessions summarizes every live session, ordered by id.
func (r *Registry) Sessions() []SessionInfo {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ID < infos[j].ID
	})
	return infos
}
