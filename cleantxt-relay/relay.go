// Package cleantxtrelay fans document edits out between the participants of
// named editing sessions and checkpoints session documents to a ledger.
package cleantxtrelay

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	cleantxtcli "github.com/cleantxt/cleantxt-go-utils/cleantxt-cli"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	DefaultSessionID  = "collab_writing"
	DefaultSendBuffer = 256
)

// Relay owns connection lifecycle and edit fan-out. All methods are safe for
// concurrent use; per-session operations are serialized by the session.
type Relay struct {
	Registry *Registry
	Logger   zerolog.Logger
	Metrics  *cleantxtcli.Metrics

	// DefaultSession is joined when a join names no session.
	DefaultSession string
	// SessionTTL is how long an empty session keeps its document. Zero
	// reclaims a session as soon as its last participant leaves.
	SessionTTL time.Duration
	// SendBuffer is the per-connection outbound queue length.
	SendBuffer int
	// MaxDocumentBytes bounds a single edit. Zero uses DefaultMaxDocumentBytes.
	MaxDocumentBytes int
}

// New returns a Relay over a fresh registry with default settings.
func New(logger zerolog.Logger, metrics *cleantxtcli.Metrics) *Relay {
	return &Relay{
		Registry:         NewRegistry(),
		Logger:           logger,
		Metrics:          metrics,
		DefaultSession:   DefaultSessionID,
		SendBuffer:       DefaultSendBuffer,
		MaxDocumentBytes: DefaultMaxDocumentBytes,
	}
}

func (r *Relay) defaultSession() string {
	if r.DefaultSession == "" {
		return DefaultSessionID
	}
	return r.DefaultSession
}

func (r *Relay) sendBuffer() int {
	if r.SendBuffer <= 0 {
		return DefaultSendBuffer
	}
	return r.SendBuffer
}

func (r *Relay) maxDocumentBytes() int {
	if r.MaxDocumentBytes <= 0 {
		return DefaultMaxDocumentBytes
	}
	return r.MaxDocumentBytes
}

func (r *Relay) metricsContext() context.Context {
	return r.Logger.WithContext(context.Background())
}

// Connect admits a new connection for identity. Connections without an
// identity are rejected before they can join or edit.
func (r *Relay) Connect(identity string) (*Connection, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		r.Logger.Warn().Msg("rejected connection without identity")
		r.Metrics.Event(r.metricsContext(), cleantxtcli.ConnectRejectedMetric)
		return nil, connectRejected("identity is required")
	}

	conn := newConnection(uuid.NewString(), identity, r.sendBuffer(), time.Now())
	r.Logger.Debug().
		Str("connection_id", conn.ID).
		Str("identity", identity).
		Msg("connection established")
	return conn, nil
}

// Join places conn in the named session, leaving any session it was in. An
// empty name joins the default session. The joined acknowledgement and the
// session's current document are queued to conn ahead of any later edit.
func (r *Relay) Join(conn *Connection, sessionID, requestID string) (Snapshot, error) {
	if conn.Closed() {
		return Snapshot{}, ErrConnectionClosed
	}

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = r.defaultSession()
	}

	if current := conn.SessionID(); current != "" && current != sessionID {
		r.leave(conn)
	}

	for {
		s := r.Registry.GetOrCreate(sessionID)

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			continue
		}

		if !conn.bind(sessionID) {
			empty := len(s.participants) == 0
			s.mu.Unlock()
			if empty && r.SessionTTL <= 0 {
				r.Registry.removeIfIdle(s, 0)
			}
			return Snapshot{}, ErrConnectionClosed
		}
		rejoin := s.isMemberLocked(conn)
		s.participants[conn.ID] = conn
		s.emptySince = time.Time{}

		snapshot := s.snapshotLocked()
		conn.Send(JoinedMessage(requestID, JoinedPayload{
			Session:      sessionID,
			ConnectionID: conn.ID,
			Participants: len(s.participants),
			Revision:     snapshot.Revision,
		}))
		if !rejoin && snapshot.Revision > 0 {
			if frame, err := ReceiveChangesMessage(snapshot.Document); err == nil {
				conn.Send(frame)
			}
		}
		participants := len(s.participants)
		s.mu.Unlock()

		r.Logger.Info().
			Str("connection_id", conn.ID).
			Str("identity", conn.Identity).
			Str("session", sessionID).
			Int("participants", participants).
			Bool("rejoin", rejoin).
			Msg("joined session")
		return snapshot, nil
	}
}

// Edit replaces the document of conn's session with content and relays it to
// every other participant. The sender receives no echo. Concurrent edits are
// applied in arrival order and the last one wins: an earlier writer's content
// is overwritten without merging.
func (r *Relay) Edit(conn *Connection, content json.RawMessage) error {
	sessionID := conn.SessionID()
	if sessionID == "" {
		return r.discard(conn, "not joined", nil)
	}

	if err := ValidateDocument(content, r.maxDocumentBytes()); err != nil {
		return r.discard(conn, "malformed payload", err)
	}

	s, err := r.Registry.Lookup(sessionID)
	if err != nil {
		return r.discard(conn, "not joined", err)
	}

	frame, err := ReceiveChangesMessage(content)
	if err != nil {
		return r.discard(conn, "malformed payload", err)
	}
	doc := append(json.RawMessage(nil), content...)

	s.mu.Lock()
	if !s.isMemberLocked(conn) {
		s.mu.Unlock()
		return r.discard(conn, "not joined", nil)
	}

	previous := s.lastWriter
	s.document = doc
	s.lastWriter = conn.Identity
	s.revision++
	s.updatedAt = time.Now()
	revision := s.revision

	var recipients int
	var dropped []*Connection
	for id, p := range s.participants {
		if id == conn.ID {
			continue
		}
		if p.Send(frame) {
			recipients++
		} else {
			dropped = append(dropped, p)
		}
	}
	s.mu.Unlock()

	logger := r.Logger.With().
		Str("connection_id", conn.ID).
		Str("session", sessionID).
		Logger()
	for _, p := range dropped {
		logger.Warn().
			Str("slow_connection_id", p.ID).
			Str("slow_identity", p.Identity).
			Msg("closing participant with full send queue")
	}
	if previous != "" && previous != conn.Identity {
		logger.Debug().
			Str("overwritten", previous).
			Str("writer", conn.Identity).
			Msg("last write wins")
	}
	logger.Debug().
		Uint64("revision", revision).
		Int("recipients", recipients).
		Msg("relayed edit")

	r.Metrics.Event(r.metricsContext(), cleantxtcli.EditRelayedMetric)
	return nil
}

func (r *Relay) discard(conn *Connection, reason string, cause error) error {
	event := r.Logger.Warn().
		Str("connection_id", conn.ID).
		Str("identity", conn.Identity).
		Str("reason", reason)
	if cause != nil {
		event = event.Err(cause)
	}
	event.Msg("discarded edit")

	r.Metrics.Event(r.metricsContext(), cleantxtcli.EditDiscardedMetric, map[cleantxtcli.DimensionName]string{
		cleantxtcli.ReasonDimension: reason,
	})
	return editDiscarded(reason, cause)
}

// Disconnect removes conn from its session and closes it. Frames already
// queued to other participants are unaffected. Calling Disconnect twice is a
// no-op.
func (r *Relay) Disconnect(conn *Connection) {
	conn.Close()
	sessionID := conn.SessionID()
	r.leave(conn)

	r.Logger.Debug().
		Str("connection_id", conn.ID).
		Str("identity", conn.Identity).
		Str("session", sessionID).
		Msg("connection closed")
}

func (r *Relay) leave(conn *Connection) {
	sessionID := conn.SessionID()
	if sessionID == "" {
		return
	}

	s, err := r.Registry.Lookup(sessionID)
	if err != nil {
		conn.setSession("")
		return
	}

	s.mu.Lock()
	empty := s.removeLocked(conn, r.Registry.now())
	conn.setSession("")
	s.mu.Unlock()

	if empty && r.SessionTTL <= 0 {
		if r.Registry.removeIfIdle(s, 0) {
			r.Logger.Debug().Str("session", sessionID).Msg("reclaimed empty session")
		}
	}
}

// RunSweeper reclaims sessions that have been empty for SessionTTL, checking
// every interval until ctx is done.
func (r *Relay) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		r.Logger.Warn().Dur("interval", interval).Msg("session sweeper disabled")
		return
	}
	r.Registry.RunSweeper(ctx, interval, r.SessionTTL, func(removed, remaining int) {
		if removed > 0 {
			r.Logger.Info().
				Int("removed", removed).
				Int("remaining", remaining).
				Msg("reclaimed idle sessions")
		}
		r.Metrics.Gauge(r.metricsContext(), cleantxtcli.ActiveSessionsMetric, float64(remaining))
	})
}
