package cleantxtrelay

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	cleantxtrest "github.com/cleantxt/cleantxt-go-utils/cleantxt-rest"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	DefaultWriteWait  = 10 * time.Second
	DefaultPongWait   = 60 * time.Second
	DefaultPingPeriod = (DefaultPongWait * 9) / 10

	envelopeSlack = 4096
)

// Handler serves the relay over websockets. Each connection gets a read pump
// on the serving goroutine and a write pump of its own; only the write pump
// writes to the socket.
type Handler struct {
	Relay    *Relay
	Bridge   *Bridge
	Logger   zerolog.Logger
	Upgrader websocket.Upgrader

	WriteWait  time.Duration
	PongWait   time.Duration
	PingPeriod time.Duration
}

// OriginChecker returns a websocket origin check for allowedOrigins. "*" or an
// empty list allows every origin.
func OriginChecker(allowedOrigins ...string) func(*http.Request) bool {
	allowed := map[string]struct{}{}
	for _, origin := range allowedOrigins {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[strings.TrimSuffix(origin, "/")] = struct{}{}
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}

	return func(req *http.Request) bool {
		origin := req.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if u, err := url.Parse(origin); err == nil {
			origin = u.Scheme + "://" + u.Host
		}
		_, ok := allowed[origin]
		return ok
	}
}

func (h *Handler) writeWait() time.Duration {
	if h.WriteWait <= 0 {
		return DefaultWriteWait
	}
	return h.WriteWait
}

func (h *Handler) pongWait() time.Duration {
	if h.PongWait <= 0 {
		return DefaultPongWait
	}
	return h.PongWait
}

func (h *Handler) pingPeriod() time.Duration {
	if h.PingPeriod <= 0 {
		return (h.pongWait() * 9) / 10
	}
	return h.PingPeriod
}

// ServeHTTP admits the caller named by the identity (or legacy user) query
// parameter and upgrades the request. Callers without an identity get a 401
// and are never upgraded.
func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	query := req.URL.Query()
	identity := query.Get("identity")
	if identity == "" {
		identity = query.Get("user")
	}

	conn, err := h.Relay.Connect(identity)
	if err != nil {
		code, message := ErrorCode(err)
		cleantxtrest.WriteError(w, http.StatusUnauthorized, code, message)
		return
	}

	ws, err := h.Upgrader.Upgrade(w, req, nil)
	if err != nil {
		h.Logger.Warn().Err(err).Str("identity", conn.Identity).Msg("websocket upgrade failed")
		h.Relay.Disconnect(conn)
		return
	}

	logger := h.Logger.With().
		Str("connection_id", conn.ID).
		Str("identity", conn.Identity).
		Logger()
	logger.Info().Str("remote_addr", req.RemoteAddr).Msg("connection established")

	go h.writePump(ws, conn, logger)
	h.readPump(ws, conn, logger)
}

func (h *Handler) readPump(ws *websocket.Conn, conn *Connection, logger zerolog.Logger) {
	defer func() {
		h.Relay.Disconnect(conn)
		ws.Close()
		logger.Info().Msg("connection closed")
	}()

	ws.SetReadLimit(int64(h.Relay.maxDocumentBytes() + envelopeSlack))
	ws.SetReadDeadline(time.Now().Add(h.pongWait()))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.pongWait()))
	})

	for {
		_, body, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logger.Warn().Err(err).Msg("unexpected close")
			}
			return
		}
		h.dispatch(conn, logger, body)
	}
}

func (h *Handler) writePump(ws *websocket.Conn, conn *Connection, logger zerolog.Logger) {
	ticker := time.NewTicker(h.pingPeriod())
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case frame := <-conn.Outbound():
			ws.SetWriteDeadline(time.Now().Add(h.writeWait()))
			if err := ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				logger.Debug().Err(err).Msg("failed to write frame")
				conn.Close()
				return
			}

		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(h.writeWait()))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}

		case <-conn.Done():
			ws.SetWriteDeadline(time.Now().Add(h.writeWait()))
			ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// dispatch handles a single frame. A panic is confined to the frame that
// caused it.
func (h *Handler) dispatch(conn *Connection, logger zerolog.Logger, body []byte) {
	defer func() {
		if v := recover(); v != nil {
			logger.Error().Interface("panic", v).Msg("recovered from panic handling frame")
			conn.Send(ErrorMessage("", CodeInternal, "internal error"))
		}
	}()

	msg, err := ParseMessage(body)
	if err != nil {
		logger.Warn().Err(err).Msg("invalid message")
		conn.Send(ErrorMessageFor("", err))
		return
	}

	switch msg.Type {
	case MsgJoin:
		var payload JoinPayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				conn.Send(ErrorMessageFor(msg.ID, invalidMessage("malformed join payload", err)))
				return
			}
		}
		if payload.Identity != "" && payload.Identity != conn.Identity {
			logger.Warn().Str("claimed", payload.Identity).Msg("ignoring identity claimed in join")
		}
		if _, err := h.Relay.Join(conn, payload.Session, msg.ID); err != nil {
			conn.Send(ErrorMessageFor(msg.ID, err))
		}

	case MsgSendChanges:
		var payload ChangesPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			conn.Send(ErrorMessageFor(msg.ID, invalidMessage("malformed send-changes payload", err)))
			return
		}
		if err := h.Relay.Edit(conn, payload.Content); err != nil {
			conn.Send(ErrorMessageFor(msg.ID, err))
		}

	case MsgSaveToChain, MsgSaveToHive:
		if h.Bridge == nil {
			conn.Send(ErrorMessage(msg.ID, CodeCheckpointFailed, "checkpoints are disabled"))
			return
		}
		h.Bridge.Submit(conn, conn.SessionID(), msg.ID)

	case MsgPing:
		conn.Send(PongMessage(msg.ID))

	default:
		logger.Warn().Str("type", msg.Type).Msg("unhandled message type")
		conn.Send(ErrorMessage(msg.ID, CodeInvalidMessage, "unsupported message type"))
	}
}
