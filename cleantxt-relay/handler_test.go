package cleantxtrelay

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	cleantxtledger "github.com/cleantxt/cleantxt-go-utils/cleantxt-ledger"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/tj/assert"
)

func newTestServer(t *testing.T) (*httptest.Server, *Relay) {
	t.Helper()

	r := newTestRelay()
	handler := &Handler{
		Relay: r,
		Bridge: &Bridge{
			Registry: r.Registry,
			Ledger:   cleantxtledger.DryRun{Logger: zerolog.Nop()},
			Logger:   zerolog.Nop(),
		},
		Logger:   zerolog.Nop(),
		Upgrader: websocket.Upgrader{CheckOrigin: OriginChecker("*")},
	}

	server := httptest.NewServer(Router(zerolog.Nop(), handler))
	t.Cleanup(func() {
		server.Close()
		handler.Bridge.Wait()
	})
	return server, r
}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?" + query
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	assert.Nil(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, frame string) {
	t.Helper()
	assert.Nil(t, ws.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func receive(t *testing.T, ws *websocket.Conn) Message {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, body, err := ws.ReadMessage()
	assert.Nil(t, err)

	var msg Message
	assert.Nil(t, json.Unmarshal(body, &msg))
	return msg
}

func TestHandler(t *testing.T) {
	server, r := newTestServer(t)

	t.Run("rejects missing identity", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/ws")
		assert.Nil(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		var body struct {
			Error ErrorPayload `json:"error"`
		}
		assert.Nil(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, CodeConnectRejected, body.Error.Code)

		url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
		_, resp, err = websocket.DefaultDialer.Dial(url, nil)
		assert.NotNil(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("alice and bob", func(t *testing.T) {
		alice := dial(t, server, "identity=alice")
		bob := dial(t, server, "user=bob")

		send(t, alice, `{"id":"1","type":"join","payload":{"session":"room1"}}`)
		assert.Equal(t, MsgJoined, receive(t, alice).Type)
		send(t, bob, `{"id":"1","type":"join","payload":{"session":"room1"}}`)
		assert.Equal(t, MsgJoined, receive(t, bob).Type)

		send(t, alice, `{"type":"send-changes","payload":{"identity":"alice","content":`+string(doc("Hello"))+`}}`)
		msg := receive(t, bob)
		assert.Equal(t, MsgReceiveChanges, msg.Type)
		assert.JSONEq(t, string(doc("Hello")), string(msg.Payload))

		send(t, bob, `{"type":"send-changes","payload":{"identity":"bob","content":`+string(doc("Hello, world"))+`}}`)
		msg = receive(t, alice)
		assert.JSONEq(t, string(doc("Hello, world")), string(msg.Payload))

		send(t, bob, `{"id":"save","type":"save-to-chain","payload":{"identity":"bob"}}`)
		msg = receive(t, bob)
		assert.Equal(t, MsgSavedToChain, msg.Type)
		assert.Equal(t, "save", msg.ID)

		var result Result
		assert.Nil(t, json.Unmarshal(msg.Payload, &result))
		assert.Equal(t, "bob", result.Record.Author)
		assert.Equal(t, "dry-run", result.Receipt.Ledger)
		assert.JSONEq(t, string(doc("Hello, world")), string(result.Record.Content))
	})

	t.Run("reports errors to sender", func(t *testing.T) {
		carol := dial(t, server, "identity=carol")

		send(t, carol, `{"id":"2","type":"send-changes","payload":{"content":{"type":"doc"}}}`)
		msg := receive(t, carol)
		assert.Equal(t, MsgError, msg.Type)
		assert.Equal(t, "2", msg.ID)

		var payload ErrorPayload
		assert.Nil(t, json.Unmarshal(msg.Payload, &payload))
		assert.Equal(t, CodeEditDiscarded, payload.Code)

		send(t, carol, `not json`)
		msg = receive(t, carol)
		assert.Nil(t, json.Unmarshal(msg.Payload, &payload))
		assert.Equal(t, CodeInvalidMessage, payload.Code)

		send(t, carol, `{"id":"3","type":"ping"}`)
		msg = receive(t, carol)
		assert.Equal(t, MsgPong, msg.Type)
		assert.Equal(t, "3", msg.ID)
	})

	t.Run("operator endpoints", func(t *testing.T) {
		resp, err := http.Get(server.URL + "/healthz")
		assert.Nil(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, err = http.Get(server.URL + "/sessions")
		assert.Nil(t, err)
		defer resp.Body.Close()

		var body struct {
			Sessions []SessionInfo `json:"sessions"`
		}
		assert.Nil(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, len(r.Registry.Sessions()), len(body.Sessions))
	})
}

func TestOriginChecker(t *testing.T) {
	check := OriginChecker("https://cleantxt.app")

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://cleantxt.app")
	assert.True(t, check(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(req))

	assert.True(t, OriginChecker()(req))
	assert.True(t, OriginChecker("*")(req))
}
