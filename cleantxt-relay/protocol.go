package cleantxtrelay

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Message types carried in the "type" field of every frame.
const (
	MsgJoin           = "join"
	MsgJoined         = "joined"
	MsgSendChanges    = "send-changes"
	MsgReceiveChanges = "receive-changes"
	MsgSaveToChain    = "save-to-chain"
	MsgSavedToChain   = "saved-to-chain"
	MsgError          = "error"
	MsgPing           = "ping"
	MsgPong           = "pong"

	// MsgSaveToHive is the name older editor builds use for MsgSaveToChain.
	MsgSaveToHive = "save-to-hive"
)

// Message is a single frame exchanged with a participant.
type Message struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinPayload is the payload of a "join" frame. A bare string is read as the
// identity and joins the default session.
type JoinPayload struct {
	Session  string `json:"session"`
	Identity string `json:"identity,omitempty"`
}

func (p *JoinPayload) UnmarshalJSON(data []byte) error {
	var identity string
	if err := json.Unmarshal(data, &identity); err == nil {
		p.Identity = identity
		return nil
	}

	type plain JoinPayload
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = JoinPayload(v)
	return nil
}

// ChangesPayload is the payload of a "send-changes" frame. Identity and User
// are informational; the relay attributes edits to the connection identity.
type ChangesPayload struct {
	Identity string          `json:"identity,omitempty"`
	User     string          `json:"user,omitempty"`
	Content  json.RawMessage `json:"content"`
}

// SavePayload is the payload of a "save-to-chain" frame. Content is ignored;
// the checkpoint always records the session's relay-held document.
type SavePayload struct {
	Username string          `json:"username,omitempty"`
	Content  json.RawMessage `json:"content,omitempty"`
}

// JoinedPayload acknowledges a join.
type JoinedPayload struct {
	Session      string `json:"session"`
	ConnectionID string `json:"connectionId"`
	Participants int    `json:"participants"`
	Revision     uint64 `json:"revision"`
}

// ErrorPayload describes a rejected request.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ParseMessage parses a frame received from a participant.
func ParseMessage(body []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, invalidMessage("frame is not valid json", err)
	}
	msg.Type = strings.TrimSpace(msg.Type)
	if msg.Type == "" {
		return nil, invalidMessage("missing message type", nil)
	}
	return &msg, nil
}

// NewMessage encodes a frame of the given type.
func NewMessage(id, msgType string, payload interface{}) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshalling %v payload: %w", msgType, err)
		}
		raw = b
	}

	b, err := json.Marshal(Message{
		ID:      id,
		Type:    msgType,
		Payload: raw,
	})
	if err != nil {
		return nil, fmt.Errorf("marshalling %v message: %w", msgType, err)
	}
	return b, nil
}

// ReceiveChangesMessage returns the frame relayed to the other participants of
// a session. doc must already be valid json.
func ReceiveChangesMessage(doc json.RawMessage) ([]byte, error) {
	return NewMessage("", MsgReceiveChanges, doc)
}

// JoinedMessage returns the acknowledgement for a join.
func JoinedMessage(id string, payload JoinedPayload) []byte {
	b, _ := NewMessage(id, MsgJoined, payload)
	return b
}

// PongMessage returns a pong for the given ping id.
func PongMessage(id string) []byte {
	b, _ := NewMessage(id, MsgPong, nil)
	return b
}

// ErrorMessage returns an "error" frame.
func ErrorMessage(id, code, message string) []byte {
	b, _ := NewMessage(id, MsgError, ErrorPayload{
		Code:    code,
		Message: message,
	})
	return b
}

// ErrorMessageFor returns the "error" frame describing err.
func ErrorMessageFor(id string, err error) []byte {
	code, message := ErrorCode(err)
	return ErrorMessage(id, code, message)
}
