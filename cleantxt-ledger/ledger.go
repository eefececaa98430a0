// Package cleantxtledger commits session checkpoints to an external ledger
// and copies committed checkpoints to write-behind sinks.
package cleantxtledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrRejected     = errors.New("ledger rejected record")
	ErrUnauthorized = errors.New("no posting authorization for author")
	ErrDuplicate    = errors.New("duplicate checkpoint")
)

// Record is one checkpoint of a session's document.
type Record struct {
	SessionID  string          `json:"sessionId"`
	Author     string          `json:"author"`
	Content    json.RawMessage `json:"content"`
	Timestamp  time.Time       `json:"timestamp"`
	Revision   uint64          `json:"revision"`
	LastWriter string          `json:"lastWriter,omitempty"`
}

// DedupeKey identifies the (session, author, content) triple of the record.
func (r Record) DedupeKey() string {
	h := sha256.New()
	h.Write([]byte(r.SessionID))
	h.Write([]byte{0})
	h.Write([]byte(r.Author))
	h.Write([]byte{0})
	h.Write(r.Content)
	return hex.EncodeToString(h.Sum(nil))
}

// Receipt is the ledger's acknowledgement of a committed record.
type Receipt struct {
	Ledger        string    `json:"ledger"`
	TransactionID string    `json:"transactionId,omitempty"`
	BlockNum      int64     `json:"blockNum,omitempty"`
	CommittedAt   time.Time `json:"committedAt"`
}

// Entry pairs a record with its receipt.
type Entry struct {
	Record  Record  `json:"record"`
	Receipt Receipt `json:"receipt"`
}

type Ledger interface {
	Commit(ctx context.Context, record Record) (Receipt, error)
}

// Sink receives committed entries.
type Sink interface {
	Name() string
	Write(ctx context.Context, entry Entry) error
}
