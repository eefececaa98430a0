package cleantxtrelay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	cleantxtledger "github.com/cleantxt/cleantxt-go-utils/cleantxt-ledger"
	"github.com/rs/zerolog"
	"github.com/tj/assert"
)

type mockLedger struct {
	mu      sync.Mutex
	records []cleantxtledger.Record
	err     error
	block   chan struct{}
}

func (m *mockLedger) Commit(ctx context.Context, record cleantxtledger.Record) (cleantxtledger.Receipt, error) {
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return cleantxtledger.Receipt{}, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return cleantxtledger.Receipt{}, m.err
	}
	m.records = append(m.records, record)
	return cleantxtledger.Receipt{Ledger: "mock", TransactionID: "tx"}, nil
}

func (m *mockLedger) Records() []cleantxtledger.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]cleantxtledger.Record(nil), m.records...)
}

func newTestBridge(r *Relay, ledger cleantxtledger.Ledger) *Bridge {
	return &Bridge{
		Registry: r.Registry,
		Ledger:   ledger,
		Logger:   zerolog.Nop(),
	}
}

func TestCheckpoint(t *testing.T) {
	ctx := context.Background()

	t.Run("alice and bob", func(t *testing.T) {
		r := newTestRelay()
		ledger := &mockLedger{}
		bridge := newTestBridge(r, ledger)

		alice := connect(t, r, "alice", "room1")
		bob := connect(t, r, "bob", "room1")
		assert.Nil(t, r.Edit(alice, doc("Hello")))
		assert.Nil(t, r.Edit(bob, doc("Hello, world")))

		result, err := bridge.Checkpoint(ctx, "room1", alice.Identity)
		assert.Nil(t, err)
		assert.Equal(t, "alice", result.Record.Author)
		assert.Equal(t, "bob", result.Record.LastWriter)
		assert.JSONEq(t, string(doc("Hello, world")), string(result.Record.Content))
		assert.Equal(t, "mock", result.Receipt.Ledger)
		assert.Len(t, ledger.Records(), 1)
	})

	t.Run("no edits", func(t *testing.T) {
		r := newTestRelay()
		ledger := &mockLedger{}
		bridge := newTestBridge(r, ledger)
		now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
		bridge.Now = func() time.Time { return now }

		connect(t, r, "alice", "room1")

		first, err := bridge.Checkpoint(ctx, "room1", "alice")
		assert.Nil(t, err)
		assert.JSONEq(t, string(EmptyDocument), string(first.Record.Content))
		assert.Equal(t, "alice", first.Record.Author)
		assert.Equal(t, now, first.Record.Timestamp)

		second, err := bridge.Checkpoint(ctx, "room1", "alice")
		assert.Nil(t, err)
		assert.True(t, second.Record.Timestamp.After(first.Record.Timestamp))
		assert.Equal(t, first.Record.Timestamp.Add(time.Millisecond), second.Record.Timestamp)
	})

	t.Run("unknown session", func(t *testing.T) {
		r := newTestRelay()
		bridge := newTestBridge(r, &mockLedger{})

		_, err := bridge.Checkpoint(ctx, "nope", "alice")
		assert.True(t, errors.Is(err, ErrCheckpointFailed))
		assert.True(t, errors.Is(err, ErrSessionNotFound))
	})

	t.Run("ledger rejects", func(t *testing.T) {
		r := newTestRelay()
		bridge := newTestBridge(r, &mockLedger{err: cleantxtledger.ErrUnauthorized})
		bridge.Guard = cleantxtledger.NewMemoryGuard()
		bridge.DedupeWindow = time.Minute
		connect(t, r, "alice", "room1")

		_, err := bridge.Checkpoint(ctx, "room1", "alice")
		assert.True(t, errors.Is(err, ErrCheckpointFailed))
		assert.True(t, errors.Is(err, cleantxtledger.ErrUnauthorized))
		code, message := ErrorCode(err)
		assert.Equal(t, CodeCheckpointFailed, code)
		assert.Equal(t, "author has not authorized posting", message)

		// guard released, so a retry reaches the ledger again
		_, err = bridge.Checkpoint(ctx, "room1", "alice")
		assert.True(t, errors.Is(err, cleantxtledger.ErrUnauthorized))
	})

	t.Run("duplicate", func(t *testing.T) {
		r := newTestRelay()
		ledger := &mockLedger{}
		bridge := newTestBridge(r, ledger)
		bridge.Guard = cleantxtledger.NewMemoryGuard()
		bridge.DedupeWindow = time.Minute
		alice := connect(t, r, "alice", "room1")
		assert.Nil(t, r.Edit(alice, doc("Hello")))

		_, err := bridge.Checkpoint(ctx, "room1", "alice")
		assert.Nil(t, err)

		_, err = bridge.Checkpoint(ctx, "room1", "alice")
		assert.True(t, errors.Is(err, cleantxtledger.ErrDuplicate))

		_, err = bridge.Checkpoint(ctx, "room1", "bob")
		assert.Nil(t, err)

		assert.Nil(t, r.Edit(alice, doc("Hello again")))
		_, err = bridge.Checkpoint(ctx, "room1", "alice")
		assert.Nil(t, err)
		assert.Len(t, ledger.Records(), 3)
	})

	t.Run("repeat saves without dedupe window", func(t *testing.T) {
		r := newTestRelay()
		ledger := &mockLedger{}
		bridge := newTestBridge(r, ledger)
		bridge.Guard = cleantxtledger.NewMemoryGuard()
		connect(t, r, "alice", "room1")

		first, err := bridge.Checkpoint(ctx, "room1", "alice")
		assert.Nil(t, err)
		second, err := bridge.Checkpoint(ctx, "room1", "alice")
		assert.Nil(t, err)
		assert.True(t, second.Record.Timestamp.After(first.Record.Timestamp))
		assert.Len(t, ledger.Records(), 2)
	})
}

func TestSubmit(t *testing.T) {
	t.Run("replies saved-to-chain", func(t *testing.T) {
		r := newTestRelay()
		bridge := newTestBridge(r, &mockLedger{})
		alice := connect(t, r, "alice", "room1")

		bridge.Submit(alice, alice.SessionID(), "save-1")
		bridge.Wait()

		msg := next(t, alice)
		assert.Equal(t, MsgSavedToChain, msg.Type)
		assert.Equal(t, "save-1", msg.ID)

		var result Result
		assert.Nil(t, json.Unmarshal(msg.Payload, &result))
		assert.Equal(t, "alice", result.Record.Author)
		assert.Equal(t, "room1", result.Record.SessionID)
	})

	t.Run("not joined", func(t *testing.T) {
		r := newTestRelay()
		bridge := newTestBridge(r, &mockLedger{})
		alice, _ := r.Connect("alice")

		bridge.Submit(alice, alice.SessionID(), "save-1")
		bridge.Wait()

		msg := next(t, alice)
		assert.Equal(t, MsgError, msg.Type)

		var payload ErrorPayload
		assert.Nil(t, json.Unmarshal(msg.Payload, &payload))
		assert.Equal(t, CodeCheckpointFailed, payload.Code)
	})

	t.Run("survives disconnect", func(t *testing.T) {
		r := newTestRelay()
		r.SessionTTL = time.Hour
		ledger := &mockLedger{block: make(chan struct{})}
		bridge := newTestBridge(r, ledger)
		alice := connect(t, r, "alice", "room1")
		assert.Nil(t, r.Edit(alice, doc("Hello")))

		bridge.Submit(alice, alice.SessionID(), "save-1")
		r.Disconnect(alice)
		close(ledger.block)
		bridge.Wait()

		records := ledger.Records()
		assert.Len(t, records, 1)
		assert.JSONEq(t, string(doc("Hello")), string(records[0].Content))
	})

	t.Run("survives session reclaim", func(t *testing.T) {
		r := newTestRelay()
		assert.Equal(t, time.Duration(0), r.SessionTTL)
		ledger := &mockLedger{block: make(chan struct{})}
		bridge := newTestBridge(r, ledger)
		alice := connect(t, r, "alice", "room1")
		assert.Nil(t, r.Edit(alice, doc("Hello")))

		bridge.Submit(alice, alice.SessionID(), "save-1")
		r.Disconnect(alice)
		_, err := r.Registry.Lookup("room1")
		assert.True(t, errors.Is(err, ErrSessionNotFound))

		close(ledger.block)
		bridge.Wait()

		records := ledger.Records()
		assert.Len(t, records, 1)
		assert.Equal(t, "alice", records[0].Author)
		assert.Equal(t, "alice", records[0].LastWriter)
		assert.JSONEq(t, string(doc("Hello")), string(records[0].Content))
	})

	t.Run("unknown session", func(t *testing.T) {
		r := newTestRelay()
		ledger := &mockLedger{}
		bridge := newTestBridge(r, ledger)
		alice, _ := r.Connect("alice")

		bridge.Submit(alice, "nope", "save-1")
		bridge.Wait()

		msg := next(t, alice)
		assert.Equal(t, MsgError, msg.Type)
		assert.Len(t, ledger.Records(), 0)
	})
}
