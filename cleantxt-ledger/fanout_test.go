package cleantxtledger

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/tj/assert"
)

type mockSink struct {
	name string
	err  error

	mu      sync.Mutex
	entries []Entry
}

func (m *mockSink) Name() string { return m.name }

func (m *mockSink) Write(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return m.err
}

type ledgerFunc func(ctx context.Context, record Record) (Receipt, error)

func (fn ledgerFunc) Commit(ctx context.Context, record Record) (Receipt, error) {
	return fn(ctx, record)
}

func TestFanout(t *testing.T) {
	ctx := context.Background()

	t.Run("writes every sink", func(t *testing.T) {
		ok := &mockSink{name: "ok"}
		broken := &mockSink{name: "broken", err: errors.New("boom")}
		fanout := &Fanout{
			Primary:     DryRun{Logger: zerolog.Nop()},
			Sinks:       []Sink{ok, broken},
			Logger:      zerolog.Nop(),
			Concurrency: 1,
		}

		receipt, err := fanout.Commit(ctx, testRecord())
		assert.Nil(t, err)
		assert.Equal(t, "dry-run", receipt.Ledger)
		assert.Len(t, ok.entries, 1)
		assert.Len(t, broken.entries, 1)
		assert.Equal(t, receipt, ok.entries[0].Receipt)
		assert.Equal(t, "bob", ok.entries[0].Record.Author)
	})

	t.Run("primary failure skips sinks", func(t *testing.T) {
		sink := &mockSink{name: "ok"}
		fanout := &Fanout{
			Primary: ledgerFunc(func(context.Context, Record) (Receipt, error) {
				return Receipt{}, ErrRejected
			}),
			Sinks:  []Sink{sink},
			Logger: zerolog.Nop(),
		}

		_, err := fanout.Commit(ctx, testRecord())
		assert.True(t, errors.Is(err, ErrRejected))
		assert.Len(t, sink.entries, 0)
	})
}

func TestDryRun(t *testing.T) {
	receipt, err := DryRun{Logger: zerolog.Nop()}.Commit(context.Background(), testRecord())
	assert.Nil(t, err)
	assert.Equal(t, "dry-run", receipt.Ledger)
	assert.Equal(t, "dry-"+testRecord().DedupeKey()[:16], receipt.TransactionID)
}
