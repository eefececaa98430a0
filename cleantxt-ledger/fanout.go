package cleantxtledger

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Fanout commits to Primary and then writes the committed entry to every sink.
// Sink failures are logged and never fail the commit.
type Fanout struct {
	Primary Ledger
	Sinks   []Sink
	Logger  zerolog.Logger
	// Concurrency bounds concurrent sink writes; zero writes all at once.
	Concurrency int
}

func (f *Fanout) Commit(ctx context.Context, record Record) (Receipt, error) {
	receipt, err := f.Primary.Commit(ctx, record)
	if err != nil {
		return Receipt{}, err
	}

	f.write(ctx, Entry{Record: record, Receipt: receipt})
	return receipt, nil
}

func (f *Fanout) write(ctx context.Context, entry Entry) {
	var group errgroup.Group
	if f.Concurrency > 0 {
		group.SetLimit(f.Concurrency)
	}

	for _, sink := range f.Sinks {
		group.Go(func() error {
			if err := sink.Write(ctx, entry); err != nil {
				f.Logger.Error().
					Err(err).
					Str("sink", sink.Name()).
					Str("session", entry.Record.SessionID).
					Str("transaction_id", entry.Receipt.TransactionID).
					Msg("failed to write checkpoint to sink")
			}
			return nil
		})
	}
	_ = group.Wait()
}
