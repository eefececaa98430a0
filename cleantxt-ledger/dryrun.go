package cleantxtledger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DryRun logs records instead of committing them.
type DryRun struct {
	Logger zerolog.Logger
}

func (d DryRun) Commit(_ context.Context, record Record) (Receipt, error) {
	key := record.DedupeKey()
	d.Logger.Info().
		Str("session", record.SessionID).
		Str("author", record.Author).
		Time("timestamp", record.Timestamp).
		Uint64("revision", record.Revision).
		Int("bytes", len(record.Content)).
		Msg("dry run: skipping ledger commit")

	return Receipt{
		Ledger:        "dry-run",
		TransactionID: "dry-" + key[:16],
		CommittedAt:   time.Now().UTC(),
	}, nil
}
