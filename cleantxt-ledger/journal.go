package cleantxtledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS checkpoint_journal (
	session_id     TEXT        NOT NULL,
	checkpoint_ts  TIMESTAMPTZ NOT NULL,
	author         TEXT        NOT NULL,
	revision       BIGINT      NOT NULL,
	last_writer    TEXT        NOT NULL DEFAULT '',
	content        JSONB       NOT NULL,
	ledger         TEXT        NOT NULL,
	transaction_id TEXT        NOT NULL DEFAULT '',
	block_num      BIGINT      NOT NULL DEFAULT 0,
	committed_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (session_id, checkpoint_ts, author)
);
CREATE INDEX IF NOT EXISTS checkpoint_journal_author_idx ON checkpoint_journal (author, checkpoint_ts DESC);
`

const insertJournal = `
INSERT INTO checkpoint_journal (
	session_id, checkpoint_ts, author, revision, last_writer, content,
	ledger, transaction_id, block_num, committed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (session_id, checkpoint_ts, author) DO NOTHING`

const pruneJournal = `DELETE FROM checkpoint_journal WHERE committed_at < $1`

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Journal appends committed checkpoints to a Postgres table.
type Journal struct {
	db   execer
	pool *pgxpool.Pool
}

// OpenJournal connects to databaseURL and verifies the connection.
func OpenJournal(ctx context.Context, databaseURL string) (*Journal, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to create journal pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to connect to journal database: %w", err)
	}

	return &Journal{db: pool, pool: pool}, nil
}

// Migrate creates the journal table if it does not exist.
func (j *Journal) Migrate(ctx context.Context) error {
	if _, err := j.db.Exec(ctx, journalSchema); err != nil {
		return fmt.Errorf("failed to migrate checkpoint journal: %w", err)
	}
	return nil
}

func (j *Journal) Name() string { return "postgres-journal" }

func (j *Journal) Write(ctx context.Context, entry Entry) error {
	r := entry.Record
	tag, err := j.db.Exec(ctx, insertJournal,
		r.SessionID,
		r.Timestamp,
		r.Author,
		int64(r.Revision),
		r.LastWriter,
		string(r.Content),
		entry.Receipt.Ledger,
		entry.Receipt.TransactionID,
		entry.Receipt.BlockNum,
		entry.Receipt.CommittedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to journal checkpoint for session %v: %w", r.SessionID, err)
	}
	if tag.RowsAffected() == 0 {
		zerolog.Ctx(ctx).Warn().
			Str("session", r.SessionID).
			Str("author", r.Author).
			Time("timestamp", r.Timestamp).
			Str("transaction_id", entry.Receipt.TransactionID).
			Msg("checkpoint already journaled; row kept as is")
	}
	return nil
}

// Prune deletes journal rows committed before cutoff and reports how many
// were removed.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := j.db.Exec(ctx, pruneJournal, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune checkpoint journal before %v: %w", cutoff.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

func (j *Journal) Close() {
	if j.pool != nil {
		j.pool.Close()
	}
}
