package cleantxtrelay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	cleantxtcli "github.com/cleantxt/cleantxt-go-utils/cleantxt-cli"
	cleantxtledger "github.com/cleantxt/cleantxt-go-utils/cleantxt-ledger"
	"github.com/rs/zerolog"
)

const DefaultCheckpointTimeout = 30 * time.Second

// Result is the outcome of a successful checkpoint.
type Result struct {
	Record  cleantxtledger.Record  `json:"record"`
	Receipt cleantxtledger.Receipt `json:"receipt"`
}

// Bridge checkpoints session documents to a ledger. A checkpoint reads the
// session under its lock and calls the ledger after releasing it, so edits
// keep flowing while a commit is in progress.
type Bridge struct {
	Registry *Registry
	Ledger   cleantxtledger.Ledger
	// Guard refuses repeat checkpoints of identical content by the same
	// author within DedupeWindow. It is only consulted when both are set.
	Guard        cleantxtledger.Guard
	DedupeWindow time.Duration
	Timeout      time.Duration
	Logger       zerolog.Logger
	Metrics      *cleantxtcli.Metrics

	// Now is the checkpoint clock; nil uses time.Now.
	Now func() time.Time

	mu   sync.Mutex
	last time.Time
	wg   sync.WaitGroup
}

// stamp returns a millisecond timestamp strictly after every earlier stamp.
func (b *Bridge) stamp() time.Time {
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	ts := now().UTC().Truncate(time.Millisecond)
	if !ts.After(b.last) {
		ts = b.last.Add(time.Millisecond)
	}
	b.last = ts
	return ts
}

func (b *Bridge) timeout() time.Duration {
	if b.Timeout <= 0 {
		return DefaultCheckpointTimeout
	}
	return b.Timeout
}

// Checkpoint commits the current document of sessionID, attributed to author.
// A session nobody has edited checkpoints EmptyDocument. There are no
// retries; failures unwrap to ErrCheckpointFailed.
func (b *Bridge) Checkpoint(ctx context.Context, sessionID, author string) (Result, error) {
	record, err := b.prepare(ctx, sessionID, author)
	if err != nil {
		return Result{}, err
	}
	return b.commit(ctx, record)
}

func (b *Bridge) logger(sessionID, author string) zerolog.Logger {
	return b.Logger.With().
		Str("session", sessionID).
		Str("author", author).
		Logger()
}

func (b *Bridge) fail(ctx context.Context, message string, cause error) error {
	zerolog.Ctx(ctx).Error().Err(cause).Str("reason", message).Msg("checkpoint failed")
	b.Metrics.Event(ctx, cleantxtcli.CheckpointFailedMetric, map[cleantxtcli.DimensionName]string{
		cleantxtcli.ReasonDimension: message,
	})
	return checkpointFailed(message, cause)
}

// prepare snapshots the session and stamps the record. Once it returns, the
// record no longer depends on the session still being registered.
func (b *Bridge) prepare(ctx context.Context, sessionID, author string) (cleantxtledger.Record, error) {
	author = strings.TrimSpace(author)
	ctx = b.logger(sessionID, author).WithContext(ctx)

	if author == "" {
		return cleantxtledger.Record{}, b.fail(ctx, "author is required", nil)
	}

	s, err := b.Registry.Lookup(sessionID)
	if err != nil {
		return cleantxtledger.Record{}, b.fail(ctx, "session not found", err)
	}

	snapshot := s.Snapshot()
	return cleantxtledger.Record{
		SessionID:  sessionID,
		Author:     author,
		Content:    snapshot.Document,
		Timestamp:  b.stamp(),
		Revision:   snapshot.Revision,
		LastWriter: snapshot.LastWriter,
	}, nil
}

func (b *Bridge) commit(ctx context.Context, record cleantxtledger.Record) (Result, error) {
	started := time.Now()
	logger := b.logger(record.SessionID, record.Author)
	ctx = logger.WithContext(ctx)

	var key string
	if b.Guard != nil && b.DedupeWindow > 0 {
		key = record.DedupeKey()
		ok, err := b.Guard.Acquire(ctx, key, b.DedupeWindow)
		if err != nil {
			return Result{}, b.fail(ctx, "checkpoint guard unavailable", err)
		}
		if !ok {
			return Result{}, b.fail(ctx, "duplicate checkpoint", cleantxtledger.ErrDuplicate)
		}
	}

	receipt, err := b.Ledger.Commit(ctx, record)
	if err != nil {
		if key != "" {
			if err := b.Guard.Release(context.WithoutCancel(ctx), key); err != nil {
				logger.Warn().Err(err).Msg("failed to release checkpoint guard")
			}
		}
		message := "ledger rejected checkpoint"
		switch {
		case errors.Is(err, cleantxtledger.ErrUnauthorized):
			message = "author has not authorized posting"
		case errors.Is(err, context.DeadlineExceeded):
			message = "ledger timed out"
		}
		return Result{}, b.fail(ctx, message, err)
	}

	b.Metrics.Event(ctx, cleantxtcli.CheckpointSavedMetric)
	b.Metrics.Timing(ctx, cleantxtcli.CheckpointLatencyMetric, started)
	logger.Info().
		Time("timestamp", record.Timestamp).
		Uint64("revision", record.Revision).
		Str("ledger", receipt.Ledger).
		Str("transaction_id", receipt.TransactionID).
		Msg("checkpoint committed")

	return Result{Record: record, Receipt: receipt}, nil
}

// Submit snapshots sessionID for conn, then commits it in the background and
// replies to conn with saved-to-chain or an error frame. The commit is not
// tied to the connection or the session and completes even if conn
// disconnects and the session is reclaimed.
func (b *Bridge) Submit(conn *Connection, sessionID, requestID string) {
	if sessionID == "" {
		conn.Send(ErrorMessage(requestID, CodeCheckpointFailed, "not joined"))
		return
	}

	record, err := b.prepare(context.Background(), sessionID, conn.Identity)
	if err != nil {
		conn.Send(ErrorMessageFor(requestID, err))
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer func() {
			if v := recover(); v != nil {
				b.Logger.Error().
					Interface("panic", v).
					Str("session", sessionID).
					Msg("recovered from checkpoint panic")
				conn.Send(ErrorMessage(requestID, CodeCheckpointFailed, "internal error"))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), b.timeout())
		defer cancel()

		result, err := b.commit(ctx, record)
		if err != nil {
			conn.Send(ErrorMessageFor(requestID, err))
			return
		}

		frame, err := NewMessage(requestID, MsgSavedToChain, result)
		if err != nil {
			b.Logger.Error().Err(err).Msg("failed to encode checkpoint reply")
			return
		}
		conn.Send(frame)
	}()
}

// Wait blocks until every submitted checkpoint has finished.
func (b *Bridge) Wait() {
	b.wg.Wait()
}
