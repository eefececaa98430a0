package main

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
	cleantxtledger "github.com/cleantxt/cleantxt-go-utils/cleantxt-ledger"
	cleantxtrelay "github.com/cleantxt/cleantxt-go-utils/cleantxt-relay"
	"github.com/cleantxt/cleantxt-go-utils/cleantxt-relay/checkpointdao"
	"github.com/cleantxt/cleantxt-go-utils/cleantxt-relay/publish"
	"github.com/rs/zerolog"
)

type checkpointWriter interface {
	Put(ctx context.Context, c checkpointdao.Checkpoint) error
}

type indexer struct {
	checkpoints checkpointWriter
	dry         bool
}

// handleRecord indexes one checkpoint from the stream. Undecodable records
// are logged and skipped; write failures are returned so the batch is retried.
func (i *indexer) handleRecord(ctx context.Context, record events.KinesisEventRecord) error {
	logger := zerolog.Ctx(ctx).With().
		Str("sequence_number", record.Kinesis.SequenceNumber).
		Logger()

	env, err := publish.Decode(record.Kinesis.Data)
	if err != nil {
		logger.Warn().Err(err).Msg("skipping undecodable record")
		return nil
	}

	var entry cleantxtledger.Entry
	if err := json.Unmarshal(env.Payload, &entry); err != nil {
		logger.Warn().Err(err).Str("session", env.SessionID).Msg("skipping undecodable checkpoint")
		return nil
	}

	checkpoint := checkpointdao.FromEntry(entry, cleantxtrelay.DocumentText(entry.Record.Content))
	logger = logger.With().
		Str("session", checkpoint.SessionID).
		Int64("timestamp", checkpoint.Timestamp).
		Str("author", checkpoint.Author).
		Logger()

	if i.dry {
		logger.Info().Msg("dry run: not indexing checkpoint")
		return nil
	}

	if err := i.checkpoints.Put(ctx, checkpoint); err != nil {
		logger.Error().Err(err).Msg("failed to index checkpoint")
		return err
	}
	logger.Info().Msg("indexed checkpoint")
	return nil
}
