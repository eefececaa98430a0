package cleantxtledger

import (
	"context"
)

// Publisher is satisfied by publish.Publisher.
type Publisher interface {
	Send(ctx context.Context, sessionID string, payload interface{}) error
}

// Stream publishes committed checkpoints to the checkpoint stream consumed by
// the indexer.
type Stream struct {
	Publisher Publisher
}

func (s *Stream) Name() string { return "kinesis-stream" }

func (s *Stream) Write(ctx context.Context, entry Entry) error {
	return s.Publisher.Send(ctx, entry.Record.SessionID, entry)
}
