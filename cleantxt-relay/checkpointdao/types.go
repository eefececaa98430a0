package checkpointdao

import (
	"time"

	cleantxtledger "github.com/cleantxt/cleantxt-go-utils/cleantxt-ledger"
)

const previewLength = 280

// Checkpoint is the discovery index row of one committed checkpoint.
// Timestamp is unix milliseconds; it is strictly increasing per relay.
type Checkpoint struct {
	SessionID     string `dynamodbav:"pk" ddb:"hash"`
	Timestamp     int64  `dynamodbav:"ts" ddb:"range"`
	Author        string `dynamodbav:"author" ddb:"gsi_hash:AuthorIndex"`
	Content       string `dynamodbav:"content"` // JSON-encoded document
	Preview       string `dynamodbav:"preview,omitempty"`
	Revision      int64  `dynamodbav:"revision"`
	LastWriter    string `dynamodbav:"last_writer,omitempty"`
	Ledger        string `dynamodbav:"ledger"`
	TransactionID string `dynamodbav:"transaction_id,omitempty"`
	BlockNum      int64  `dynamodbav:"block_num,omitempty"`
	CommittedAt   int64  `dynamodbav:"committed_at"`
	TTL           int64  `dynamodbav:"ttl,omitempty"`
}

// Time returns the checkpoint timestamp.
func (c Checkpoint) Time() time.Time {
	return time.UnixMilli(c.Timestamp).UTC()
}

// FromEntry builds the index row for a committed checkpoint. preview is the
// plain text of the document.
func FromEntry(entry cleantxtledger.Entry, preview string) Checkpoint {
	if r := []rune(preview); len(r) > previewLength {
		preview = string(r[:previewLength])
	}

	return Checkpoint{
		SessionID:     entry.Record.SessionID,
		Timestamp:     entry.Record.Timestamp.UnixMilli(),
		Author:        entry.Record.Author,
		Content:       string(entry.Record.Content),
		Preview:       preview,
		Revision:      int64(entry.Record.Revision),
		LastWriter:    entry.Record.LastWriter,
		Ledger:        entry.Receipt.Ledger,
		TransactionID: entry.Receipt.TransactionID,
		BlockNum:      entry.Receipt.BlockNum,
		CommittedAt:   entry.Receipt.CommittedAt.Unix(),
	}
}
