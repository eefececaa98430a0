// Package cleantxtkinesis runs a record callback over a Kinesis stream, either
// as a Lambda event source or, in console mode, as a long-running consumer.
package cleantxtkinesis

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	cleantxtcli "github.com/cleantxt/cleantxt-go-utils/cleantxt-cli"
	consumer "github.com/harlow/kinesis-consumer"
	"github.com/rs/zerolog"
)

type HandleMessageCallback func(ctx context.Context, record events.KinesisEventRecord) error

type Handler struct {
	Service cleantxtcli.Service
	Logger  zerolog.Logger

	// DefaultStreamName is read when --stream-name is not set.
	DefaultStreamName string

	handleMessage HandleMessageCallback
}

func NewGenericHandler(service cleantxtcli.Service, handleMessage HandleMessageCallback) *Handler {
	return &Handler{
		Service:       service,
		Logger:        cleantxtcli.Logger(service),
		handleMessage: handleMessage,
	}
}

// Start serves Lambda events, or consumes the stream directly in console
// mode.
func (h *Handler) Start() error {
	if !cleantxtcli.CommonOpts.Console {
		lambda.Start(h.HandleKinesisEvent)
		return nil
	}
	return h.handleRealtime(h.Logger.WithContext(context.Background()))
}

type KinesisSequenceNumberKeyType string

var KinesisSequenceNumberKey = KinesisSequenceNumberKeyType("kinesisSequenceNumber")

// HandleKinesisEvent handles a batch in order and stops at the first failure
// so Lambda retries the batch.
func (h *Handler) HandleKinesisEvent(ctx context.Context, event events.KinesisEvent) error {
	ctx = h.Logger.WithContext(ctx)
	for _, r := range event.Records {
		if err := h.handleSingleEvent(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) handleSingleEvent(ctx context.Context, r events.KinesisEventRecord) error {
	ctx = context.WithValue(ctx, KinesisSequenceNumberKey, r.Kinesis.SequenceNumber)
	return h.handleMessage(ctx, r)
}

func (h *Handler) streamName() string {
	if KinesisOpts.StreamName != "" {
		return KinesisOpts.StreamName
	}
	return h.DefaultStreamName
}

func consumerOptions() []consumer.Option {
	switch {
	case KinesisOpts.Replay && KinesisOpts.ReplayFrom.Value() != nil:
		return []consumer.Option{
			consumer.WithShardIteratorType("AT_TIMESTAMP"),
			consumer.WithTimestamp(*KinesisOpts.ReplayFrom.Value()),
		}
	case KinesisOpts.Replay:
		return []consumer.Option{consumer.WithShardIteratorType("TRIM_HORIZON")}
	default:
		return []consumer.Option{consumer.WithShardIteratorType("LATEST")}
	}
}

func (h *Handler) handleRealtime(ctx context.Context) error {
	streamName := h.streamName()
	if streamName == "" {
		return fmt.Errorf("no stream name: set --stream-name")
	}

	c, err := consumer.New(streamName, consumerOptions()...)
	if err != nil {
		return fmt.Errorf("failed to create consumer for %v: %w", streamName, err)
	}

	callback := func(record *consumer.Record) error {
		er := events.KinesisEventRecord{
			Kinesis: events.KinesisRecord{
				Data:           record.Data,
				PartitionKey:   stringValue(record.PartitionKey),
				SequenceNumber: stringValue(record.SequenceNumber),
			},
		}
		return h.handleSingleEvent(ctx, er)
	}

	h.Logger.Info().Str("stream", streamName).Msg("listening")
	return c.Scan(ctx, callback)
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
