package cleantxtledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// Archive writes each committed checkpoint to S3 as a json object.
type Archive struct {
	S3     s3iface.S3API
	Bucket string
	Prefix string
}

// ArchiveKey returns the object key of a checkpoint.
func ArchiveKey(prefix, sessionID string, ts time.Time) string {
	ts = ts.UTC()
	return path.Join(
		prefix,
		url.PathEscape(sessionID),
		ts.Format("2006-01-02"),
		ts.Format("2006-01-02-15:04:05.000")+".json",
	)
}

func (a *Archive) Name() string { return "s3-archive" }

func (a *Archive) Write(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	key := ArchiveKey(a.Prefix, entry.Record.SessionID, entry.Record.Timestamp)
	_, err = a.S3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put s3://%v/%v: %w", a.Bucket, key, err)
	}
	return nil
}
