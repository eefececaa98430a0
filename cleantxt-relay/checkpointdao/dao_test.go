package checkpointdao

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	cleantxtledger "github.com/cleantxt/cleantxt-go-utils/cleantxt-ledger"
	"github.com/tj/assert"
)

func withTable(t *testing.T, callback func(ctx context.Context, dao *DAO)) {
	endpoint := os.Getenv("DYNAMODB_ENDPOINT")
	if endpoint == "" {
		t.Skip("DYNAMODB_ENDPOINT not set")
	}

	var (
		s = session.Must(session.NewSession(aws.NewConfig().
			WithCredentials(credentials.NewStaticCredentials("blah", "blah", "")).
			WithEndpoint(endpoint).
			WithRegion("us-west-2")))
		api       = dynamodb.New(s)
		tableName = fmt.Sprintf("checkpoints-%v", time.Now().UnixNano())
		dao       = New(api, tableName)
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := dao.Table().CreateTableIfNotExists(ctx)
	assert.Nil(t, err)
	defer dao.Table().DeleteTableIfExists(ctx)

	callback(ctx, dao)
}

func TestDAO(t *testing.T) {
	withTable(t, func(ctx context.Context, dao *DAO) {
		base := time.Now().UnixMilli()
		for i, author := range []string{"alice", "bob", "alice"} {
			err := dao.Put(ctx, Checkpoint{
				SessionID: "room1",
				Timestamp: base + int64(i),
				Author:    author,
				Content:   `{"type":"doc","content":[]}`,
				Revision:  int64(i),
				Ledger:    "dry-run",
			})
			assert.Nil(t, err)
		}
		err := dao.Put(ctx, Checkpoint{SessionID: "room2", Timestamp: base, Author: "carol", Ledger: "dry-run"})
		assert.Nil(t, err)

		got, err := dao.ListBySession(ctx, "room1")
		assert.Nil(t, err)
		assert.Len(t, got, 3)
		assert.Equal(t, base, got[0].Timestamp)

		latest, err := dao.Latest(ctx, "room1")
		assert.Nil(t, err)
		assert.NotNil(t, latest)
		assert.Equal(t, base+2, latest.Timestamp)

		missing, err := dao.Latest(ctx, "nope")
		assert.Nil(t, err)
		assert.Nil(t, missing)

		count, err := dao.Count(ctx, "room1")
		assert.Nil(t, err)
		assert.EqualValues(t, 3, count)

		byAuthor, err := dao.QueryByAuthor(ctx, "alice")
		assert.Nil(t, err)
		assert.Len(t, byAuthor, 2)
		assert.Equal(t, base+2, byAuthor[0].Timestamp)

		one, err := dao.Get(ctx, "room2", base)
		assert.Nil(t, err)
		assert.Equal(t, "carol", one.Author)
	})
}

func TestFromEntry(t *testing.T) {
	ts := time.Date(2026, 10, 19, 12, 0, 0, 123_000_000, time.UTC)
	entry := cleantxtledger.Entry{
		Record: cleantxtledger.Record{
			SessionID:  "room1",
			Author:     "bob",
			Content:    json.RawMessage(`{"type":"doc"}`),
			Timestamp:  ts,
			Revision:   2,
			LastWriter: "alice",
		},
		Receipt: cleantxtledger.Receipt{
			Ledger:        "hive",
			TransactionID: "abc",
			BlockNum:      42,
			CommittedAt:   ts,
		},
	}

	c := FromEntry(entry, strings.Repeat("x", previewLength+10))
	assert.Equal(t, "room1", c.SessionID)
	assert.Equal(t, ts.UnixMilli(), c.Timestamp)
	assert.Equal(t, ts, c.Time())
	assert.Equal(t, "bob", c.Author)
	assert.Equal(t, "alice", c.LastWriter)
	assert.Equal(t, `{"type":"doc"}`, c.Content)
	assert.EqualValues(t, 2, c.Revision)
	assert.EqualValues(t, 42, c.BlockNum)
	assert.Len(t, c.Preview, previewLength)
}
