package checkpointdao

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/savaki/ddb"
)

// DAO provides access to the checkpoint index table.
type DAO struct {
	table     *ddb.Table
	api       dynamodbiface.DynamoDBAPI
	tableName string
}

func New(api dynamodbiface.DynamoDBAPI, tableName string) *DAO {
	return &DAO{
		table:     ddb.New(api).MustTable(tableName, Checkpoint{}),
		api:       api,
		tableName: tableName,
	}
}

// Table exposes the underlying table, e.g. to create it for local runs.
func (d *DAO) Table() *ddb.Table {
	return d.table
}

// Put stores a checkpoint. Re-indexing the same checkpoint overwrites it.
func (d *DAO) Put(ctx context.Context, c Checkpoint) error {
	if err := d.table.Put(c).RunWithContext(ctx); err != nil {
		return fmt.Errorf("failed to put checkpoint %v/%v: %w", c.SessionID, c.Timestamp, err)
	}
	return nil
}

// Get returns the checkpoint of sessionID at timestamp, or nil if none exists.
func (d *DAO) Get(ctx context.Context, sessionID string, timestamp int64) (*Checkpoint, error) {
	var c Checkpoint
	if err := d.table.Get(sessionID).Range(timestamp).ScanWithContext(ctx, &c); err != nil {
		if ddb.IsItemNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get checkpoint %v/%v: %w", sessionID, timestamp, err)
	}
	return &c, nil
}

// ListBySession returns every checkpoint of sessionID, oldest first.
func (d *DAO) ListBySession(ctx context.Context, sessionID string) ([]Checkpoint, error) {
	var checkpoints []Checkpoint
	err := d.table.Query("#SessionID = ?", sessionID).
		FindAllWithContext(ctx, &checkpoints)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoints for session %v: %w", sessionID, err)
	}
	sort.Slice(checkpoints, func(i, j int) bool {
		return checkpoints[i].Timestamp < checkpoints[j].Timestamp
	})
	return checkpoints, nil
}

// QueryByAuthor returns every checkpoint requested by author, newest first,
// using the AuthorIndex GSI.
func (d *DAO) QueryByAuthor(ctx context.Context, author string) ([]Checkpoint, error) {
	var checkpoints []Checkpoint
	err := d.table.Query("#Author = ?", author).
		IndexName("AuthorIndex").
		FindAllWithContext(ctx, &checkpoints)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoints by author %v: %w", author, err)
	}
	sort.Slice(checkpoints, func(i, j int) bool {
		return checkpoints[i].Timestamp > checkpoints[j].Timestamp
	})
	return checkpoints, nil
}

// Latest returns the most recent checkpoint of sessionID, or nil if the
// session has none.
func (d *DAO) Latest(ctx context.Context, sessionID string) (*Checkpoint, error) {
	output, err := d.api.QueryWithContext(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(d.tableName),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":pk": {S: aws.String(sessionID)},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int64(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query latest checkpoint for session %v: %w", sessionID, err)
	}
	if len(output.Items) == 0 {
		return nil, nil
	}

	var c Checkpoint
	if err := dynamodbattribute.UnmarshalMap(output.Items[0], &c); err != nil {
		return nil, fmt.Errorf("failed to decode latest checkpoint for session %v: %w", sessionID, err)
	}
	return &c, nil
}

// Count returns the number of checkpoints of sessionID.
func (d *DAO) Count(ctx context.Context, sessionID string) (int64, error) {
	var total int64
	input := &dynamodb.QueryInput{
		TableName:              aws.String(d.tableName),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":pk": {S: aws.String(sessionID)},
		},
		Select: aws.String("COUNT"),
	}

	err := d.api.QueryPagesWithContext(ctx, input, func(page *dynamodb.QueryOutput, _ bool) bool {
		total += aws.Int64Value(page.Count)
		return true
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count checkpoints for session %v: %w", sessionID, err)
	}
	return total, nil
}
