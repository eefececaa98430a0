package main

import (
	"context"
	_ "embed"
	"encoding/json"

	cleantxtgql "github.com/cleantxt/cleantxt-go-utils/cleantxt-gql"
	"github.com/cleantxt/cleantxt-go-utils/cleantxt-relay/checkpointdao"
)

//go:embed api.gql
var schema string

type checkpointReader interface {
	ListBySession(ctx context.Context, sessionID string) ([]checkpointdao.Checkpoint, error)
	Latest(ctx context.Context, sessionID string) (*checkpointdao.Checkpoint, error)
	QueryByAuthor(ctx context.Context, author string) ([]checkpointdao.Checkpoint, error)
	Count(ctx context.Context, sessionID string) (int64, error)
}

type Resolver struct {
	config      cleantxtgql.BaseConfig
	checkpoints checkpointReader
}

func (r *Resolver) Schema() string {
	return cleantxtgql.MergeSchemas(schema, cleantxtgql.Common)
}

func (r *Resolver) Config() *cleantxtgql.BaseConfig {
	return &r.config
}

type sessionArgs struct {
	SessionID string
}

func (r *Resolver) Checkpoints(ctx context.Context, args sessionArgs) ([]*Checkpoint, error) {
	items, err := r.checkpoints.ListBySession(ctx, args.SessionID)
	if err != nil {
		return nil, err
	}
	return wrap(items), nil
}

func (r *Resolver) LatestCheckpoint(ctx context.Context, args sessionArgs) (*Checkpoint, error) {
	item, err := r.checkpoints.Latest(ctx, args.SessionID)
	if err != nil || item == nil {
		return nil, err
	}
	return &Checkpoint{item: *item}, nil
}

func (r *Resolver) CheckpointsByAuthor(ctx context.Context, args struct{ Author string }) ([]*Checkpoint, error) {
	items, err := r.checkpoints.QueryByAuthor(ctx, args.Author)
	if err != nil {
		return nil, err
	}
	return wrap(items), nil
}

func (r *Resolver) CheckpointCount(ctx context.Context, args sessionArgs) (int32, error) {
	n, err := r.checkpoints.Count(ctx, args.SessionID)
	return int32(n), err
}

func wrap(items []checkpointdao.Checkpoint) []*Checkpoint {
	checkpoints := make([]*Checkpoint, 0, len(items))
	for _, item := range items {
		checkpoints = append(checkpoints, &Checkpoint{item: item})
	}
	return checkpoints
}

type Checkpoint struct {
	item checkpointdao.Checkpoint
}

func (c *Checkpoint) SessionID() string { return c.item.SessionID }
func (c *Checkpoint) Author() string    { return c.item.Author }
func (c *Checkpoint) Revision() int32   { return int32(c.item.Revision) }
func (c *Checkpoint) Preview() string   { return c.item.Preview }
func (c *Checkpoint) Ledger() string    { return c.item.Ledger }

func (c *Checkpoint) Timestamp() cleantxtgql.Time {
	return cleantxtgql.Time{Time: c.item.Time()}
}

func (c *Checkpoint) LastWriter() *string {
	return optional(c.item.LastWriter)
}

func (c *Checkpoint) TransactionID() *string {
	return optional(c.item.TransactionID)
}

func (c *Checkpoint) BlockNum() *int32 {
	if c.item.BlockNum == 0 {
		return nil
	}
	n := int32(c.item.BlockNum)
	return &n
}

func (c *Checkpoint) Content() (cleantxtgql.JSON, error) {
	return cleantxtgql.FromRaw(json.RawMessage(c.item.Content))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
