package main

import (
	"context"
	"net/http"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	cleantxtcli "github.com/cleantxt/cleantxt-go-utils/cleantxt-cli"
	cleantxtledger "github.com/cleantxt/cleantxt-go-utils/cleantxt-ledger"
	"github.com/cleantxt/cleantxt-go-utils/cleantxt-relay/publish"
	cleantxtsecret "github.com/cleantxt/cleantxt-go-utils/cleantxt-secret"
	"github.com/rs/zerolog"
)

// buildLedger assembles the primary ledger and its write-behind sinks from
// opts. The returned func releases any connections it opened.
func buildLedger(ctx context.Context, logger zerolog.Logger, sess *session.Session) (cleantxtledger.Ledger, func(), error) {
	closers := []func(){}
	closeAll := func() {
		for _, fn := range closers {
			fn()
		}
	}

	primary, err := buildPrimary(sess, logger)
	if err != nil {
		return nil, closeAll, err
	}

	var sinks []cleantxtledger.Sink
	if opts.ArchiveBucket != "" {
		sinks = append(sinks, &cleantxtledger.Archive{
			S3:     s3.New(sess),
			Bucket: opts.ArchiveBucket,
			Prefix: opts.ArchivePrefix,
		})
	}
	if opts.DatabaseURL != "" {
		journal, err := cleantxtledger.OpenJournal(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, journal.Close)
		if err := journal.Migrate(ctx); err != nil {
			return nil, closeAll, err
		}
		sinks = append(sinks, journal)
	}
	if opts.Publish {
		sinks = append(sinks, &cleantxtledger.Stream{
			Publisher: publish.Build(cleantxtcli.CommonOpts.Env),
		})
	}

	if len(sinks) == 0 {
		return primary, closeAll, nil
	}

	names := make([]string, 0, len(sinks))
	for _, sink := range sinks {
		names = append(names, sink.Name())
	}
	logger.Info().Strs("sinks", names).Msg("writing checkpoints behind the ledger")

	return &cleantxtledger.Fanout{
		Primary: primary,
		Sinks:   sinks,
		Logger:  logger,
	}, closeAll, nil
}

func buildPrimary(sess *session.Session, logger zerolog.Logger) (cleantxtledger.Ledger, error) {
	if cleantxtcli.CommonOpts.Dry {
		logger.Warn().Msg("dry run: checkpoints will not reach the ledger")
		return cleantxtledger.DryRun{Logger: logger}, nil
	}

	var (
		tokens cleantxtledger.StaticTokens
		err    error
	)
	if opts.TokensSecret != "" {
		tokens, err = cleantxtsecret.LoadTokens(sess, opts.TokensSecret)
	} else {
		tokens, err = cleantxtsecret.ParseTokens(opts.Tokens)
	}
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		logger.Warn().Msg("no hivesigner tokens configured; every checkpoint will be refused")
	}

	return &cleantxtledger.Hive{
		Endpoint: opts.HiveSignerURL,
		ID:       opts.LedgerID,
		App:      opts.App,
		Tokens:   tokens,
		Client:   &http.Client{Timeout: opts.CheckpointTimeout},
	}, nil
}

func buildGuard(ctx context.Context) (cleantxtledger.Guard, func(), error) {
	if opts.DedupeWindow <= 0 {
		return nil, func() {}, nil
	}
	if opts.RedisURL == "" {
		return cleantxtledger.NewMemoryGuard(), func() {}, nil
	}

	guard, err := cleantxtledger.NewRedisGuard(ctx, opts.RedisURL)
	if err != nil {
		return nil, func() {}, err
	}
	return guard, func() { guard.Close() }, nil
}
