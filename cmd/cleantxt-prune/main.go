package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	cleantxtcli "github.com/cleantxt/cleantxt-go-utils/cleantxt-cli"
	cleantxtcron "github.com/cleantxt/cleantxt-go-utils/cleantxt-cron"
	cleantxtledger "github.com/cleantxt/cleantxt-go-utils/cleantxt-ledger"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

var service = cleantxtcli.NewService("cleantxt-prune")

var opts struct {
	DatabaseURL string
	Retention   time.Duration
}

var flags = []cli.Flag{
	cleantxtcli.StringFlag("database-url", "postgres checkpoint journal", &opts.DatabaseURL),
	cleantxtcli.DurationFlag("retention", "how long journal rows are kept", &opts.Retention, 90*24*time.Hour),
}

func main() {
	app := cleantxtcli.App(
		service,
		action,
		append(
			cleantxtcli.CommonFlags,
			flags...,
		)...,
	)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

type pruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

func prune(journal pruner, retention time.Duration, now func() time.Time, dry bool) cleantxtcron.RunCallback {
	return func(ctx context.Context) error {
		logger := zerolog.Ctx(ctx)
		cutoff := now().Add(-retention)
		if dry {
			logger.Info().Time("cutoff", cutoff).Msg("dry run; journal left untouched")
			return nil
		}

		n, err := journal.Prune(ctx, cutoff)
		if err != nil {
			return err
		}
		logger.Info().Time("cutoff", cutoff).Int64("removed", n).Msg("pruned checkpoint journal")
		return nil
	}
}

func action(_ *cli.Context) error {
	if opts.DatabaseURL == "" {
		return fmt.Errorf("--database-url is required")
	}
	if opts.Retention <= 0 {
		return fmt.Errorf("--retention must be positive")
	}

	journal, err := cleantxtledger.OpenJournal(context.Background(), opts.DatabaseURL)
	if err != nil {
		return err
	}
	defer journal.Close()

	handler := cleantxtcron.NewHandler(service, prune(journal, opts.Retention, time.Now, cleantxtcli.CommonOpts.Dry))
	return handler.Start()
}
