package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/cloudwatch"
	cleantxtcli "github.com/cleantxt/cleantxt-go-utils/cleantxt-cli"
	cleantxtrelay "github.com/cleantxt/cleantxt-go-utils/cleantxt-relay"
	cleantxtrest "github.com/cleantxt/cleantxt-go-utils/cleantxt-rest"
	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

var service = cleantxtcli.NewService("cleantxt-relay")

var opts struct {
	DefaultSession   string
	SessionTTL       time.Duration
	SweepInterval    time.Duration
	SendBuffer       int
	MaxDocumentBytes int
	AllowedOrigins   string
	Metrics          bool

	CheckpointTimeout time.Duration
	DedupeWindow      time.Duration
	RedisURL          string

	LedgerID      string
	App           string
	HiveSignerURL string
	Tokens        string
	TokensSecret  string

	ArchiveBucket string
	ArchivePrefix string
	DatabaseURL   string
	Publish       bool
}

var flags = []cli.Flag{
	cleantxtcli.PortFlag(5000),
	cleantxtcli.StringFlag("default-session", "session joined when a join names none", &opts.DefaultSession, cleantxtrelay.DefaultSessionID),
	cleantxtcli.DurationFlag("session-ttl", "how long an empty session keeps its document; 0 reclaims immediately", &opts.SessionTTL, 10*time.Minute),
	cleantxtcli.DurationFlag("sweep-interval", "how often idle sessions are reclaimed", &opts.SweepInterval, time.Minute),
	cleantxtcli.IntFlag("send-buffer", "outbound frames queued per connection before it is dropped", &opts.SendBuffer, cleantxtrelay.DefaultSendBuffer),
	cleantxtcli.IntFlag("max-document-bytes", "largest accepted document", &opts.MaxDocumentBytes, cleantxtrelay.DefaultMaxDocumentBytes),
	cleantxtcli.StringFlag("allowed-origins", "comma separated origins allowed to connect", &opts.AllowedOrigins, "*"),
	cleantxtcli.BoolFlag("metrics", "publish metrics to cloudwatch", &opts.Metrics),
	cleantxtcli.DurationFlag("checkpoint-timeout", "upper bound on a single ledger commit", &opts.CheckpointTimeout, cleantxtrelay.DefaultCheckpointTimeout),
	cleantxtcli.DurationFlag("checkpoint-dedupe-window", "window in which identical checkpoints by the same author are refused; 0 accepts every save", &opts.DedupeWindow, 0),
	cleantxtcli.StringFlag("redis-url", "redis for the checkpoint guard shared across relays; in-memory when unset", &opts.RedisURL),
	cleantxtcli.StringFlag("ledger-id", "custom_json id of checkpoint operations", &opts.LedgerID, "collab_writing"),
	cleantxtcli.StringFlag("app", "app name recorded with each checkpoint", &opts.App, "CleanTxt"),
	cleantxtcli.StringFlag("hivesigner-url", "hivesigner api endpoint", &opts.HiveSignerURL, "https://hivesigner.com"),
	cleantxtcli.StringFlag("hivesigner-tokens", "json object of author to hivesigner access token", &opts.Tokens),
	cleantxtcli.StringFlag("hivesigner-tokens-secret", "secrets manager secret holding the hivesigner tokens", &opts.TokensSecret),
	cleantxtcli.StringFlag("archive-bucket", "s3 bucket receiving a copy of every checkpoint", &opts.ArchiveBucket),
	cleantxtcli.StringFlag("archive-prefix", "key prefix within the archive bucket", &opts.ArchivePrefix, "checkpoints"),
	cleantxtcli.StringFlag("database-url", "postgres journal of every checkpoint", &opts.DatabaseURL),
	cleantxtcli.BoolFlag("publish", "publish checkpoints to the checkpoint stream for indexing", &opts.Publish),
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

func action(_ *cli.Context) error {
	logger := cleantxtcli.Logger(service)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	sess := session.Must(session.NewSession(aws.NewConfig()))

	var metrics *cleantxtcli.Metrics
	if opts.Metrics {
		metrics = cleantxtcli.NewMetrics(service, cloudwatch.New(sess))
	}

	ledger, closeLedger, err := buildLedger(ctx, logger, sess)
	if err != nil {
		return err
	}
	defer closeLedger()

	guard, closeGuard, err := buildGuard(ctx)
	if err != nil {
		return err
	}
	defer closeGuard()

	relay := &cleantxtrelay.Relay{
		Registry:         cleantxtrelay.NewRegistry(),
		Logger:           logger,
		Metrics:          metrics,
		DefaultSession:   opts.DefaultSession,
		SessionTTL:       opts.SessionTTL,
		SendBuffer:       opts.SendBuffer,
		MaxDocumentBytes: opts.MaxDocumentBytes,
	}
	bridge := &cleantxtrelay.Bridge{
		Registry:     relay.Registry,
		Ledger:       ledger,
		Guard:        guard,
		DedupeWindow: opts.DedupeWindow,
		Timeout:      opts.CheckpointTimeout,
		Logger:       logger,
		Metrics:      metrics,
	}

	origins := splitList(opts.AllowedOrigins)
	handler := &cleantxtrelay.Handler{
		Relay:  relay,
		Bridge: bridge,
		Logger: logger,
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     cleantxtrelay.OriginChecker(origins...),
		},
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		relay.RunSweeper(ctx, opts.SweepInterval)
		return nil
	})
	group.Go(func() error {
		return cleantxtrest.Webserver(ctx, logger, cleantxtrelay.Router(logger, handler, origins...))
	})

	err = group.Wait()
	logger.Info().Msg("waiting for in-flight checkpoints")
	bridge.Wait()
	return err
}

func splitList(s string) []string {
	var values []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return values
}
