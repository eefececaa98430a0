package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go/aws/session"
	cleantxtcli "github.com/cleantxt/cleantxt-go-utils/cleantxt-cli"
	cleantxtddb "github.com/cleantxt/cleantxt-go-utils/cleantxt-ddb"
	cleantxtgql "github.com/cleantxt/cleantxt-go-utils/cleantxt-gql"
	"github.com/cleantxt/cleantxt-go-utils/cleantxt-relay/checkpointdao"
	"github.com/urfave/cli/v2"
)

var service = cleantxtcli.NewSubpathService("cleantxt-api")

func main() {
	app := cleantxtcli.App(
		service,
		action,
		append(
			append(
				cleantxtcli.CommonFlags,
				cleantxtcli.PortFlag(5001),
			),
			cleantxtddb.DDBFlags...,
		)...,
	)
	err := app.Run(os.Args)
	if err != nil {
		log.Fatalln(err)
	}
}

func action(_ *cli.Context) error {
	sess := session.Must(session.NewSession(cleantxtddb.Config()))
	api, err := cleantxtddb.DynamoDBAPI(sess)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolver := &Resolver{
		config:      cleantxtgql.NewConfig(service),
		checkpoints: checkpointdao.Build(api, cleantxtcli.CommonOpts.Env),
	}
	return cleantxtgql.Webserver(ctx, resolver)
}
