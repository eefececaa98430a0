package main

import (
	"log"
	"os"

	"github.com/aws/aws-sdk-go/aws/session"
	cleantxtcli "github.com/cleantxt/cleantxt-go-utils/cleantxt-cli"
	cleantxtddb "github.com/cleantxt/cleantxt-go-utils/cleantxt-ddb"
	cleantxtkinesis "github.com/cleantxt/cleantxt-go-utils/cleantxt-kinesis"
	"github.com/cleantxt/cleantxt-go-utils/cleantxt-relay/checkpointdao"
	"github.com/cleantxt/cleantxt-go-utils/cleantxt-relay/publish"
	"github.com/urfave/cli/v2"
)

var service = cleantxtcli.NewService("cleantxt-indexer")

func main() {
	app := cleantxtcli.App(
		service,
		action,
		append(
			append(
				cleantxtcli.CommonFlags,
				cleantxtkinesis.KinesisFlags...,
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

	idx := &indexer{
		checkpoints: checkpointdao.Build(api, cleantxtcli.CommonOpts.Env),
		dry:         cleantxtcli.CommonOpts.Dry,
	}

	handler := cleantxtkinesis.NewGenericHandler(service, idx.handleRecord)
	handler.DefaultStreamName = publish.StreamName(cleantxtcli.CommonOpts.Env)
	return handler.Start()
}
