package cleantxtddb

import (
	cleantxtcli "github.com/cleantxt/cleantxt-go-utils/cleantxt-cli"
	"github.com/urfave/cli/v2"
)

var DDBOpts struct {
	DAXCluster string
	Endpoint   string
	Region     string
}

var DAXClusterFlag = cleantxtcli.StringFlag("dax-cluster", "The DAX cluster to read the checkpoint index through", &DDBOpts.DAXCluster)
var EndpointFlag = cleantxtcli.StringFlag("ddb-endpoint", "DynamoDB endpoint override, e.g. http://localhost:8000 for local runs", &DDBOpts.Endpoint)
var RegionFlag = cleantxtcli.StringFlag("region", "AWS region", &DDBOpts.Region, "us-east-2")

var DDBFlags = []cli.Flag{
	DAXClusterFlag,
	EndpointFlag,
	RegionFlag,
}
