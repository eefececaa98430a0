// Package cleantxtgql serves GraphQL read APIs over chi, either locally or as
// a Lambda behind API Gateway.
package cleantxtgql

import (
	cleantxtcli "github.com/cleantxt/cleantxt-go-utils/cleantxt-cli"
)

// AllowIntrospection is true outside prod and always in console mode.
func AllowIntrospection() bool {
	return cleantxtcli.CommonOpts.Env != "prod" || cleantxtcli.CommonOpts.Console
}

type Resolver interface {
	Schema() string
	Config() *BaseConfig
}
