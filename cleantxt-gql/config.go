package cleantxtgql

import (
	cleantxtcli "github.com/cleantxt/cleantxt-go-utils/cleantxt-cli"
	"github.com/rs/zerolog"
)

type BaseConfig struct {
	Logger  zerolog.Logger
	Service cleantxtcli.Service
}

func NewConfig(service cleantxtcli.Service) BaseConfig {
	return BaseConfig{
		Logger:  cleantxtcli.Logger(service),
		Service: service,
	}
}
