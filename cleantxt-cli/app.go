// Package cleantxtcli provides the shared CLI boilerplate for the CleanTxt
// binaries: service identity, common flags, structured logging and metrics.
//
// Every binary is built with App, which wires the common flags and applies
// them before the action runs.
package cleantxtcli

import (
	"fmt"
	"runtime/debug"

	"github.com/urfave/cli/v2"
)

func App(service Service, action cli.ActionFunc, flags ...cli.Flag) *cli.App {
	return &cli.App{
		Name:                 service.Name,
		Usage:                fmt.Sprintf("%v server", service.Name),
		Version:              service.Version,
		EnableBashCompletion: true,
		Before:               InitCommonOpts,
		Action:               action,
		Flags:                flags,
	}
}

// InitCommonOpts validates CommonOpts after flag parsing.
func InitCommonOpts(c *cli.Context) error {
	if CommonOpts.Port < 0 || CommonOpts.Port > 65535 {
		return fmt.Errorf("invalid port %v", CommonOpts.Port)
	}
	if _, err := ParseLevel(CommonOpts.LogLevel); err != nil {
		return err
	}
	return nil
}

func CommitHash() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				return setting.Value
			}
		}
		return info.Main.Version
	}
	return "unknown"
}
