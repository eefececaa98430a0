// Package cleantxtcron runs maintenance jobs either once from the console or
// as a scheduled Lambda.
package cleantxtcron

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	cleantxtcli "github.com/cleantxt/cleantxt-go-utils/cleantxt-cli"
	"github.com/rs/zerolog"
)

type RunCallback func(ctx context.Context) error

type Handler struct {
	service cleantxtcli.Service
	Logger  zerolog.Logger

	runOnce RunCallback
}

func NewHandler(service cleantxtcli.Service, runOnce RunCallback) *Handler {
	return &Handler{
		service: service,
		Logger:  cleantxtcli.Logger(service),
		runOnce: runOnce,
	}
}

// RunOnce is the Lambda entry point; the scheduled event body is ignored.
func (h *Handler) RunOnce(ctx context.Context, _ json.RawMessage) error {
	start := time.Now()
	ctx = h.Logger.WithContext(ctx)

	h.Logger.Info().Msg("running scheduled task")
	if err := h.runOnce(ctx); err != nil {
		h.Logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("scheduled task failed")
		return err
	}
	h.Logger.Info().Dur("elapsed", time.Since(start)).Msg("scheduled task finished")
	return nil
}

func (h *Handler) Start() error {
	if cleantxtcli.CommonOpts.Console {
		return h.RunOnce(context.Background(), nil)
	}
	lambda.Start(h.RunOnce)
	return nil
}
