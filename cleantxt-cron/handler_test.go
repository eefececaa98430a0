package cleantxtcron

import (
	"bytes"
	"context"
	"errors"
	"testing"

	cleantxtcli "github.com/cleantxt/cleantxt-go-utils/cleantxt-cli"
	"github.com/rs/zerolog"
	"github.com/tj/assert"
)

func TestHandler(t *testing.T) {
	t.Run("logger in context", func(t *testing.T) {
		buf := &bytes.Buffer{}
		h := NewHandler(cleantxtcli.NewService("test"), func(ctx context.Context) error {
			zerolog.Ctx(ctx).Info().Msg("pruning")
			return nil
		})
		h.Logger = zerolog.New(buf)

		assert.Nil(t, h.RunOnce(context.Background(), nil))
		assert.Contains(t, buf.String(), "pruning")
		assert.Contains(t, buf.String(), "scheduled task finished")
	})

	t.Run("error", func(t *testing.T) {
		boom := errors.New("boom")
		h := NewHandler(cleantxtcli.NewService("test"), func(context.Context) error {
			return boom
		})
		h.Logger = zerolog.Nop()

		err := h.RunOnce(context.Background(), nil)
		assert.True(t, errors.Is(err, boom))
	})

	t.Run("console", func(t *testing.T) {
		saved := cleantxtcli.CommonOpts
		defer func() { cleantxtcli.CommonOpts = saved }()
		cleantxtcli.CommonOpts.Console = true

		var runs int
		h := NewHandler(cleantxtcli.NewService("test"), func(context.Context) error {
			runs++
			return nil
		})
		h.Logger = zerolog.Nop()

		assert.Nil(t, h.Start())
		assert.Equal(t, 1, runs)
	})
}
