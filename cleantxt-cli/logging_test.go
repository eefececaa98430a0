package cleantxtcli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/tj/assert"
)

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("")
	assert.NoError(t, err)
	assert.Equal(t, zerolog.InfoLevel, level)

	level, err = ParseLevel(" WARN ")
	assert.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, level)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	CommonOpts.Console = false
	CommonOpts.LogLevel = "info"

	var buf bytes.Buffer
	logger := NewLogger(&buf, Service{Name: "relay", Version: "v1"})
	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")

	var line map[string]interface{}
	assert.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "relay", line["service"])
	assert.Equal(t, "v1", line["version"])
	assert.Equal(t, "shown", line["message"])
}

func TestEnvVar(t *testing.T) {
	assert.Equal(t, "SESSION_TTL", envVar("session-ttl"))
	assert.Equal(t, "PORT", envVar("port"))
}
