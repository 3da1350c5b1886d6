package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "pair-relay", "info", FormatJSON)

	log.Debug().Msg("hidden")
	log.Info().Str("room", "abc").Msg("participant joined")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), buf.String())
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "pair-relay", entry["service"])
	assert.Equal(t, "abc", entry["room"])
	assert.Equal(t, "participant joined", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestNew_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "pair-relay", "debug", FormatJSON)

	log.Debug().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "pair-relay", "chatty", FormatJSON)

	log.Debug().Msg("hidden")
	assert.Empty(t, buf.String())

	log.Info().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "pair-relay", "info", FormatConsole)

	log.Info().Msg("hello")
	out := buf.String()
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "INF")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())), "console output is not JSON")
}
