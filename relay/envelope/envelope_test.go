package envelope

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("join without payload", func(t *testing.T) {
		env, err := Parse([]byte(`{"type":"join"}`))
		require.NoError(t, err)
		assert.Equal(t, KindJoin, env.Type)
		assert.Nil(t, env.Payload)
		assert.False(t, env.Type.Passthrough())
	})

	t.Run("passthrough keeps payload bytes", func(t *testing.T) {
		env, err := Parse([]byte(`{"type":"move","payload":{"y":2,"x":1}}`))
		require.NoError(t, err)
		assert.Equal(t, Kind("move"), env.Type)
		assert.Equal(t, `{"y":2,"x":1}`, string(env.Payload))
		assert.True(t, env.Type.Passthrough())
	})

	t.Run("null payload", func(t *testing.T) {
		env, err := Parse([]byte(`{"type":"ping","payload":null}`))
		require.NoError(t, err)
		assert.Nil(t, env.Payload)
	})

	t.Run("surrounding whitespace", func(t *testing.T) {
		_, err := Parse([]byte("  \n{\"type\":\"join\"}\n"))
		assert.NoError(t, err)
	})
}

func TestParse_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty frame":      ``,
		"not json":         `hello`,
		"json array":       `[{"type":"join"}]`,
		"json string":      `"join"`,
		"truncated":        `{"type":"join"`,
		"missing type":     `{"payload":{}}`,
		"empty type":       `{"type":""}`,
		"numeric type":     `{"type":7}`,
		"null type":        `{"type":null}`,
		"array payload":    `{"type":"move","payload":[1,2]}`,
		"scalar payload":   `{"type":"move","payload":3}`,
		"string payload":   `{"type":"move","payload":"x"}`,
		"trailing garbage": `{"type":"join"} {"type":"join"}`,
		"invalid utf8":     "{\"type\":\"move\",\"payload\":{\"s\":\"\xff\xfe\"}}",
		"truncated rune":   "{\"type\":\"mo\xc3\"}",
	}

	for name, frame := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(frame))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestJoined(t *testing.T) {
	frame := Joined("abc123")
	assert.JSONEq(t, `{"type":"joined","payload":{"roomId":"abc123"}}`, string(frame))

	env, err := Parse(frame)
	require.NoError(t, err)
	assert.Equal(t, KindJoined, env.Type)

	var payload JoinedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "abc123", payload.RoomID)
}

func TestReady(t *testing.T) {
	assert.JSONEq(t, `{"type":"ready","payload":{}}`, string(Ready()))
}
