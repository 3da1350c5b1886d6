package mcp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/pair-relay/api"
	"github.com/wricardo/pair-relay/relay/dispatch"
	"github.com/wricardo/pair-relay/relay/room"
)

type discardConn struct{ id string }

func (c discardConn) ID() string          { return c.id }
func (c discardConn) Send(_ []byte) error { return nil }
func (c discardConn) Open() bool          { return true }

type noSockets struct{}

func (noSockets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "websocket disabled", http.StatusNotImplemented)
}

func (noSockets) Count() int { return 0 }

// newRelayAPI starts a REST API backed by a real registry.
func newRelayAPI(t *testing.T) (*httptest.Server, *dispatch.Dispatcher) {
	t.Helper()
	d := dispatch.New(room.NewRegistry(), zerolog.Nop())
	srv := httptest.NewServer(api.NewServer(d, noSockets{}, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return srv, d
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), name string, args map[string]interface{}) (string, bool) {
	t.Helper()
	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}

	result, err := handler(context.Background(), request)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content in result")
	return text.Text, result.IsError
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/")

	require.NotNil(t, client)
	assert.Equal(t, "http://localhost:8080", client.baseURL)
	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.GetMCPServer())
}

func TestHandleListRooms(t *testing.T) {
	srv, d := newRelayAPI(t)
	client := NewClient(srv.URL)

	text, isErr := callTool(t, client.handleListRooms, "list_rooms", map[string]interface{}{})
	assert.False(t, isErr)
	assert.Equal(t, "No active rooms.\n", text)

	for _, id := range []string{"a", "b", "c"} {
		d.HandleMessage(discardConn{id: id}, []byte(`{"type":"join"}`))
	}

	text, isErr = callTool(t, client.handleListRooms, "list_rooms", map[string]interface{}{})
	assert.False(t, isErr)
	assert.Contains(t, text, "Active rooms: 2 (showing 2)")
	assert.Contains(t, text, "2/2 ready")
	assert.Contains(t, text, "1/2 waiting")

	text, _ = callTool(t, client.handleListRooms, "list_rooms", map[string]interface{}{"limit": float64(1)})
	assert.Contains(t, text, "Active rooms: 2 (showing 1)")
}

func TestHandleGetRoom(t *testing.T) {
	srv, d := newRelayAPI(t)
	client := NewClient(srv.URL)

	d.HandleMessage(discardConn{id: "alice"}, []byte(`{"type":"join"}`))
	roomID, ok := d.Rooms().RoomOf(discardConn{id: "alice"})
	require.True(t, ok)

	t.Run("existing room", func(t *testing.T) {
		text, isErr := callTool(t, client.handleGetRoom, "get_room", map[string]interface{}{"room_id": roomID})
		assert.False(t, isErr)
		assert.Contains(t, text, "Room "+roomID+": 1/2 participants (waiting for a second participant)")
		assert.Contains(t, text, "Participants: alice")
	})

	t.Run("unknown room", func(t *testing.T) {
		text, isErr := callTool(t, client.handleGetRoom, "get_room", map[string]interface{}{"room_id": "nope"})
		assert.True(t, isErr)
		assert.Contains(t, text, room.ErrRoomNotFound.Error())
	})

	t.Run("missing argument", func(t *testing.T) {
		text, isErr := callTool(t, client.handleGetRoom, "get_room", nil)
		assert.True(t, isErr)
		assert.Contains(t, text, "room_id is required")
	})
}

func TestHandleRelayStats(t *testing.T) {
	srv, d := newRelayAPI(t)
	client := NewClient(srv.URL)

	d.HandleMessage(discardConn{id: "a"}, []byte(`{"type":"join"}`))
	d.HandleMessage(discardConn{id: "b"}, []byte(`{"type":"join"}`))
	d.HandleMessage(discardConn{id: "a"}, []byte(`{"type":"move"}`))

	text, isErr := callTool(t, client.handleRelayStats, "relay_stats", nil)
	assert.False(t, isErr)
	assert.Contains(t, text, "Active rooms: 1 (created since start: 1)")
	assert.Contains(t, text, "Joins: 2, pairs formed: 1")
	assert.Contains(t, text, "Frames relayed: 1")
}

func TestHandleRelayProtocol(t *testing.T) {
	client := NewClient("http://unused.invalid")

	text, isErr := callTool(t, client.handleRelayProtocol, "relay_protocol", nil)
	assert.False(t, isErr)
	assert.Contains(t, text, `{"type":"join"}`)
	assert.Contains(t, text, `"roomId"`)
}

func TestApiGet_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := NewClient(srv.URL)

	text, isErr := callTool(t, client.handleRelayStats, "relay_stats", nil)
	assert.True(t, isErr)
	assert.NotEmpty(t, text)
}

func TestApiGet_StatusWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	client := NewClient(srv.URL)

	var out map[string]interface{}
	err := client.apiGet(context.Background(), "/api/stats", &out)
	require.Error(t, err)
	assert.Equal(t, "API error: 502", err.Error())
}
