package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/pair-relay/api"
	"github.com/wricardo/pair-relay/relay/room"
)

const (
	serverName    = "Pair Relay"
	serverVersion = "1.0.0"
)

const protocolDescription = `Pair Relay protocol

Clients connect to ws://<host>/ws and exchange JSON text frames, one envelope per frame:

  {"type": "<kind>", "payload": {...}}

1. Send {"type":"join"} to be placed in a room.
2. The relay answers {"type":"joined","payload":{"roomId":"<id>"}}.
3. When a second client joins the same room, both receive {"type":"ready","payload":{}}.
4. Any other envelope is forwarded unchanged to the other participant.

Rooms hold at most two participants and disappear when both have disconnected.
Frames that are not valid envelopes, or that are sent before joining, are dropped silently.`

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(true),
		server.WithInstructions(`Pair Relay - MCP Interface

Read-only view of a running pair relay. The relay pairs two WebSocket clients into a room and forwards their messages.

AVAILABLE TOOLS:
- list_rooms: List active rooms, newest first
- get_room: Get one room by id
- relay_stats: Joins, pairs, relayed and dropped frames
- relay_protocol: Describe the client wire protocol`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List active rooms, newest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of rooms to return (optional)",
				},
			},
		},
	}, c.handleListRooms)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_room",
		Description: "Get details of a specific room",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": map[string]interface{}{
					"type":        "string",
					"description": "Room ID to retrieve",
				},
			},
			Required: []string{"room_id"},
		},
	}, c.handleGetRoom)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "relay_stats",
		Description: "Get relay counters and room totals",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleRelayStats)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "relay_protocol",
		Description: "Describe the message protocol clients use to talk to the relay",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleRelayProtocol)
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiGet(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	return args
}

// Tool handlers

func (c *Client) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := url.Values{}
	if limit, ok := arguments(request)["limit"].(float64); ok && limit > 0 {
		query.Set("limit", strconv.Itoa(int(limit)))
	}

	path := "/api/rooms"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var list api.RoomList
	if err := c.apiGet(ctx, path, &list); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRoomList(list)), nil
}

func (c *Client) handleGetRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roomID, _ := arguments(request)["room_id"].(string)
	if roomID == "" {
		return mcp.NewToolResultError("room_id is required"), nil
	}

	var info room.Info
	if err := c.apiGet(ctx, "/api/rooms/"+url.PathEscape(roomID), &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatRoom(info)), nil
}

func (c *Client) handleRelayStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var stats api.Stats
	if err := c.apiGet(ctx, "/api/stats", &stats); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatStats(stats)), nil
}

func (c *Client) handleRelayProtocol(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(protocolDescription), nil
}

func formatRoom(info room.Info) string {
	state := "waiting for a second participant"
	if info.Ready {
		state = "ready"
	}
	participants := strings.Join(info.ParticipantIDs, ", ")
	if participants == "" {
		participants = "none"
	}
	return fmt.Sprintf("Room %s: %d/%d participants (%s)\nParticipants: %s\nCreated: %s\n",
		info.ID, info.Participants, room.Capacity, state, participants, info.CreatedAt.Format(time.RFC3339))
}

func formatRoomList(list api.RoomList) string {
	if list.Total == 0 {
		return "No active rooms.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active rooms: %d (showing %d)\n", list.Total, list.Count)
	for _, info := range list.Rooms {
		state := "waiting"
		if info.Ready {
			state = "ready"
		}
		fmt.Fprintf(&b, "- %s: %d/%d %s, created %s\n",
			info.ID, info.Participants, room.Capacity, state, info.CreatedAt.Format(time.RFC3339))
	}
	return b.String()
}

func formatStats(stats api.Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Connections: %d\n", stats.Connections)
	fmt.Fprintf(&b, "Active rooms: %d (created since start: %d)\n", stats.ActiveRooms, stats.RoomsCreated)
	fmt.Fprintf(&b, "Joins: %d, pairs formed: %d\n", stats.Joins, stats.Pairs)
	fmt.Fprintf(&b, "Frames relayed: %d, dropped: %d, malformed: %d\n", stats.Relayed, stats.Dropped, stats.Malformed)
	fmt.Fprintf(&b, "Send failures: %d, closes: %d\n", stats.SendFailures, stats.Closes)
	return b.String()
}
