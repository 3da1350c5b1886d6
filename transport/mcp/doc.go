// Package mcp exposes relay introspection over the Model Context Protocol.
//
// The mcp package implements a thin client that proxies every tool call to
// the relay's REST API, so the same tools work whether the MCP server runs
// inside the relay process (POST /mcp) or as a separate stdio process.
//
// Tools:
//   - list_rooms: active rooms, newest first
//   - get_room: one room by id
//   - relay_stats: dispatcher counters and room totals
//   - relay_protocol: how clients talk to the relay
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	if err := server.ServeStdio(client.GetMCPServer()); err != nil {
//		log.Fatal(err)
//	}
package mcp
