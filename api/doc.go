// Package api provides the HTTP surface of the pair relay.
//
// The api package implements:
//   - WebSocket upgrade at /ws
//   - A health probe
//   - Read-only room introspection
//   - Relay counters
//
// Endpoints:
//
//   - GET /ws - Upgrade to a relay connection
//   - GET /api/health - Liveness probe
//   - GET /api/rooms - List active rooms (order=asc|desc, limit=N)
//   - GET /api/rooms/{id} - Get one room
//   - GET /api/stats - Dispatcher counters, room and connection totals
//
// Request/Response Format:
//
// All /api endpoints return JSON. Errors are returned as JSON with an
// appropriate HTTP status code:
//
//	{
//	  "error": "room not found"
//	}
package api
