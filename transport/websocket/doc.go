// Package websocket provides the WebSocket transport for the pair relay.
//
// The websocket package implements:
//   - HTTP upgrade with an optional origin allow-list
//   - One read pump and one write pump per connection
//   - A bounded, non-blocking outbound queue per connection
//   - Keepalive pings and read deadlines
//   - Connection lifecycle tracking for graceful shutdown
//
// Architecture:
//
// The Handler owns every live Client. The read pump hands each text frame to
// the dispatcher synchronously, so frames from one connection are processed
// in the order they arrive. The write pump drains the outbound queue and
// writes exactly one envelope per WebSocket frame.
//
// Message Protocol:
//
//	Client: {"type": "join"}
//	Server: {"type": "joined", "payload": {"roomId": "k3P9zQa1Xb7T"}}
//	Server: {"type": "ready", "payload": {}}
//	Client: {"type": "move", "payload": {"x": 1, "y": 2}}  (relayed to the peer)
//
// Usage:
//
//	rooms := room.NewRegistry()
//	handler := websocket.NewHandler(dispatch.New(rooms, log), websocket.DefaultOptions(), log)
//	http.Handle("/ws", handler)
//	defer handler.Close()
//
// Connection Lifecycle:
//
// 1. Client connects and is assigned a uuid identity
// 2. Frames are dispatched as they arrive
// 3. Disconnect, read error or a missed pong ends the read pump
// 4. The dispatcher releases the client's seat and the write pump exits
package websocket
