// Package envelope defines the wire format exchanged over relay connections.
//
// Every text frame carries exactly one JSON envelope:
//
//	{"type": "move", "payload": {"x": 1, "y": 2}}
//
// The type field is required. The payload is optional and, when present, must
// be a JSON object (or null). The server only interprets three kinds:
//   - join: a client asks to be paired (client to server)
//   - joined: the server confirms the room assignment (server to client)
//   - ready: the room now holds two participants (server to both clients)
//
// Every other kind is passthrough traffic. Passthrough frames are relayed as
// the exact bytes received, so the payload is never decoded.
package envelope
