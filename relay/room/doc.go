// Package room provides the session registry of the pair relay.
//
// The room package implements:
//   - Thread-safe room storage keyed by opaque room identifiers
//   - Atomic find-or-create of a joinable room plus participant append
//   - Participant removal with immediate collection of empty rooms
//   - Peer lookup for relaying frames inside a room
//
// Core Types:
//
// Registry is the single shared, mutable store touched by every connection
// handler. Conn is the narrow view of a transport connection the registry
// needs: a stable identity, non-blocking delivery and liveness.
//
// Invariants:
//
// A room holds at most two participants. A room with no participants is never
// present in the registry. A connection belongs to at most one room.
//
// Concurrency:
//
// All operations serialize on one registry mutex. Join performs the room
// choice and the append inside the same critical section, so concurrent joins
// can neither over-fill a room nor create a second room while a joinable one
// exists.
//
// Usage:
//
//	rooms := room.NewRegistry()
//
//	a, err := rooms.Join(conn, func(a room.Assignment) {
//		conn.Send(envelope.Joined(a.RoomID))
//	})
//
//	for _, peer := range rooms.PeersOf(conn) {
//		peer.Send(frame)
//	}
//
//	rooms.RemoveParticipant(conn)
package room
