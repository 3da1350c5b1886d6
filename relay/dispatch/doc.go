// Package dispatch routes inbound relay frames.
//
// A Dispatcher sits between the transport and the room registry. The
// transport calls HandleMessage for every inbound frame and HandleClose once
// the connection is gone. Calls for one connection must be serialized by the
// caller; calls for different connections may run concurrently.
//
// A join frame places the sender in a room and answers with a joined frame.
// When the room becomes full both participants receive a ready frame. Every
// other frame is forwarded, byte for byte, to the sender's open peers.
//
// Failures never reach the transport: malformed frames, frames from
// connections that have not joined and failed sends to a peer are logged and
// dropped.
package dispatch
