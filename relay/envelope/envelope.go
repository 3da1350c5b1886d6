package envelope

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrMalformed is returned when a frame does not decode into an Envelope.
var ErrMalformed = errors.New("malformed envelope")

// Kind discriminates envelopes.
type Kind string

const (
	KindJoin   Kind = "join"
	KindJoined Kind = "joined"
	KindReady  Kind = "ready"
)

// Passthrough reports whether envelopes of this kind are relayed to peers
// instead of being handled by the server.
func (k Kind) Passthrough() bool {
	return k != KindJoin
}

// Envelope is a decoded frame. Payload keeps the raw bytes of the payload
// field and is never inspected for passthrough kinds.
type Envelope struct {
	Type    Kind            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinedPayload is the payload of a joined envelope.
type JoinedPayload struct {
	RoomID string `json:"roomId"`
}

// Parse decodes and validates a single frame. Frames are relayed as received,
// so one that is not valid UTF-8 is rejected here rather than reaching a peer
// as an invalid text frame.
func Parse(frame []byte) (Envelope, error) {
	if !utf8.Valid(frame) {
		return Envelope{}, fmt.Errorf("%w: frame is not valid UTF-8", ErrMalformed)
	}

	trimmed := bytes.TrimSpace(frame)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Envelope{}, fmt.Errorf("%w: frame is not a JSON object", ErrMalformed)
	}

	var raw struct {
		Type    json.RawMessage `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var kind string
	if len(raw.Type) == 0 {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	if err := json.Unmarshal(raw.Type, &kind); err != nil {
		return Envelope{}, fmt.Errorf("%w: type must be a string", ErrMalformed)
	}
	if kind == "" {
		return Envelope{}, fmt.Errorf("%w: empty type", ErrMalformed)
	}

	payload := bytes.TrimSpace(raw.Payload)
	switch {
	case len(payload) == 0, bytes.Equal(payload, []byte("null")):
		payload = nil
	case payload[0] != '{':
		return Envelope{}, fmt.Errorf("%w: payload must be an object", ErrMalformed)
	}

	return Envelope{Type: Kind(kind), Payload: payload}, nil
}

// Joined builds the frame confirming a room assignment.
func Joined(roomID string) []byte {
	return mustMarshal(struct {
		Type    Kind          `json:"type"`
		Payload JoinedPayload `json:"payload"`
	}{KindJoined, JoinedPayload{RoomID: roomID}})
}

// Ready builds the frame announcing that a room is full.
func Ready() []byte {
	return mustMarshal(struct {
		Type    Kind     `json:"type"`
		Payload struct{} `json:"payload"`
	}{Type: KindReady})
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Only fixed struct shapes reach here.
		panic(fmt.Sprintf("envelope: marshal %T: %v", v, err))
	}
	return data
}
