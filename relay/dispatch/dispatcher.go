package dispatch

import (
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/wricardo/pair-relay/relay/envelope"
	"github.com/wricardo/pair-relay/relay/room"
)

// Stats is a snapshot of dispatcher counters.
type Stats struct {
	Joins        uint64 `json:"joins"`
	Pairs        uint64 `json:"pairs"`
	Relayed      uint64 `json:"relayed"`
	Dropped      uint64 `json:"dropped"`
	Malformed    uint64 `json:"malformed"`
	SendFailures uint64 `json:"send_failures"`
	Closes       uint64 `json:"closes"`
}

type counters struct {
	joins        atomic.Uint64
	pairs        atomic.Uint64
	relayed      atomic.Uint64
	dropped      atomic.Uint64
	malformed    atomic.Uint64
	sendFailures atomic.Uint64
	closes       atomic.Uint64
}

// Dispatcher handles inbound frames and connection closes.
type Dispatcher struct {
	rooms *room.Registry
	log   zerolog.Logger
	stats counters
}

// New creates a dispatcher backed by the given registry.
func New(rooms *room.Registry, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		rooms: rooms,
		log:   log.With().Str("component", "dispatch").Logger(),
	}
}

// Rooms returns the registry the dispatcher assigns connections to.
func (d *Dispatcher) Rooms() *room.Registry {
	return d.rooms
}

// HandleMessage processes one inbound frame from c.
func (d *Dispatcher) HandleMessage(c room.Conn, frame []byte) {
	env, err := envelope.Parse(frame)
	if err != nil {
		d.stats.malformed.Add(1)
		d.log.Debug().Err(err).Str("conn", c.ID()).Int("bytes", len(frame)).Msg("dropping malformed frame")
		return
	}

	if env.Type.Passthrough() {
		d.relay(c, env.Type, frame)
		return
	}
	d.join(c)
}

// HandleClose releases c's seat. It is safe to call more than once.
func (d *Dispatcher) HandleClose(c room.Conn) {
	d.stats.closes.Add(1)
	if roomID, ok := d.rooms.RoomOf(c); ok {
		d.log.Debug().Str("conn", c.ID()).Str("room", roomID).Msg("participant left")
	}
	d.rooms.RemoveParticipant(c)
}

// Stats returns the current counter values.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Joins:        d.stats.joins.Load(),
		Pairs:        d.stats.pairs.Load(),
		Relayed:      d.stats.relayed.Load(),
		Dropped:      d.stats.dropped.Load(),
		Malformed:    d.stats.malformed.Load(),
		SendFailures: d.stats.sendFailures.Load(),
		Closes:       d.stats.closes.Load(),
	}
}

func (d *Dispatcher) join(c room.Conn) {
	// Frames are queued while the registry lock is held so a participant
	// always receives joined before ready.
	a, err := d.rooms.Join(c, func(a room.Assignment) {
		d.send(c, envelope.Joined(a.RoomID))
		if !a.Ready() {
			return
		}
		ready := envelope.Ready()
		for _, p := range a.Participants {
			d.send(p, ready)
		}
	})

	switch {
	case errors.Is(err, room.ErrAlreadyJoined):
		d.log.Debug().Str("conn", c.ID()).Str("room", a.RoomID).Msg("repeated join")
		d.send(c, envelope.Joined(a.RoomID))
		return
	case errors.Is(err, room.ErrRoomFull):
		d.log.Error().Err(err).Str("conn", c.ID()).Msg("room over capacity, dropping join")
		return
	case err != nil:
		d.log.Error().Err(err).Str("conn", c.ID()).Msg("join failed")
		return
	}

	d.stats.joins.Add(1)
	if a.Ready() {
		d.stats.pairs.Add(1)
	}
	d.log.Info().Str("conn", c.ID()).Str("room", a.RoomID).Int("participants", a.Count()).Msg("participant joined")
}

func (d *Dispatcher) relay(c room.Conn, kind envelope.Kind, frame []byte) {
	peers := d.rooms.PeersOf(c)
	if len(peers) == 0 {
		d.stats.dropped.Add(1)
		d.log.Debug().Str("conn", c.ID()).Str("type", string(kind)).Msg("no peer to relay to")
		return
	}

	delivered := 0
	for _, p := range peers {
		if !p.Open() {
			continue
		}
		if d.send(p, frame) {
			delivered++
		}
	}

	if delivered == 0 {
		d.stats.dropped.Add(1)
		return
	}
	d.stats.relayed.Add(1)
}

func (d *Dispatcher) send(c room.Conn, frame []byte) bool {
	if err := c.Send(frame); err != nil {
		d.stats.sendFailures.Add(1)
		d.log.Debug().Err(err).Str("conn", c.ID()).Msg("send failed, skipping connection")
		return false
	}
	return true
}
