package room

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Capacity is the number of participants a room pairs.
const Capacity = 2

const (
	idLength   = 12
	idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var (
	ErrRoomFull      = errors.New("room is full")
	ErrRoomNotFound  = errors.New("room not found")
	ErrAlreadyJoined = errors.New("connection already joined a room")
)

// Conn is a participant connection as seen by the registry and the dispatcher.
// Identity is the value returned by ID.
type Conn interface {
	// ID returns the connection's unique identity.
	ID() string

	// Send queues a frame for delivery without waiting for it.
	Send(frame []byte) error

	// Open reports whether the connection can still deliver frames.
	Open() bool
}

// Assignment describes the room a connection was placed in.
type Assignment struct {
	RoomID string

	// Participants is a snapshot of the room in join order, including the
	// joining connection.
	Participants []Conn
}

// Count returns the number of participants at assignment time.
func (a Assignment) Count() int {
	return len(a.Participants)
}

// Ready reports whether the assignment completed the room.
func (a Assignment) Ready() bool {
	return len(a.Participants) == Capacity
}

// Info is a read-only view of a room.
type Info struct {
	ID             string    `json:"id"`
	Participants   int       `json:"participants"`
	ParticipantIDs []string  `json:"participant_ids"`
	Ready          bool      `json:"ready"`
	CreatedAt      time.Time `json:"created_at"`
}

type room struct {
	id        string
	seats     seats
	createdAt time.Time
}

func (r *room) info() Info {
	members := r.seats.members()
	ids := lo.Map(members, func(c Conn, _ int) string {
		return c.ID()
	})
	return Info{
		ID:             r.id,
		Participants:   len(members),
		ParticipantIDs: ids,
		Ready:          len(members) == Capacity,
		CreatedAt:      r.createdAt,
	}
}

// Registry is the authoritative store of active rooms.
type Registry struct {
	mu      sync.Mutex
	rooms   map[string]*room
	members map[string]*room
	created uint64
	newID   func() (string, error)
	now     func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms:   make(map[string]*room),
		members: make(map[string]*room),
		newID:   generateRoomID,
		now:     time.Now,
	}
}

// Join assigns c to a joinable room, creating one when none has a free seat.
// onAssign, when non-nil, runs before the registry lock is released; it must
// not block or call back into the registry. If c already belongs to a room,
// Join returns that room's assignment together with ErrAlreadyJoined and does
// not call onAssign.
func (r *Registry) Join(c Conn, onAssign func(Assignment)) (Assignment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.members[c.ID()]; ok {
		return Assignment{RoomID: current.id, Participants: current.seats.members()}, ErrAlreadyJoined
	}

	target, err := r.findJoinableOrCreateLocked()
	if err != nil {
		return Assignment{}, err
	}

	if _, err := r.addParticipantLocked(target, c); err != nil {
		return Assignment{}, err
	}

	a := Assignment{RoomID: target.id, Participants: target.seats.members()}
	if onAssign != nil {
		onAssign(a)
	}
	return a, nil
}

// FindJoinableOrCreate returns the id of a room with a free seat. When no such
// room exists a new, empty room is created. The new room stays empty until
// AddParticipant is called; Join performs both steps atomically.
//
// Callers must follow up with AddParticipant. Until they do, Get, List and
// Count do not report the empty room, and a later FindJoinableOrCreate or Join
// hands it out again.
func (r *Registry) FindJoinableOrCreate() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, err := r.findJoinableOrCreateLocked()
	if err != nil {
		return "", err
	}
	return target.id, nil
}

// AddParticipant appends c to the room and returns the resulting participant
// count.
func (r *Registry) AddParticipant(roomID string, c Conn) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.rooms[roomID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	if current, ok := r.members[c.ID()]; ok {
		if current == target {
			return target.seats.len(), ErrAlreadyJoined
		}
		return 0, ErrAlreadyJoined
	}
	return r.addParticipantLocked(target, c)
}

// RemoveParticipant removes c from its room and deletes the room once it is
// empty. It is a no-op for connections that are not in a room.
func (r *Registry) RemoveParticipant(c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.members[c.ID()]
	if !ok {
		return
	}
	delete(r.members, c.ID())
	current.seats.remove(c.ID())

	if current.seats.len() == 0 {
		delete(r.rooms, current.id)
	}
}

// PeersOf returns the other participants of c's room.
func (r *Registry) PeersOf(c Conn) []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.members[c.ID()]
	if !ok {
		return nil
	}
	return lo.Filter(current.seats.members(), func(p Conn, _ int) bool {
		return p.ID() != c.ID()
	})
}

// RoomOf returns the id of the room c belongs to.
func (r *Registry) RoomOf(c Conn) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.members[c.ID()]
	if !ok {
		return "", false
	}
	return current.id, true
}

// Get returns a view of the room with the given id.
func (r *Registry) Get(id string) (Info, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.rooms[id]
	if !ok || target.seats.len() == 0 {
		return Info{}, ErrRoomNotFound
	}
	return target.info(), nil
}

// List returns a view of every room with at least one participant, in no
// particular order.
func (r *Registry) List() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	result := make([]Info, 0, len(r.rooms))
	for _, rm := range r.rooms {
		if rm.seats.len() == 0 {
			continue
		}
		result = append(result, rm.info())
	}
	return result
}

// Count returns the number of rooms with at least one participant.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, rm := range r.rooms {
		if rm.seats.len() > 0 {
			n++
		}
	}
	return n
}

// Created returns the number of rooms created since the registry started.
func (r *Registry) Created() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.created
}

// findJoinableOrCreateLocked must be called with r.mu held.
func (r *Registry) findJoinableOrCreateLocked() (*room, error) {
	for _, rm := range r.rooms {
		if rm.seats.len() < Capacity {
			return rm, nil
		}
	}

	id, err := r.uniqueIDLocked()
	if err != nil {
		return nil, err
	}

	rm := &room{id: id, createdAt: r.now()}
	r.rooms[id] = rm
	r.created++
	return rm, nil
}

// addParticipantLocked must be called with r.mu held.
func (r *Registry) addParticipantLocked(target *room, c Conn) (int, error) {
	if !target.seats.add(c) {
		return target.seats.len(), fmt.Errorf("%w: %s", ErrRoomFull, target.id)
	}
	r.members[c.ID()] = target
	return target.seats.len(), nil
}

// uniqueIDLocked re-rolls until the id does not collide with a live room.
func (r *Registry) uniqueIDLocked() (string, error) {
	const maxAttempts = 16
	for i := 0; i < maxAttempts; i++ {
		id, err := r.newID()
		if err != nil {
			return "", fmt.Errorf("failed to generate room id: %w", err)
		}
		if _, exists := r.rooms[id]; !exists {
			return id, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique room id after %d attempts", maxAttempts)
}

// generateRoomID returns a random alphanumeric room id.
func generateRoomID() (string, error) {
	// Largest multiple of len(idAlphabet) that fits in a byte, for unbiased sampling.
	const limit = 256 - 256%len(idAlphabet)

	id := make([]byte, 0, idLength)
	buf := make([]byte, idLength*2)
	for len(id) < idLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			id = append(id, idAlphabet[int(b)%len(idAlphabet)])
			if len(id) == idLength {
				break
			}
		}
	}
	return string(id), nil
}
