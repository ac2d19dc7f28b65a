package rooms

import (
	"fmt"
	"sort"
)

// CreatePolicy decides what createRoom does when the id is already taken.
type CreatePolicy string

const (
	// CreateJoins treats createRoom on a live id as joinRoom.
	CreateJoins CreatePolicy = "join"
	// CreateResets replaces the live room's roster and buffer.
	CreateResets CreatePolicy = "reset"
)

func ParseCreatePolicy(s string) (CreatePolicy, error) {
	switch CreatePolicy(s) {
	case "", CreateJoins:
		return CreateJoins, nil
	case CreateResets:
		return CreateResets, nil
	}
	return "", fmt.Errorf("unknown create policy %q", s)
}

// Registry owns every live room. It is meant to be driven by a single
// goroutine and does no locking of its own.
type Registry struct {
	rooms map[string]*Room
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]*Room)}
}

// Create registers a fresh room under id, replacing whatever was there.
func (r *Registry) Create(id, placeholder string) *Room {
	room := NewRoom(id, placeholder)
	r.rooms[id] = room
	return room
}

func (r *Registry) Get(id string) (*Room, bool) {
	room, ok := r.rooms[id]
	return room, ok
}

func (r *Registry) Remove(id string) {
	delete(r.rooms, id)
}

func (r *Registry) Len() int { return len(r.rooms) }

// ForEach visits rooms in id order.
func (r *Registry) ForEach(fn func(*Room)) {
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fn(r.rooms[id])
	}
}
