package rooms

import (
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// MaxParticipants is the fixed capacity of every room.
const MaxParticipants = 5

// DefaultPlaceholder is the buffer content of a freshly created room.
const DefaultPlaceholder = "// Start coding here..."

const (
	maxIDLength       = 128
	displayNamePrefix = "User_"
	displayNameLength = 4
)

var (
	ErrInvalidID     = errors.New("invalid room id")
	ErrNotFound      = errors.New("room does not exist")
	ErrFull          = errors.New("room is full")
	ErrAlreadyJoined = errors.New("already a participant")
)

type (
	// Participant is a connection's membership record in a room.
	Participant struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}

	// Summary is a read-only view of a room, safe to hand to other goroutines.
	Summary struct {
		ID           string        `json:"id"`
		Instance     string        `json:"instance"`
		Participants []Participant `json:"participants"`
		Users        int           `json:"users"`
		Members      int           `json:"members"`
		BufferLength int           `json:"bufferLength"`
		Edits        int64         `json:"edits"`
		CreatedAt    int64         `json:"createdAt"`
		LastActive   int64         `json:"lastActive"`
	}
)

// ValidateID reports whether id can name a room.
func ValidateID(id string) error {
	if id == "" {
		return ErrInvalidID
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("%w: longer than %d bytes", ErrInvalidID, maxIDLength)
	}
	return nil
}

// DisplayName derives the participant name shown to other members.
func DisplayName(connID string) string {
	prefix := connID
	if len(prefix) > displayNameLength {
		prefix = prefix[:displayNameLength]
	}
	return displayNamePrefix + prefix
}

func NewParticipant(connID string) Participant {
	return Participant{ID: connID, Username: DisplayName(connID)}
}

// Room is a shared editing session. Members are the connections bound to the
// room and receive its broadcasts; participants are the members that joined
// and make up the roster. Room is not safe for concurrent use.
type Room struct {
	ID         string
	Instance   string
	CreatedAt  time.Time
	LastActive time.Time

	participants []Participant
	members      []string
	buffer       string
	edits        int64
}

func NewRoom(id, placeholder string) *Room {
	now := time.Now()
	return &Room{
		ID:         id,
		Instance:   ulid.Make().String(),
		CreatedAt:  now,
		LastActive: now,
		buffer:     placeholder,
	}
}

// Participants returns the roster in join order. The result is never nil so
// it encodes as an empty JSON array.
func (r *Room) Participants() []Participant {
	out := make([]Participant, len(r.participants))
	copy(out, r.participants)
	return out
}

// Members returns the bound connection ids in bind order.
func (r *Room) Members() []string {
	out := make([]string, len(r.members))
	copy(out, r.members)
	return out
}

func (r *Room) ParticipantCount() int { return len(r.participants) }

func (r *Room) MemberCount() int { return len(r.members) }

func (r *Room) Buffer() string { return r.buffer }

func (r *Room) Edits() int64 { return r.edits }

func (r *Room) HasParticipant(connID string) bool {
	return indexOfParticipant(r.participants, connID) >= 0
}

func (r *Room) HasMember(connID string) bool {
	return indexOf(r.members, connID) >= 0
}

// Bind adds connID to the broadcast group if it is not there yet.
func (r *Room) Bind(connID string) {
	if r.HasMember(connID) {
		return
	}
	r.members = append(r.members, connID)
}

// AddParticipant appends connID to the roster and binds it.
func (r *Room) AddParticipant(connID string) (Participant, error) {
	if r.HasParticipant(connID) {
		return Participant{}, ErrAlreadyJoined
	}
	if len(r.participants) >= MaxParticipants {
		return Participant{}, ErrFull
	}
	p := NewParticipant(connID)
	r.participants = append(r.participants, p)
	r.Bind(connID)
	r.touch()
	return p, nil
}

// Remove drops connID from both the roster and the broadcast group and
// reports whether it was a participant.
func (r *Room) Remove(connID string) bool {
	if i := indexOf(r.members, connID); i >= 0 {
		r.members = append(r.members[:i], r.members[i+1:]...)
	}
	i := indexOfParticipant(r.participants, connID)
	if i < 0 {
		return false
	}
	r.participants = append(r.participants[:i], r.participants[i+1:]...)
	r.touch()
	return true
}

// SetBuffer replaces the whole buffer. Last writer wins.
func (r *Room) SetBuffer(content string) {
	r.buffer = content
	r.edits++
	r.touch()
}

// Reset replaces the room state with a fresh incarnation. Bound members are
// kept; the roster and buffer are not.
func (r *Room) Reset(placeholder string) {
	now := time.Now()
	r.Instance = ulid.Make().String()
	r.CreatedAt = now
	r.LastActive = now
	r.participants = nil
	r.buffer = placeholder
	r.edits = 0
}

func (r *Room) Summary() Summary {
	return Summary{
		ID:           r.ID,
		Instance:     r.Instance,
		Participants: r.Participants(),
		Users:        len(r.participants),
		Members:      len(r.members),
		BufferLength: len(r.buffer),
		Edits:        r.edits,
		CreatedAt:    r.CreatedAt.UnixMilli(),
		LastActive:   r.LastActive.UnixMilli(),
	}
}

func (r *Room) touch() { r.LastActive = time.Now() }

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func indexOfParticipant(ps []Participant, id string) int {
	for i, p := range ps {
		if p.ID == id {
			return i
		}
	}
	return -1
}
