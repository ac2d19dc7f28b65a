package websocket

import (
	"coderooms/core"
	"coderooms/rooms"
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// ErrStopped is returned by queries issued after the gateway loop exited.
var ErrStopped = errors.New("gateway stopped")

const (
	reasonInvalidID = "invalid_id"
	reasonNotFound  = "not_found"
	reasonFull      = "full"
	reasonOtherRoom = "other_room"
)

type (
	// Observer receives lifecycle notifications, typically a metrics collector.
	Observer interface {
		RoomOpened()
		RoomClosed()
		ConnectionOpened()
		ConnectionClosed()
		EventHandled(event string)
		Rejected(reason string)
		DeliveryFailed(event string)
	}

	// ActivityRecorder receives room metadata snapshots. Record must not block.
	ActivityRecorder interface {
		Record(activity core.RoomActivity)
	}

	Options struct {
		CreatePolicy rooms.CreatePolicy
		Placeholder  string
		QueueSize    int
		Recorder     ActivityRecorder
		Observer     Observer
	}
)

type sessionState int

const (
	stateUnbound sessionState = iota
	stateBound
)

// session is the per-connection state. A closed connection has no session.
type session struct {
	id     string
	state  sessionState
	roomID string
}

// Gateway is the session state machine. All room state is owned by the
// goroutine running Run; Dispatch may be called directly only when nothing
// else is driving the gateway.
type Gateway struct {
	registry *rooms.Registry
	engine   *Broadcaster
	sessions map[string]*session
	opts     Options

	events chan Event
	done   chan struct{}
}

func NewGateway(registry *rooms.Registry, transport Transport, opts Options) *Gateway {
	if opts.CreatePolicy == "" {
		opts.CreatePolicy = rooms.CreateJoins
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	return &Gateway{
		registry: registry,
		engine:   NewBroadcaster(transport, opts.Observer),
		sessions: make(map[string]*session),
		opts:     opts,
		events:   make(chan Event, opts.QueueSize),
		done:     make(chan struct{}),
	}
}

// Run processes events one at a time until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) {
	defer close(g.done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-g.events:
			g.Dispatch(ev)
		}
	}
}

// Submit queues ev for the loop, preserving the order of calls.
func (g *Gateway) Submit(ev Event) {
	select {
	case g.events <- ev:
	case <-g.done:
		logrus.WithFields(logrus.Fields{
			"event":   ev.Name,
			"conn_id": ev.ConnID,
		}).Debug("Gateway stopped, dropping event")
	}
}

// Rooms returns a summary of every live room.
func (g *Gateway) Rooms(ctx context.Context) ([]rooms.Summary, error) {
	reply := make(chan []rooms.Summary, 1)
	err := g.ask(ctx, func() {
		out := make([]rooms.Summary, 0, g.registry.Len())
		g.registry.ForEach(func(r *rooms.Room) { out = append(out, r.Summary()) })
		reply <- out
	})
	if err != nil {
		return nil, err
	}
	return await(ctx, g.done, reply)
}

// Room returns the summary of a live room.
func (g *Gateway) Room(ctx context.Context, roomID string) (rooms.Summary, bool, error) {
	type result struct {
		summary rooms.Summary
		ok      bool
	}
	reply := make(chan result, 1)
	err := g.ask(ctx, func() {
		room, ok := g.registry.Get(roomID)
		if !ok {
			reply <- result{}
			return
		}
		reply <- result{summary: room.Summary(), ok: true}
	})
	if err != nil {
		return rooms.Summary{}, false, err
	}
	res, err := await(ctx, g.done, reply)
	return res.summary, res.ok, err
}

func (g *Gateway) ask(ctx context.Context, fn func()) error {
	select {
	case g.events <- Event{query: fn}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-g.done:
		return ErrStopped
	}
}

func await[T any](ctx context.Context, done <-chan struct{}, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-done:
		return zero, ErrStopped
	}
}

// Dispatch handles a single event.
func (g *Gateway) Dispatch(ev Event) {
	if ev.query != nil {
		ev.query()
		return
	}

	switch ev.Name {
	case EventConnect:
		g.connect(ev.ConnID)
	case EventCreateRoom:
		g.createRoom(ev.ConnID, ev.RoomID)
	case EventJoinRoom:
		g.joinRoom(ev.ConnID, ev.RoomID)
	case EventCodeChange:
		g.codeChange(ev.ConnID, ev.RoomID, ev.Code)
	case EventLeaveRoom:
		g.leaveRoom(ev.ConnID)
	case EventDisconnect:
		g.disconnect(ev.ConnID)
	default:
		logrus.WithField("event", ev.Name).Warn("Ignoring unknown event")
		return
	}
	g.opts.Observer.EventHandled(ev.Name)
}

func (g *Gateway) connect(connID string) {
	g.session(connID)
}

// session returns the state for connID, opening it as Unbound if needed.
func (g *Gateway) session(connID string) *session {
	s, ok := g.sessions[connID]
	if !ok {
		s = &session{id: connID}
		g.sessions[connID] = s
		g.opts.Observer.ConnectionOpened()
	}
	return s
}

func (g *Gateway) createRoom(connID, roomID string) {
	log := logrus.WithFields(logrus.Fields{"conn_id": connID, "room_id": roomID})

	if err := rooms.ValidateID(roomID); err != nil {
		g.reject(connID, reasonInvalidID, EventRoomError, msgInvalidRoomID)
		return
	}
	s := g.session(connID)
	if s.state == stateBound && s.roomID != roomID {
		g.reject(connID, reasonOtherRoom, EventRoomError, msgOtherRoom)
		return
	}

	room, exists := g.registry.Get(roomID)
	switch {
	case exists && g.opts.CreatePolicy == rooms.CreateJoins:
		log.Debug("Room already exists, joining instead")
		g.joinRoom(connID, roomID)
		return
	case exists:
		room.Reset(g.opts.Placeholder)
		log.Warn("Room state reset by createRoom")
	default:
		room = g.registry.Create(roomID, g.opts.Placeholder)
		g.opts.Observer.RoomOpened()
		log.Info("Room created")
	}

	g.bind(s, room)
	g.engine.ToConn(connID, EventRoomUsers, room.Participants())
	g.engine.ToConn(connID, EventCodeUpdate, room.Buffer())
	g.record(room, 0)
}

func (g *Gateway) joinRoom(connID, roomID string) {
	// An invalid id can never name a live room.
	if err := rooms.ValidateID(roomID); err != nil {
		g.reject(connID, reasonInvalidID, EventRoomError, msgRoomNotFound)
		return
	}
	s := g.session(connID)

	room, ok := g.registry.Get(roomID)
	if !ok {
		g.reject(connID, reasonNotFound, EventRoomError, msgRoomNotFound)
		return
	}
	if s.state == stateBound && s.roomID != roomID {
		g.reject(connID, reasonOtherRoom, EventRoomError, msgOtherRoom)
		return
	}

	_, err := room.AddParticipant(connID)
	switch {
	case errors.Is(err, rooms.ErrAlreadyJoined):
		g.engine.ToConn(connID, EventRoomUsers, room.Participants())
		g.engine.ToConn(connID, EventCodeUpdate, room.Buffer())
		return
	case errors.Is(err, rooms.ErrFull):
		g.reject(connID, reasonFull, EventRoomFull)
		return
	}

	g.bind(s, room)
	logrus.WithFields(logrus.Fields{
		"conn_id":      connID,
		"room_id":      roomID,
		"participants": room.ParticipantCount(),
	}).Info("Participant joined")

	g.engine.ToRoom(room, EventRoomUsers, room.Participants())
	g.engine.ToConn(connID, EventCodeUpdate, room.Buffer())
	g.record(room, 0)
}

// codeChange replaces the buffer of an existing room and relays it to every
// other member. Edits for unknown rooms are dropped without a reply.
func (g *Gateway) codeChange(connID, roomID, code string) {
	room, ok := g.registry.Get(roomID)
	if !ok {
		logrus.WithFields(logrus.Fields{"conn_id": connID, "room_id": roomID}).Debug("Dropping edit for unknown room")
		return
	}
	room.SetBuffer(code)
	g.engine.ToRoomExcept(room, connID, EventCodeUpdate, code)
	g.record(room, 0)
}

func (g *Gateway) leaveRoom(connID string) {
	s, ok := g.sessions[connID]
	if !ok || s.state != stateBound {
		return
	}
	g.release(s)
}

func (g *Gateway) disconnect(connID string) {
	s, ok := g.sessions[connID]
	if !ok {
		return
	}
	if s.state == stateBound {
		g.release(s)
	}
	delete(g.sessions, connID)
	g.opts.Observer.ConnectionClosed()
}

// release unbinds s from its room, tells the remaining members about the
// new roster and discards the room once it is empty.
func (g *Gateway) release(s *session) {
	roomID := s.roomID
	s.state, s.roomID = stateUnbound, ""

	room, ok := g.registry.Get(roomID)
	if !ok {
		return
	}

	wasParticipant := room.Remove(s.id)
	if wasParticipant && room.MemberCount() > 0 {
		g.engine.ToRoom(room, EventRoomUsers, room.Participants())
	}

	if (wasParticipant && room.ParticipantCount() == 0) || room.MemberCount() == 0 {
		g.closeRoom(room)
		return
	}
	g.record(room, 0)
}

func (g *Gateway) closeRoom(room *rooms.Room) {
	for _, connID := range room.Members() {
		if s, ok := g.sessions[connID]; ok && s.roomID == room.ID {
			s.state, s.roomID = stateUnbound, ""
		}
	}
	g.registry.Remove(room.ID)
	g.opts.Observer.RoomClosed()
	g.record(room, room.LastActive.UnixMilli())

	logrus.WithField("room_id", room.ID).Info("Room closed")
}

func (g *Gateway) bind(s *session, room *rooms.Room) {
	s.state, s.roomID = stateBound, room.ID
	room.Bind(s.id)
}

func (g *Gateway) reject(connID, reason, event string, args ...any) {
	logrus.WithFields(logrus.Fields{"conn_id": connID, "reason": reason}).Debug("Room request rejected")
	g.opts.Observer.Rejected(reason)
	g.engine.ToConn(connID, event, args...)
}

func (g *Gateway) record(room *rooms.Room, closedAt int64) {
	g.opts.Recorder.Record(core.RoomActivity{
		ID:           room.ID,
		Instance:     room.Instance,
		CreatedAt:    room.CreatedAt.UnixMilli(),
		LastActive:   room.LastActive.UnixMilli(),
		Participants: room.ParticipantCount(),
		Edits:        room.Edits(),
		ClosedAt:     closedAt,
	})
}

type nopObserver struct{}

func (nopObserver) RoomOpened()           {}
func (nopObserver) RoomClosed()           {}
func (nopObserver) ConnectionOpened()     {}
func (nopObserver) ConnectionClosed()     {}
func (nopObserver) EventHandled(string)   {}
func (nopObserver) Rejected(string)       {}
func (nopObserver) DeliveryFailed(string) {}

type nopRecorder struct{}

func (nopRecorder) Record(core.RoomActivity) {}
