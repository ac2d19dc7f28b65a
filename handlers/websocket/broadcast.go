package websocket

import (
	"coderooms/rooms"

	"github.com/sirupsen/logrus"
)

// Transport delivers a named event to a single connection. Implementations
// must keep per-connection send order and must not wait for the client.
type Transport interface {
	Emit(connID string, event string, args ...any) error
}

// Broadcaster fans events out to the members of a room. Delivery is best
// effort: failures are logged and counted, never retried.
type Broadcaster struct {
	transport Transport
	observer  Observer
}

func NewBroadcaster(transport Transport, observer Observer) *Broadcaster {
	if observer == nil {
		observer = nopObserver{}
	}
	return &Broadcaster{transport: transport, observer: observer}
}

func (b *Broadcaster) ToConn(connID, event string, args ...any) {
	if err := b.transport.Emit(connID, event, args...); err != nil {
		logrus.WithFields(logrus.Fields{
			"conn_id": connID,
			"event":   event,
		}).WithError(err).Debug("Event delivery failed")
		b.observer.DeliveryFailed(event)
	}
}

func (b *Broadcaster) ToRoom(room *rooms.Room, event string, args ...any) {
	for _, connID := range room.Members() {
		b.ToConn(connID, event, args...)
	}
}

func (b *Broadcaster) ToRoomExcept(room *rooms.Room, except, event string, args ...any) {
	for _, connID := range room.Members() {
		if connID == except {
			continue
		}
		b.ToConn(connID, event, args...)
	}
}
