package core

import (
	"context"
	"errors"
)

var ErrRoomNotFound = errors.New("room not found")

type (
	// RoomActivity is the metadata kept about a room id. It never carries the
	// room's buffer.
	RoomActivity struct {
		ID           string `json:"id"`
		Instance     string `json:"instance"`
		CreatedAt    int64  `json:"createdAt"`
		LastActive   int64  `json:"lastActive"`
		Participants int    `json:"participants"`
		Edits        int64  `json:"edits"`
		ClosedAt     int64  `json:"closedAt,omitempty"`
	}

	ActivityStore interface {
		// TouchRoom inserts or replaces the record for activity.ID.
		TouchRoom(ctx context.Context, activity RoomActivity) error
		// ListRooms returns every record, most recently active first.
		ListRooms(ctx context.Context) ([]RoomActivity, error)
		FindRoom(ctx context.Context, roomID string) (*RoomActivity, error)
		DeleteRoom(ctx context.Context, roomID string) error
		Close() error
	}
)
