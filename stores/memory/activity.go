package memory

import (
	"coderooms/core"
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

type activityStore struct {
	mu    sync.RWMutex
	rooms map[string]core.RoomActivity
}

func NewActivityStore() core.ActivityStore {
	return &activityStore{
		rooms: make(map[string]core.RoomActivity),
	}
}

func (s *activityStore) TouchRoom(ctx context.Context, activity core.RoomActivity) error {
	if activity.ID == "" {
		return fmt.Errorf("room id is required")
	}

	s.mu.Lock()
	s.rooms[activity.ID] = activity
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"room_id":      activity.ID,
		"participants": activity.Participants,
	}).Debug("Room activity recorded")
	return nil
}

func (s *activityStore) ListRooms(ctx context.Context) ([]core.RoomActivity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rooms := make([]core.RoomActivity, 0, len(s.rooms))
	for _, activity := range s.rooms {
		rooms = append(rooms, activity)
	}
	core.SortByActivity(rooms)
	return rooms, nil
}

func (s *activityStore) FindRoom(ctx context.Context, roomID string) (*core.RoomActivity, error) {
	s.mu.RLock()
	activity, ok := s.rooms[roomID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("room %s: %w", roomID, core.ErrRoomNotFound)
	}
	return &activity, nil
}

func (s *activityStore) DeleteRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return fmt.Errorf("room id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rooms, roomID)
	return nil
}

func (s *activityStore) Close() error { return nil }
