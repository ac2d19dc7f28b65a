package redis

import (
	"coderooms/core"
	"context"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	indexKey   = "coderooms:rooms"
	roomPrefix = "coderooms:room:"
)

type activityStore struct {
	rdb *goredis.Client
}

// NewActivityStore keeps one hash per room plus a sorted set of room ids
// scored by last activity.
func NewActivityStore(rdb *goredis.Client) core.ActivityStore {
	return &activityStore{rdb: rdb}
}

func roomKey(roomID string) string { return roomPrefix + roomID }

func (s *activityStore) TouchRoom(ctx context.Context, activity core.RoomActivity) error {
	if activity.ID == "" {
		return fmt.Errorf("room id is required")
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, roomKey(activity.ID), map[string]any{
			"instance":     activity.Instance,
			"created_at":   activity.CreatedAt,
			"last_active":  activity.LastActive,
			"participants": activity.Participants,
			"edits":        activity.Edits,
			"closed_at":    activity.ClosedAt,
		})
		pipe.ZAdd(ctx, indexKey, goredis.Z{Score: float64(activity.LastActive), Member: activity.ID})
		return nil
	})
	if err != nil {
		logrus.WithError(err).WithField("room_id", activity.ID).Error("Failed to record room activity")
		return fmt.Errorf("record room activity: %w", err)
	}
	return nil
}

func (s *activityStore) ListRooms(ctx context.Context) ([]core.RoomActivity, error) {
	ids, err := s.rdb.ZRevRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list room ids: %w", err)
	}

	cmds := make([]*goredis.MapStringStringCmd, len(ids))
	_, err = s.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, roomKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load room activity: %w", err)
	}

	rooms := make([]core.RoomActivity, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		activity, err := decodeActivity(ids[i], fields)
		if err != nil {
			logrus.WithError(err).WithField("room_id", ids[i]).Warn("Skipping malformed room activity")
			continue
		}
		rooms = append(rooms, activity)
	}

	core.SortByActivity(rooms)
	return rooms, nil
}

func (s *activityStore) FindRoom(ctx context.Context, roomID string) (*core.RoomActivity, error) {
	fields, err := s.rdb.HGetAll(ctx, roomKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load room activity: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("room %s: %w", roomID, core.ErrRoomNotFound)
	}
	activity, err := decodeActivity(roomID, fields)
	if err != nil {
		return nil, err
	}
	return &activity, nil
}

func (s *activityStore) DeleteRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return fmt.Errorf("room id is required")
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, roomKey(roomID))
		pipe.ZRem(ctx, indexKey, roomID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete room activity: %w", err)
	}
	return nil
}

func (s *activityStore) Close() error { return s.rdb.Close() }

func decodeActivity(roomID string, fields map[string]string) (core.RoomActivity, error) {
	activity := core.RoomActivity{ID: roomID, Instance: fields["instance"]}

	ints := []struct {
		field string
		dst   *int64
	}{
		{"created_at", &activity.CreatedAt},
		{"last_active", &activity.LastActive},
		{"edits", &activity.Edits},
		{"closed_at", &activity.ClosedAt},
	}
	for _, f := range ints {
		raw, ok := fields[f.field]
		if !ok {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return core.RoomActivity{}, fmt.Errorf("decode %s: %w", f.field, err)
		}
		*f.dst = v
	}

	if raw, ok := fields["participants"]; ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return core.RoomActivity{}, fmt.Errorf("decode participants: %w", err)
		}
		activity.Participants = n
	}
	return activity, nil
}
