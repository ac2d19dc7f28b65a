package sqlite

import (
	"coderooms/core"
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

const schema = `CREATE TABLE IF NOT EXISTS room_activity (
	id TEXT PRIMARY KEY,
	instance TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	last_active INTEGER NOT NULL,
	participants INTEGER NOT NULL DEFAULT 0,
	edits INTEGER NOT NULL DEFAULT 0,
	closed_at INTEGER NOT NULL DEFAULT 0
);`

type activityStore struct {
	db *sql.DB
}

func NewActivityStore(dataSourceName string) (core.ActivityStore, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if _, err = db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create room_activity table: %w", err)
	}

	return &activityStore{db}, nil
}

func (s *activityStore) TouchRoom(ctx context.Context, activity core.RoomActivity) error {
	if activity.ID == "" {
		return fmt.Errorf("room id is required")
	}

	log := logrus.WithFields(logrus.Fields{
		"room_id":      activity.ID,
		"participants": activity.Participants,
	})

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO room_activity (id, instance, created_at, last_active, participants, edits, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET instance = excluded.instance, created_at = excluded.created_at,
			last_active = excluded.last_active, participants = excluded.participants,
			edits = excluded.edits, closed_at = excluded.closed_at`,
		activity.ID, activity.Instance, activity.CreatedAt, activity.LastActive,
		activity.Participants, activity.Edits, activity.ClosedAt)
	if err != nil {
		log.WithError(err).Error("Failed to record room activity")
		return err
	}

	log.Debug("Room activity recorded")
	return nil
}

func (s *activityStore) ListRooms(ctx context.Context) ([]core.RoomActivity, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, instance, created_at, last_active, participants, edits, closed_at FROM room_activity ORDER BY last_active DESC, id ASC")
	if err != nil {
		logrus.WithError(err).Error("Failed to list room activity")
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("Failed to close room activity rows")
		}
	}()

	rooms := []core.RoomActivity{}
	for rows.Next() {
		var activity core.RoomActivity
		if err := scanActivity(rows, &activity); err != nil {
			return nil, err
		}
		rooms = append(rooms, activity)
	}
	return rooms, rows.Err()
}

func (s *activityStore) FindRoom(ctx context.Context, roomID string) (*core.RoomActivity, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, instance, created_at, last_active, participants, edits, closed_at FROM room_activity WHERE id = ?",
		roomID)

	var activity core.RoomActivity
	if err := scanActivity(row, &activity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room %s: %w", roomID, core.ErrRoomNotFound)
		}
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to retrieve room activity")
		return nil, err
	}
	return &activity, nil
}

func (s *activityStore) DeleteRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return fmt.Errorf("room id is required")
	}

	if _, err := s.db.ExecContext(ctx, "DELETE FROM room_activity WHERE id = ?", roomID); err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to delete room activity")
		return err
	}
	return nil
}

func (s *activityStore) Close() error { return s.db.Close() }

type scanner interface {
	Scan(dest ...any) error
}

func scanActivity(row scanner, activity *core.RoomActivity) error {
	return row.Scan(&activity.ID, &activity.Instance, &activity.CreatedAt, &activity.LastActive,
		&activity.Participants, &activity.Edits, &activity.ClosedAt)
}
