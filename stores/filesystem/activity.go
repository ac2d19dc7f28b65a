package filesystem

import (
	"coderooms/core"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	fileSuffix = ".json"
	tmpSuffix  = ".tmp"

	// maxFileName is NAME_MAX on the filesystems we run on.
	maxFileName = 255
	// digestPrefix cannot start an escaped id: PathEscape turns a literal
	// '%' into "%25" and 's' is not a hex digit.
	digestPrefix = "%sha256-"
)

type activityStore struct {
	mu       sync.Mutex
	basePath string
}

// NewActivityStore keeps one JSON file per room id under basePath.
func NewActivityStore(basePath string) (core.ActivityStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}
	return &activityStore{basePath: basePath}, nil
}

// Room ids are chosen by clients, so they are escaped before touching the
// filesystem. Escaping can triple the length of an id; names that would not
// fit are replaced by a digest of the id.
func (s *activityStore) pathFor(roomID string) string {
	return filepath.Join(s.basePath, fileNameFor(roomID))
}

func fileNameFor(roomID string) string {
	name := url.PathEscape(roomID)
	if len(name)+len(fileSuffix)+len(tmpSuffix) > maxFileName {
		sum := sha256.Sum256([]byte(roomID))
		name = digestPrefix + hex.EncodeToString(sum[:])
	}
	return name + fileSuffix
}

func (s *activityStore) TouchRoom(ctx context.Context, activity core.RoomActivity) error {
	if activity.ID == "" {
		return fmt.Errorf("room id is required")
	}

	data, err := json.Marshal(activity)
	if err != nil {
		return fmt.Errorf("encode room activity: %w", err)
	}

	filePath := s.pathFor(activity.ID)
	log := logrus.WithFields(logrus.Fields{
		"room_id":   activity.ID,
		"file_path": filePath,
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := filePath + tmpSuffix
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		log.WithError(err).Error("Failed to write room activity")
		return err
	}
	if err := os.Rename(tmp, filePath); err != nil {
		log.WithError(err).Error("Failed to write room activity")
		return err
	}

	log.Debug("Room activity recorded")
	return nil
}

func (s *activityStore) ListRooms(ctx context.Context) ([]core.RoomActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("read base directory: %w", err)
	}

	rooms := make([]core.RoomActivity, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileSuffix) {
			continue
		}
		activity, err := readActivity(filepath.Join(s.basePath, entry.Name()))
		if err != nil {
			logrus.WithError(err).WithField("file", entry.Name()).Warn("Skipping unreadable room activity")
			continue
		}
		rooms = append(rooms, *activity)
	}

	core.SortByActivity(rooms)
	return rooms, nil
}

func (s *activityStore) FindRoom(ctx context.Context, roomID string) (*core.RoomActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	activity, err := readActivity(s.pathFor(roomID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("room %s: %w", roomID, core.ErrRoomNotFound)
	}
	return activity, err
}

func (s *activityStore) DeleteRoom(ctx context.Context, roomID string) error {
	if roomID == "" {
		return fmt.Errorf("room id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.pathFor(roomID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *activityStore) Close() error { return nil }

func readActivity(path string) (*core.RoomActivity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var activity core.RoomActivity
	if err := json.Unmarshal(data, &activity); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return &activity, nil
}
