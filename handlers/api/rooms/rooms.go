package rooms

import (
	"coderooms/core"
	live "coderooms/rooms"
	"context"
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type (
	// LiveRooms answers questions about rooms currently held in memory.
	LiveRooms interface {
		Rooms(ctx context.Context) ([]live.Summary, error)
		Room(ctx context.Context, roomID string) (live.Summary, bool, error)
	}

	RoomEntry struct {
		ID         string `json:"id"`
		Users      int    `json:"users"`
		LastActive *int64 `json:"lastActive,omitempty"`
		Live       bool   `json:"live"`
	}

	RoomResponse struct {
		Live     bool               `json:"live"`
		Room     *live.Summary      `json:"room,omitempty"`
		Activity *core.RoomActivity `json:"activity,omitempty"`
	}
)

// HandleListRooms lists live rooms merged with the stored activity history.
// history may be nil.
func HandleListRooms(rooms LiveRooms, history core.ActivityStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries, err := rooms.Rooms(r.Context())
		if err != nil {
			logrus.WithError(err).Error("Failed to list live rooms")
			http.Error(w, "Failed to list rooms", http.StatusServiceUnavailable)
			return
		}

		entries := make(map[string]*RoomEntry, len(summaries))
		for _, s := range summaries {
			lastActive := s.LastActive
			entries[s.ID] = &RoomEntry{ID: s.ID, Users: s.Users, LastActive: &lastActive, Live: true}
		}

		if history != nil {
			stored, err := history.ListRooms(r.Context())
			if err != nil {
				logrus.WithError(err).Warn("failed to list rooms from activity store")
			}
			for _, a := range stored {
				if _, exists := entries[a.ID]; exists {
					continue
				}
				entry := &RoomEntry{ID: a.ID}
				if a.LastActive > 0 {
					lastActive := a.LastActive
					entry.LastActive = &lastActive
				}
				entries[a.ID] = entry
			}
		}

		list := make([]RoomEntry, 0, len(entries))
		for _, e := range entries {
			list = append(list, *e)
		}
		sortEntries(list)

		render.JSON(w, r, list)
	}
}

// sortEntries orders by users desc, then lastActive desc, then id.
func sortEntries(list []RoomEntry) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Users != list[j].Users {
			return list[i].Users > list[j].Users
		}
		li, lj := lastActive(list[i]), lastActive(list[j])
		if li != lj {
			return li > lj
		}
		return list[i].ID < list[j].ID
	})
}

func lastActive(e RoomEntry) int64 {
	if e.LastActive == nil {
		return 0
	}
	return *e.LastActive
}

// HandleGetRoom returns the live state of a room, falling back to its stored
// activity record when it is not live.
func HandleGetRoom(rooms LiveRooms, history core.ActivityStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomId")

		summary, ok, err := rooms.Room(r.Context(), roomID)
		if err != nil {
			logrus.WithError(err).Error("Failed to get live room")
			http.Error(w, "Failed to get room", http.StatusServiceUnavailable)
			return
		}

		resp := RoomResponse{Live: ok}
		if ok {
			resp.Room = &summary
		}

		if history != nil {
			activity, err := history.FindRoom(r.Context(), roomID)
			switch {
			case err == nil:
				resp.Activity = activity
			case !errors.Is(err, core.ErrRoomNotFound):
				logrus.WithError(err).WithField("room_id", roomID).Warn("failed to read room activity")
			}
		}

		if resp.Room == nil && resp.Activity == nil {
			http.Error(w, live.ErrNotFound.Error(), http.StatusNotFound)
			return
		}

		render.JSON(w, r, resp)
	}
}

// HandleForgetRoom deletes the stored activity for a room id. Live state is
// not touched. history may be nil, in which case there is nothing to forget.
func HandleForgetRoom(history core.ActivityStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomId")

		if history == nil {
			http.Error(w, "Room activity is not recorded", http.StatusNotImplemented)
			return
		}

		if err := history.DeleteRoom(r.Context(), roomID); err != nil {
			logrus.WithField("error", err).Error("Failed to delete room activity")
			http.Error(w, "Failed to delete room activity", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
