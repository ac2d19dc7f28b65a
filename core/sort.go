package core

import "sort"

// SortByActivity orders rooms most recently active first, then by id.
func SortByActivity(rooms []RoomActivity) {
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].LastActive == rooms[j].LastActive {
			return rooms[i].ID < rooms[j].ID
		}
		return rooms[i].LastActive > rooms[j].LastActive
	})
}
