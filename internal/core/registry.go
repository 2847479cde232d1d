package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultRoomName is the always-present room every fresh login lands in.
// It is exempt from empty-room deletion.
const DefaultRoomName = "Main"

// RoomRegistry owns every Room instance. Names are compared
// case-insensitively: any case variant of an existing name resolves to the
// same instance. The registry carries no lock of its own; it is owned state
// of the hub and all methods require the hub mutex.
type RoomRegistry struct {
	rooms map[string]*Room // keyed by lowercased name
	log   *zerolog.Logger
}

func newRoomRegistry(logger *zerolog.Logger) *RoomRegistry {
	return &RoomRegistry{
		rooms: make(map[string]*Room),
		log:   logger,
	}
}

// getOrCreate resolves name case-insensitively, creating the room on first
// reference. The display name keeps the casing of the first creator.
func (rr *RoomRegistry) getOrCreate(name string) *Room {
	key := strings.ToLower(name)
	if room, ok := rr.rooms[key]; ok {
		return room
	}
	room := newRoom(name, rr.log)
	rr.rooms[key] = room
	return room
}

// remove unconditionally drops the room. Callers apply the empty-room and
// default-room policy before asking.
func (rr *RoomRegistry) remove(room *Room) {
	delete(rr.rooms, strings.ToLower(room.name))
	rr.log.Info().Str("room", room.name).Msg("room has no clients, deleting")
}

// snapshot returns all rooms sorted lexically by lowercased name, so the
// room_status listing is deterministic.
func (rr *RoomRegistry) snapshot() []*Room {
	rooms := make([]*Room, 0, len(rr.rooms))
	for _, room := range rr.rooms {
		rooms = append(rooms, room)
	}
	sort.Slice(rooms, func(i, j int) bool {
		return strings.ToLower(rooms[i].name) < strings.ToLower(rooms[j].name)
	})
	return rooms
}

// statusListing renders every room and its member count.
func (rr *RoomRegistry) statusListing() string {
	var b strings.Builder
	b.WriteString("ROOMS\n--------------\n")
	for _, room := range rr.snapshot() {
		fmt.Fprintf(&b, "%s - %d\n", room.name, room.Size())
	}
	b.WriteString("--------------")
	return b.String()
}
