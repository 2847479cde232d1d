package core

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dtregea/roomchat-server/internal/proto"
)

// Room is a named broadcast group. Membership is keyed by session ID, so
// equality is structural on the identifier rather than on the transport.
// All methods require the hub mutex to be held by the caller.
type Room struct {
	name    string
	members map[string]*Session
	log     *zerolog.Logger
}

func newRoom(name string, logger *zerolog.Logger) *Room {
	return &Room{
		name:    name,
		members: make(map[string]*Session),
		log:     logger,
	}
}

// Name returns the room's display name, with the casing of its first creator.
func (r *Room) Name() string {
	return r.name
}

// Size returns the current member count.
func (r *Room) Size() int {
	return len(r.members)
}

// addMember inserts the session, binds its room reference and announces the
// arrival to the whole room, the joiner included.
func (r *Room) addMember(s *Session) {
	r.members[s.ID] = s
	s.room = r
	r.fanOut(r.chatNotice(s, "has joined the chat!"))
}

// removeMember drops the session and clears its room reference. The prepared
// departure notice goes to the remaining members; it must be built before the
// call since it is formatted with this room's name. Returns true when the
// room is now empty and the registry should consider deleting it.
func (r *Room) removeMember(s *Session, departureNotice proto.Frame) bool {
	delete(r.members, s.ID)
	s.room = nil
	if len(r.members) > 0 {
		r.fanOut(departureNotice)
		return false
	}
	return true
}

// broadcastChat fans out "<room> - <user>: <text>". The sender is part of the
// audience and receives its own message echoed back.
func (r *Room) broadcastChat(from *Session, text string) {
	r.fanOut(r.chatNotice(from, text))
}

// chatNotice formats a chat-kind notice for this room.
func (r *Room) chatNotice(from *Session, text string) proto.Frame {
	return proto.NewChat(fmt.Sprintf("%s - %s: %s", r.name, from.Username, text))
}

// moveNotice formats the departure notice broadcast when a member moves away.
func (r *Room) moveNotice(from *Session, target string) proto.Frame {
	return proto.NewChat(fmt.Sprintf("%s - %s moved to room %q", r.name, from.Username, target))
}

// broadcastServer fans out an operator announcement.
func (r *Room) broadcastServer(text string) {
	r.fanOut(proto.NewServerBroadcast("Server announcement: " + text))
}

// fanOut delivers a frame to every current member. A recipient whose outbox
// is full is skipped and logged; it never aborts delivery to the rest.
func (r *Room) fanOut(f proto.Frame) {
	for _, member := range r.members {
		if !member.deliver(f) {
			r.log.Warn().
				Str("room", r.name).
				Str("user", member.Username).
				Str("frame", f.Type).
				Msg("dropping frame for slow recipient")
		}
	}
}
