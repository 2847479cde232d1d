package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dtregea/roomchat-server/internal/auth"
	"github.com/dtregea/roomchat-server/internal/proto"
	"github.com/dtregea/roomchat-server/internal/store"
)

const minPasswordLen = 8

// Hub is the server orchestrator. It owns the room registry and the client
// directory for the process lifetime and is the single mutual-exclusion
// boundary around them: every mutating operation (join, leave, create,
// delete, bind, unbind) runs under one mutex, so two sessions changing the
// same room or the same username can never interleave, and broadcast always
// iterates a membership snapshot consistent with those mutations.
type Hub struct {
	mu        sync.Mutex
	registry  *RoomRegistry
	directory *ClientDirectory
	sessions  map[string]*Session // every attached session, any state
	closed    bool

	store  store.CredentialStore
	digest auth.Digest
	log    *zerolog.Logger
}

// NewHub wires the orchestrator and creates the default room.
func NewHub(st store.CredentialStore, digest auth.Digest, logger *zerolog.Logger) *Hub {
	h := &Hub{
		registry:  newRoomRegistry(logger),
		directory: newClientDirectory(st),
		sessions:  make(map[string]*Session),
		store:     st,
		digest:    digest,
		log:       logger,
	}
	h.registry.getOrCreate(DefaultRoomName)
	return h
}

// Attach completes the handshake: Connecting -> Unauthenticated. During
// shutdown new sessions are turned away immediately.
func (h *Hub) Attach(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		s.terminate()
		return
	}
	s.state = StateUnauthenticated
	h.sessions[s.ID] = s
	h.log.Debug().Str("session", s.ID).Msg("client connected")
}

// Dispatch routes one inbound frame through the session state machine.
// A non-nil error means the stream is corrupt and the transport must close,
// which drives Disconnect cleanup.
func (h *Hub) Dispatch(ctx context.Context, s *Session, f proto.Frame) error {
	switch h.stateOf(s) {
	case StateUnauthenticated:
		return h.dispatchAuth(ctx, s, f)
	case StateAuthenticated:
		return h.dispatchChat(s, f)
	default:
		return nil
	}
}

func (h *Hub) stateOf(s *Session) SessionState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return s.state
}

func (h *Hub) dispatchAuth(ctx context.Context, s *Session, f proto.Frame) error {
	switch f.Type {
	case proto.TypeLogin, proto.TypeRegister:
		var creds proto.CredentialsData
		if err := json.Unmarshal(f.Data, &creds); err != nil {
			h.log.Warn().Err(err).Str("session", s.ID).Msg("malformed credentials payload")
			s.deliver(proto.NewLoginDenied(ErrCodeNotAuthenticated, "Malformed credentials"))
			return nil
		}

		var err error
		if f.Type == proto.TypeLogin {
			err = h.login(ctx, s, creds.User, creds.Pass)
		} else {
			err = h.register(ctx, s, creds.User, creds.Pass)
		}
		if err != nil {
			var authErr *AuthError
			if errors.As(err, &authErr) {
				s.deliver(proto.NewLoginDenied(authErr.Code, authErr.Reason))
				return nil
			}
			h.log.Error().Err(err).Str("session", s.ID).Msg("authentication failed")
			s.deliver(proto.NewLoginDenied(ErrCodeInternal, "Temporary server error"))
		}
		return nil
	default:
		// Chatting before logging in: deny, keep the session alive.
		s.deliver(proto.NewLoginDenied(ErrCodeNotAuthenticated, "You must log in first"))
		return nil
	}
}

func (h *Hub) dispatchChat(s *Session, f proto.Frame) error {
	switch f.Type {
	case proto.TypeChat:
		var d proto.ChatData
		if err := json.Unmarshal(f.Data, &d); err != nil {
			return fmt.Errorf("decode chat payload: %w", err)
		}
		h.chat(s, d.Text)
	case proto.TypeChangeRoom:
		var d proto.ChangeRoomData
		if err := json.Unmarshal(f.Data, &d); err != nil {
			return fmt.Errorf("decode change_room payload: %w", err)
		}
		if strings.TrimSpace(d.Room) == "" {
			h.log.Warn().Str("session", s.ID).Msg("change_room with empty room name")
			return nil
		}
		h.changeRoom(s, d.Room)
	case proto.TypeRoomStatus:
		h.roomStatus(s)
	default:
		h.log.Warn().Str("session", s.ID).Str("frame", f.Type).Msg("ignoring unexpected frame")
	}
	return nil
}

// login verifies credentials, then atomically binds the directory entry,
// transitions the session and joins the default room. Credential
// verification happens before taking the lock; the already-online check and
// the bind are one critical section, so two racing logins for the same name
// serialize and the loser is denied.
func (h *Hub) login(ctx context.Context, s *Session, username, password string) error {
	ok, err := h.store.Verify(ctx, username, password)
	if err != nil {
		return fmt.Errorf("verify credentials: %w", err)
	}
	if !ok {
		return ErrInvalidCredentials
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || s.state != StateUnauthenticated {
		return nil
	}
	if err := h.directory.bind(ctx, username, s); err != nil {
		return err
	}
	s.Username = username
	s.state = StateAuthenticated
	h.registry.getOrCreate(DefaultRoomName).addMember(s)
	s.deliver(proto.NewLoginSuccess())
	h.log.Info().Str("user", username).Msg("user logged in")
	return nil
}

// register creates the credential record, then proceeds exactly as login with
// the same credentials. Policy checks run before any store write.
func (h *Hub) register(ctx context.Context, s *Session, username, password string) error {
	taken, err := h.store.Exists(ctx, username)
	if err != nil {
		return fmt.Errorf("check username: %w", err)
	}
	if taken {
		return ErrUsernameTaken
	}
	if len(password) < minPasswordLen {
		return ErrWeakPassword
	}

	digest, err := h.digest.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := h.store.Create(ctx, username, digest); err != nil {
		return fmt.Errorf("create credential: %w", err)
	}
	h.log.Info().Str("user", username).Msg("user registered")
	return h.login(ctx, s, username, password)
}

// chat broadcasts to the sender's current room. The sender is not excluded
// from the audience; the echo is part of the protocol.
func (h *Hub) chat(s *Session, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.room == nil {
		return
	}
	s.room.broadcastChat(s, text)
}

// changeRoom moves the session between rooms. Asking for the current room
// (any casing) is answered directly without a broadcast; otherwise the
// session leaves its room, which may delete it, and joins the target, which
// is created on first reference. The leave and join happen in one critical
// section so there is no externally visible roomless gap.
func (h *Hub) changeRoom(s *Session, target string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	current := s.room
	if current == nil {
		return
	}

	next := h.registry.getOrCreate(target)
	if next == current {
		s.deliver(proto.NewChat("You are already in " + current.Name()))
		return
	}

	s.deliver(proto.NewChat("Going to room: " + next.Name()))
	h.leaveRoom(s, current.moveNotice(s, target))
	next.addMember(s)
}

// roomStatus replies to the requester only, listing every room lexically.
func (h *Hub) roomStatus(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s.deliver(proto.NewRoomStatus(h.registry.statusListing()))
}

// Disconnect runs terminal cleanup for a session: leave the current room with
// a departure notice, unbind the directory entry and clear the store's online
// flag. The whole of it is one critical section and a state check makes it
// run exactly once, no matter how many times the transport calls it.
func (h *Hub) Disconnect(ctx context.Context, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.state == StateTerminated {
		return
	}
	wasAuthenticated := s.state == StateAuthenticated
	s.state = StateTerminated
	delete(h.sessions, s.ID)

	if wasAuthenticated {
		if s.room != nil {
			h.leaveRoom(s, s.room.chatNotice(s, "has disconnected"))
		}
		if err := h.directory.unbind(ctx, s.Username); err != nil {
			h.log.Error().Err(err).Str("user", s.Username).Msg("failed to mark user offline")
		}
		h.log.Info().Str("user", s.Username).Msg("user disconnected")
	}
	s.terminate()
}

// leaveRoom removes the session from its room and applies the empty-room
// deletion policy. Caller holds the mutex.
func (h *Hub) leaveRoom(s *Session, departureNotice proto.Frame) {
	room := s.room
	if empty := room.removeMember(s, departureNotice); empty && !strings.EqualFold(room.Name(), DefaultRoomName) {
		h.registry.remove(room)
	}
}

// Announce broadcasts a server announcement to every existing room.
func (h *Hub) Announce(text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range h.registry.snapshot() {
		room.broadcastServer(text)
	}
}

// Kick sends the named user a notice and forces its transport closed; the
// closing transport then drives the usual Disconnect cleanup. Unknown
// usernames are reported to the operator and have no side effects.
func (h *Hub) Kick(username string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.directory.lookup(username)
	if s == nil {
		return ErrUserNotFound
	}
	s.deliver(proto.NewChat("You have been kicked from the server"))
	s.terminate()
	h.log.Info().Str("user", username).Msg("user kicked")
	return nil
}

// Shutdown announces the shutdown to every room, forces every persisted
// online flag off and releases all sessions. Idempotent.
func (h *Hub) Shutdown(ctx context.Context) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for _, room := range h.registry.snapshot() {
		room.broadcastServer("Server is being shut down")
	}
	for _, s := range h.sessions {
		s.terminate()
	}
	h.mu.Unlock()

	if err := h.store.MarkAllOffline(ctx); err != nil {
		h.log.Error().Err(err).Msg("failed to mark all users offline")
	}
	h.log.Info().Msg("hub shut down")
}
