package core

import (
	"context"
	"fmt"

	"github.com/dtregea/roomchat-server/internal/store"
)

// ClientDirectory maps a username to its single active session. Presence
// implies online; the binding and the credential store's online flag are
// always updated in the same critical section so they never disagree.
// Like the registry, it is hub-owned state: callers hold the hub mutex.
type ClientDirectory struct {
	sessions map[string]*Session
	store    store.CredentialStore
}

func newClientDirectory(st store.CredentialStore) *ClientDirectory {
	return &ClientDirectory{
		sessions: make(map[string]*Session),
		store:    st,
	}
}

// bind marks the user online and records the session as the active one.
// Credentials are assumed verified by the caller. Fails with AlreadyOnline
// when a binding exists here or the store still reports the user connected.
func (d *ClientDirectory) bind(ctx context.Context, username string, s *Session) error {
	if _, ok := d.sessions[username]; ok {
		return ErrAlreadyOnline
	}
	online, err := d.store.IsOnline(ctx, username)
	if err != nil {
		return fmt.Errorf("check online flag: %w", err)
	}
	if online {
		return ErrAlreadyOnline
	}
	if err := d.store.SetOnline(ctx, username, true); err != nil {
		return fmt.Errorf("set online: %w", err)
	}
	d.sessions[username] = s
	return nil
}

// unbind clears the binding and the store's online flag. Idempotent: unknown
// usernames are a no-op.
func (d *ClientDirectory) unbind(ctx context.Context, username string) error {
	if _, ok := d.sessions[username]; !ok {
		return nil
	}
	delete(d.sessions, username)
	if err := d.store.SetOnline(ctx, username, false); err != nil {
		return fmt.Errorf("set offline: %w", err)
	}
	return nil
}

// lookup returns the active session for a username, or nil.
func (d *ClientDirectory) lookup(username string) *Session {
	return d.sessions[username]
}
