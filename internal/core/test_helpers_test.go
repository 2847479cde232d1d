package core

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dtregea/roomchat-server/internal/proto"
)

// memStore is an in-memory CredentialStore for hub tests.
type memStore struct {
	mu     sync.Mutex
	creds  map[string]string
	online map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		creds:  make(map[string]string),
		online: make(map[string]bool),
	}
}

func (m *memStore) Exists(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.creds[username]
	return ok, nil
}

func (m *memStore) Verify(_ context.Context, username, password string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	digest, ok := m.creds[username]
	return ok && digest == "plain:"+password, nil
}

func (m *memStore) Create(_ context.Context, username, passwordDigest string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds[username] = passwordDigest
	return nil
}

func (m *memStore) SetOnline(_ context.Context, username string, online bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.online[username] = online
	return nil
}

func (m *memStore) IsOnline(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online[username], nil
}

func (m *memStore) MarkAllOffline(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for username := range m.online {
		m.online[username] = false
	}
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) isOnline(username string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online[username]
}

func (m *memStore) hasCredential(username string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.creds[username]
	return ok
}

// plainDigest is a transparent auth.Digest so tests can assert stored values.
type plainDigest struct{}

func (plainDigest) Hash(password string) (string, error) { return "plain:" + password, nil }

func (plainDigest) Compare(digest, password string) error {
	if digest != "plain:"+password {
		return ErrInvalidCredentials
	}
	return nil
}

func newTestHub(t *testing.T) (*Hub, *memStore) {
	t.Helper()
	logger := zerolog.Nop()
	st := newMemStore()
	return NewHub(st, plainDigest{}, &logger), st
}

// connect attaches a fresh session, as the transport would after the
// websocket handshake.
func connect(t *testing.T, h *Hub) *Session {
	t.Helper()
	s := NewSession()
	h.Attach(s)
	return s
}

// signUp registers a user and consumes the frames up to login_success.
func signUp(t *testing.T, h *Hub, s *Session, user, pass string) {
	t.Helper()
	if err := h.Dispatch(context.Background(), s, proto.NewRegister(user, pass)); err != nil {
		t.Fatalf("register dispatch: %v", err)
	}
	mustFrame(t, s, proto.TypeLoginSuccess)
	drain(s)
}

// mustFrame reads from the session outbox until a frame of the wanted type
// arrives, skipping others.
func mustFrame(t *testing.T, s *Session, wantType string) proto.Frame {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case f := <-s.Outbox:
			if f.Type == wantType {
				return f
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected frame type %q not received", wantType)
	return proto.Frame{}
}

// nextChat returns the text of the next chat frame, failing on anything else.
func nextChat(t *testing.T, s *Session) string {
	t.Helper()

	select {
	case f := <-s.Outbox:
		if f.Type != proto.TypeChat {
			t.Fatalf("expected chat frame, got %q", f.Type)
		}
		var d proto.ChatData
		if err := json.Unmarshal(f.Data, &d); err != nil {
			t.Fatalf("unmarshal chat data: %v", err)
		}
		return d.Text
	case <-time.After(2 * time.Second):
		t.Fatal("no chat frame received")
		return ""
	}
}

// deniedCode returns the code of the next login_denied frame.
func deniedCode(t *testing.T, s *Session) string {
	t.Helper()
	f := mustFrame(t, s, proto.TypeLoginDenied)
	var d proto.DeniedData
	if err := json.Unmarshal(f.Data, &d); err != nil {
		t.Fatalf("unmarshal denied data: %v", err)
	}
	return d.Code
}

// drain empties the outbox of frames already queued.
func drain(s *Session) {
	for {
		select {
		case <-s.Outbox:
		default:
			return
		}
	}
}
