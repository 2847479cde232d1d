package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/dtregea/roomchat-server/internal/auth"
	"github.com/dtregea/roomchat-server/internal/config"
	"github.com/dtregea/roomchat-server/internal/core"
	"github.com/dtregea/roomchat-server/internal/proto"
	"github.com/dtregea/roomchat-server/internal/store/sqlite"
)

func startTestServer(t *testing.T) (*httptest.Server, *core.Hub) {
	t.Helper()

	logger := zerolog.Nop()
	digest := auth.NewBcryptDigest()
	st, err := sqlite.New(":memory:", digest)
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	hub := core.NewHub(st, digest, &logger)
	server := NewServer(hub, config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
	}, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return ts, hub
}

func dialWS(t *testing.T, ctx context.Context, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "done") })
	return conn
}

// readFrame reads frames until one of the wanted type arrives.
func readFrame(t *testing.T, ctx context.Context, conn *websocket.Conn, wantType string) proto.Frame {
	t.Helper()

	for {
		var frame proto.Frame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			t.Fatalf("read frame (waiting for %q): %v", wantType, err)
		}
		if frame.Type == wantType {
			return frame
		}
	}
}

func chatText(t *testing.T, f proto.Frame) string {
	t.Helper()

	var d proto.ChatData
	if err := json.Unmarshal(f.Data, &d); err != nil {
		t.Fatalf("unmarshal chat data: %v", err)
	}
	return d.Text
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestRegisterChatAndEchoOverWebSocket(t *testing.T) {
	ts, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice := dialWS(t, ctx, ts)
	bob := dialWS(t, ctx, ts)

	if err := wsjson.Write(ctx, alice, proto.NewRegister("alice", "password1")); err != nil {
		t.Fatalf("register alice: %v", err)
	}
	readFrame(t, ctx, alice, proto.TypeLoginSuccess)

	if err := wsjson.Write(ctx, bob, proto.NewRegister("bob", "password2")); err != nil {
		t.Fatalf("register bob: %v", err)
	}
	readFrame(t, ctx, bob, proto.TypeLoginSuccess)

	if err := wsjson.Write(ctx, alice, proto.NewChat("hello")); err != nil {
		t.Fatalf("chat: %v", err)
	}

	// Bob's own join notice may still be queued ahead; scan for the text.
	const want = "Main - alice: hello"
	for {
		f := readFrame(t, ctx, bob, proto.TypeChat)
		if text := chatText(t, f); text == want {
			break
		}
	}
	// The sender receives its own message echoed back.
	for {
		f := readFrame(t, ctx, alice, proto.TypeChat)
		if text := chatText(t, f); text == want {
			break
		}
	}
}

func TestLoginDeniedOverWebSocket(t *testing.T) {
	ts, _ := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, ts)

	if err := wsjson.Write(ctx, conn, proto.NewLogin("nobody", "password1")); err != nil {
		t.Fatalf("login: %v", err)
	}

	f := readFrame(t, ctx, conn, proto.TypeLoginDenied)
	var d proto.DeniedData
	if err := json.Unmarshal(f.Data, &d); err != nil {
		t.Fatalf("unmarshal denied data: %v", err)
	}
	if d.Code != core.ErrCodeInvalidCredentials {
		t.Fatalf("expected invalid_credentials, got %q", d.Code)
	}
}

func TestKickClosesConnection(t *testing.T) {
	ts, hub := startTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialWS(t, ctx, ts)
	if err := wsjson.Write(ctx, conn, proto.NewRegister("alice", "password1")); err != nil {
		t.Fatalf("register: %v", err)
	}
	readFrame(t, ctx, conn, proto.TypeLoginSuccess)

	if err := hub.Kick("alice"); err != nil {
		t.Fatalf("kick: %v", err)
	}

	// The kick notice is flushed, then the transport closes under us.
	sawNotice := false
	for {
		var frame proto.Frame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			break
		}
		if frame.Type == proto.TypeChat && chatText(t, frame) == "You have been kicked from the server" {
			sawNotice = true
		}
	}
	if !sawNotice {
		t.Fatal("expected the kick notice before the connection closed")
	}
}
