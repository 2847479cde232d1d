package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/dtregea/roomchat-server/internal/core"
	"github.com/dtregea/roomchat-server/internal/proto"
)

const flushTimeout = time.Second

// WSHandler upgrades HTTP connections and bridges them to core sessions:
// one blocking read loop feeding the hub state machine, one write loop
// draining the session outbox. No keepalive exists; a dead peer is noticed
// only when the transport fails.
type WSHandler struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	session := core.NewSession()
	h.hub.Attach(session)
	defer h.hub.Disconnect(context.Background(), session)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, session)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, session)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			status = websocket.StatusInternalError
			reason = err.Error()
			h.log.Warn().Err(err).Str("session", session.ID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, session *core.Session) error {
	for {
		var frame proto.Frame
		if err := wsjson.Read(ctx, conn, &frame); err != nil {
			return err
		}
		if err := h.hub.Dispatch(ctx, session, frame); err != nil {
			h.log.Warn().Err(err).Str("session", session.ID).Msg("irrecoverable protocol error")
			return err
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, session *core.Session) error {
	for {
		select {
		case frame := <-session.Outbox:
			if err := wsjson.Write(ctx, conn, frame); err != nil {
				return err
			}
		case <-session.Done():
			// Kicked or shutting down: flush what is already queued so the
			// parting notice reaches the peer, then drop the transport.
			return h.flushOutbox(conn, session)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) flushOutbox(conn *websocket.Conn, session *core.Session) error {
	flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	for {
		select {
		case frame := <-session.Outbox:
			if err := wsjson.Write(flushCtx, conn, frame); err != nil {
				return nil
			}
		default:
			return nil
		}
	}
}
