package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
	"github.com/sritampatnaik/Magic-Canvas/internal/protocol"
	"github.com/sritampatnaik/Magic-Canvas/lib/logger/sl"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
)

// ServeConn joins conn to a room and pumps envelopes in both directions
// until the socket closes or the member is replaced. It owns conn.
func (h *Hub) ServeConn(ctx context.Context, conn *websocket.Conn, slug, key string) {
	const op = "hub.serve_conn"
	log := h.log.With(
		slog.String("op", op),
		slog.String("slug", slug),
		slog.String("key", key),
	)

	member, err := h.Join(ctx, slug, key)
	if err != nil {
		_ = conn.WriteJSON(errorEnvelope(err))
		conn.Close()
		return
	}

	go h.writePump(conn, member)

	defer func() {
		member.Leave(context.WithoutCancel(ctx))
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("read failed", sl.Err(err))
			}
			return
		}

		if err := h.handleInbound(ctx, member, env); err != nil {
			if errors.Is(err, ErrClosed) {
				return
			}
			log.Debug("rejected inbound envelope", slog.String("type", string(env.Type)), sl.Err(err))
			member.enqueue(errorEnvelope(err))
		}
	}
}

func (h *Hub) handleInbound(ctx context.Context, m *Member, env protocol.Envelope) error {
	switch env.Type {
	case protocol.TypeTrack:
		var meta domain.PeerMeta
		if len(env.Payload) == 0 {
			return protocol.ErrMissingPayload
		}
		if err := json.Unmarshal(env.Payload, &meta); err != nil {
			return err
		}
		return m.Track(ctx, meta)
	case protocol.TypeBroadcast:
		return m.Broadcast(ctx, env)
	default:
		return errors.New("unsupported envelope type: " + string(env.Type))
	}
}

func (h *Hub) writePump(conn *websocket.Conn, m *Member) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case env := <-m.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-m.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func errorEnvelope(err error) protocol.Envelope {
	raw, _ := json.Marshal(err.Error())
	return protocol.Envelope{Type: protocol.TypeError, Payload: raw}
}
