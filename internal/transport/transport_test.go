package transport

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
	"github.com/sritampatnaik/Magic-Canvas/internal/hub"
	"github.com/sritampatnaik/Magic-Canvas/internal/protocol"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type received struct {
	key string
	ev  protocol.Event
}

type recorder struct {
	broadcasts chan received
	presence   chan protocol.PresenceState
}

func newRecorder() *recorder {
	return &recorder{
		broadcasts: make(chan received, 32),
		presence:   make(chan protocol.PresenceState, 32),
	}
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		Broadcast:    func(key string, ev protocol.Event) { r.broadcasts <- received{key: key, ev: ev} },
		PresenceSync: func(state protocol.PresenceState) { r.presence <- state },
	}
}

func (r *recorder) nextBroadcast(t *testing.T) received {
	t.Helper()
	select {
	case got := <-r.broadcasts:
		return got
	case <-time.After(2 * time.Second):
		t.Fatal("no broadcast received")
		return received{}
	}
}

func (r *recorder) awaitPresence(t *testing.T, match func(protocol.PresenceState) bool) protocol.PresenceState {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case state := <-r.presence:
			if match(state) {
				return state
			}
		case <-deadline:
			t.Fatal("expected presence snapshot not received")
			return nil
		}
	}
}

// exerciseChannels runs the same conversation over any pair of channels.
func exerciseChannels(t *testing.T, a, b Channel) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	recA, recB := newRecorder(), newRecorder()
	require.NoError(t, a.Subscribe(ctx, recA.handlers()))
	require.NoError(t, b.Subscribe(ctx, recB.handlers()))

	ada := domain.PeerMeta{DisplayName: "Ada", AvatarGlyph: "🦊", ColorHex: "#112233"}
	require.NoError(t, a.Track(ctx, ada))
	recB.awaitPresence(t, func(s protocol.PresenceState) bool {
		return len(s["a"]) == 1 && s["a"][0] == ada
	})
	require.Eventually(t, func() bool {
		return len(b.PresenceState()["a"]) == 1
	}, time.Second, 10*time.Millisecond)

	start := protocol.StrokeStart{Stroke: domain.Stroke{
		ID:       "s1",
		Points:   []domain.Point{{X: 0, Y: 0}},
		ColorHex: "#f00",
		WidthPx:  3,
	}}
	require.NoError(t, a.Send(start))

	got := recB.nextBroadcast(t)
	assert.Equal(t, "a", got.key)
	require.IsType(t, protocol.StrokeStart{}, got.ev)
	assert.Equal(t, "s1", got.ev.(protocol.StrokeStart).ID)

	require.NoError(t, a.Unsubscribe())
	recB.awaitPresence(t, func(s protocol.PresenceState) bool {
		_, ok := s["a"]
		return !ok
	})

	select {
	case got := <-recA.broadcasts:
		t.Fatalf("sender received its own broadcast: %+v", got)
	default:
	}

	require.NoError(t, b.Unsubscribe())
}

func TestLocalChannelsExchangeTraffic(t *testing.T) {
	h := hub.New(discardLogger(), nil)
	a := NewLocal(h, "room1", "a", discardLogger())
	b := NewLocal(h, "room1", "b", discardLogger())
	exerciseChannels(t, a, b)
}

func TestLocalRequiresSubscription(t *testing.T) {
	h := hub.New(discardLogger(), nil)
	c := NewLocal(h, "room1", "a", discardLogger())

	assert.ErrorIs(t, c.Send(protocol.StrokeEnd{ID: "x"}), ErrNotSubscribed)
	assert.ErrorIs(t, c.Track(context.Background(), domain.PeerMeta{}), ErrNotSubscribed)
	assert.NoError(t, c.Unsubscribe())
}

func TestWebsocketEndpoint(t *testing.T) {
	c := NewWebsocket(WebsocketOptions{ServerURL: "https://canvas.example/base", Slug: "AbC34678", Key: "k 1"})
	got, err := c.Endpoint()
	require.NoError(t, err)
	assert.Equal(t, "wss://canvas.example/base/api/rooms/AbC34678/ws?key=k+1", got)

	c = NewWebsocket(WebsocketOptions{ServerURL: "http://localhost:8080", Slug: "r", Key: "k"})
	got, err = c.Endpoint()
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/api/rooms/r/ws?key=k", got)
}

func fastBackOff() backoff.BackOff {
	return backoff.NewConstantBackOff(10 * time.Millisecond)
}

func TestWebsocketChannelsExchangeTraffic(t *testing.T) {
	h := hub.New(discardLogger(), nil)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/rooms/room1/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		h.ServeConn(r.Context(), conn, "room1", r.URL.Query().Get("key"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	newChannel := func(key string) *Websocket {
		return NewWebsocket(WebsocketOptions{
			ServerURL:  srv.URL,
			Slug:       "room1",
			Key:        key,
			Logger:     discardLogger(),
			NewBackOff: fastBackOff,
		})
	}
	exerciseChannels(t, newChannel("a"), newChannel("b"))
}

type frame struct {
	conn int
	env  protocol.Envelope
}

func TestWebsocketReconnectReplaysTrack(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	var conns atomic.Int32
	frames := make(chan frame, 16)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		index := int(conns.Add(1)) - 1

		if err := conn.WriteJSON(protocol.Envelope{Type: protocol.TypeSubscribed}); err != nil {
			return
		}
		for {
			var env protocol.Envelope
			if err := conn.ReadJSON(&env); err != nil {
				return
			}
			frames <- frame{conn: index, env: env}
			// Drop the first connection as soon as the client tracks.
			if index == 0 && env.Type == protocol.TypeTrack {
				return
			}
		}
	}))
	defer srv.Close()

	c := NewWebsocket(WebsocketOptions{
		ServerURL:  srv.URL,
		Slug:       "room1",
		Key:        "a",
		Logger:     discardLogger(),
		NewBackOff: fastBackOff,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Subscribe(ctx, Handlers{}))

	meta := domain.PeerMeta{DisplayName: "Ada", ColorHex: "#010203"}
	require.NoError(t, c.Track(ctx, meta))

	deadline := time.After(3 * time.Second)
	for {
		select {
		case f := <-frames:
			if f.conn < 1 || f.env.Type != protocol.TypeTrack {
				continue
			}
			var got domain.PeerMeta
			require.NoError(t, json.Unmarshal(f.env.Payload, &got))
			assert.Equal(t, meta, got)
			require.NoError(t, c.Unsubscribe())
			return
		case <-deadline:
			t.Fatal("track was not replayed after reconnect")
		}
	}
}
