// Package hub is the server side of the room channel: per-room membership,
// presence snapshots and broadcast relay, optionally shared between
// instances through a Bus.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
	"github.com/sritampatnaik/Magic-Canvas/internal/metrics"
	"github.com/sritampatnaik/Magic-Canvas/internal/protocol"
	"github.com/sritampatnaik/Magic-Canvas/lib/logger/sl"
)

var (
	ErrClosed       = errors.New("member closed")
	ErrEmptyKey     = errors.New("connection key is required")
	ErrEmptySlug    = errors.New("room slug is required")
	ErrNotBroadcast = errors.New("envelope is not a broadcast")
)

type room struct {
	slug    string
	members map[string]*Member
}

type Hub struct {
	log *slog.Logger
	bus Bus

	mu    sync.RWMutex
	rooms map[string]*room
}

// New creates a hub. bus may be nil for a single instance deployment.
func New(log *slog.Logger, bus Bus) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:   log,
		bus:   bus,
		rooms: make(map[string]*room),
	}
}

// Join adds a connection to a room. A second join with the same key
// replaces the earlier member. The new member is sent a subscribed frame
// followed by the current presence snapshot.
func (h *Hub) Join(ctx context.Context, slug, key string) (*Member, error) {
	const op = "hub.join"
	log := h.log.With(
		slog.String("op", op),
		slog.String("slug", slug),
		slog.String("key", key),
	)

	if slug == "" {
		return nil, ErrEmptySlug
	}
	if key == "" {
		return nil, ErrEmptyKey
	}

	m := newMember(h, slug, key)

	h.mu.Lock()
	r, ok := h.rooms[slug]
	if !ok {
		r = &room{slug: slug, members: make(map[string]*Member)}
		h.rooms[slug] = r
	}
	previous := r.members[key]
	r.members[key] = m
	h.mu.Unlock()

	if previous != nil {
		log.Info("replacing member with same key")
		previous.Leave(ctx)
	}

	metrics.ChannelConnections.Inc()
	log.Info("member joined")

	m.enqueue(protocol.Envelope{Type: protocol.TypeSubscribed, Key: key})

	state, err := h.presence(ctx, slug)
	if err != nil {
		log.Warn("presence snapshot failed", sl.Err(err))
		return m, nil
	}
	if env, err := protocol.Presence(state); err == nil {
		m.enqueue(env)
	}
	return m, nil
}

// PresenceCount returns the number of tracked keys in a room.
func (h *Hub) PresenceCount(ctx context.Context, slug string) (int, error) {
	state, err := h.presence(ctx, slug)
	if err != nil {
		return 0, err
	}
	return len(state), nil
}

// Run consumes cross-instance notices until ctx is done. Without a bus it
// only waits.
func (h *Hub) Run(ctx context.Context) error {
	if h.bus == nil {
		<-ctx.Done()
		return nil
	}
	err := h.bus.Listen(ctx, func(n Notice) {
		if n.Envelope != nil {
			h.deliver(n.Slug, *n.Envelope, "")
			return
		}
		h.syncPresence(ctx, n.Slug)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (h *Hub) track(ctx context.Context, m *Member, meta domain.PeerMeta) error {
	const op = "hub.track"

	if h.bus != nil {
		if err := h.bus.Track(ctx, m.slug, m.key, meta); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	h.syncPresence(ctx, m.slug)
	return nil
}

func (h *Hub) broadcast(ctx context.Context, m *Member, env protocol.Envelope) error {
	const op = "hub.broadcast"

	if env.Type != protocol.TypeBroadcast {
		return ErrNotBroadcast
	}
	if !protocol.Known(env.Event) {
		return fmt.Errorf("%s: %w: %q", op, protocol.ErrUnknownEvent, env.Event)
	}
	env.Key = m.key

	metrics.BroadcastsTotal.WithLabelValues(env.Event).Inc()
	h.deliver(m.slug, env, m.key)

	if h.bus != nil {
		if err := h.bus.Publish(ctx, m.slug, env); err != nil {
			h.log.Warn("broadcast publish failed",
				slog.String("op", op),
				slog.String("slug", m.slug),
				sl.Err(err),
			)
		}
	}
	return nil
}

func (h *Hub) leave(ctx context.Context, m *Member) {
	const op = "hub.leave"
	log := h.log.With(
		slog.String("op", op),
		slog.String("slug", m.slug),
		slog.String("key", m.key),
	)

	h.mu.Lock()
	r, ok := h.rooms[m.slug]
	removed := false
	if ok && r.members[m.key] == m {
		delete(r.members, m.key)
		removed = true
		if len(r.members) == 0 {
			delete(h.rooms, m.slug)
		}
	}
	h.mu.Unlock()

	metrics.ChannelConnections.Dec()
	log.Info("member left")

	// A replaced member leaves the key tracked by its successor.
	if !removed {
		return
	}
	if h.bus != nil {
		if err := h.bus.Untrack(ctx, m.slug, m.key); err != nil {
			log.Warn("untrack failed", sl.Err(err))
		}
	}
	h.syncPresence(ctx, m.slug)
}

// deliver fans env out to local members, skipping exclude.
func (h *Hub) deliver(slug string, env protocol.Envelope, exclude string) {
	for _, member := range h.members(slug) {
		if member.key == exclude {
			continue
		}
		member.enqueue(env)
	}
}

// syncPresence pushes the full presence snapshot to every local member.
func (h *Hub) syncPresence(ctx context.Context, slug string) {
	state, err := h.presence(ctx, slug)
	if err != nil {
		h.log.Warn("presence snapshot failed", slog.String("slug", slug), sl.Err(err))
		return
	}
	env, err := protocol.Presence(state)
	if err != nil {
		h.log.Error("encode presence", slog.String("slug", slug), sl.Err(err))
		return
	}
	metrics.PresenceSyncs.Inc()
	h.deliver(slug, env, "")
}

func (h *Hub) presence(ctx context.Context, slug string) (protocol.PresenceState, error) {
	if h.bus != nil {
		return h.bus.Presence(ctx, slug)
	}
	state := protocol.PresenceState{}
	for _, member := range h.members(slug) {
		if meta, ok := member.Meta(); ok {
			state[member.key] = []domain.PeerMeta{meta}
		}
	}
	return state, nil
}

func (h *Hub) members(slug string) []*Member {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.rooms[slug]
	if !ok {
		return nil
	}
	out := make([]*Member, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m)
	}
	return out
}
