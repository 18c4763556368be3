package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
	"github.com/sritampatnaik/Magic-Canvas/internal/metrics"
	"github.com/sritampatnaik/Magic-Canvas/internal/protocol"
)

const outboundQueueSize = 64

// Member is one connection joined to a room. Outbound envelopes are queued
// on a bounded channel drained by the connection writer; a full queue drops.
type Member struct {
	hub      *Hub
	slug     string
	key      string
	joinedAt time.Time

	mu   sync.RWMutex
	meta *domain.PeerMeta

	out       chan protocol.Envelope
	done      chan struct{}
	leaveOnce sync.Once
}

func newMember(h *Hub, slug, key string) *Member {
	return &Member{
		hub:      h,
		slug:     slug,
		key:      key,
		joinedAt: time.Now().UTC(),
		out:      make(chan protocol.Envelope, outboundQueueSize),
		done:     make(chan struct{}),
	}
}

func (m *Member) Key() string  { return m.key }
func (m *Member) Slug() string { return m.slug }

// Outbound is drained by the connection writer.
func (m *Member) Outbound() <-chan protocol.Envelope { return m.out }

// Done is closed once the member has left.
func (m *Member) Done() <-chan struct{} { return m.done }

// Meta returns the tracked presence metadata, if any.
func (m *Member) Meta() (domain.PeerMeta, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.meta == nil {
		return domain.PeerMeta{}, false
	}
	return *m.meta, true
}

// Track publishes this member's presence metadata and pushes a fresh
// snapshot to the room.
func (m *Member) Track(ctx context.Context, meta domain.PeerMeta) error {
	if m.closed() {
		return ErrClosed
	}
	m.mu.Lock()
	m.meta = &meta
	m.mu.Unlock()

	return m.hub.track(ctx, m, meta)
}

// Broadcast relays env to every other member of the room. The sender never
// receives its own broadcast.
func (m *Member) Broadcast(ctx context.Context, env protocol.Envelope) error {
	if m.closed() {
		return ErrClosed
	}
	return m.hub.broadcast(ctx, m, env)
}

// Leave removes the member from its room. It is safe to call more than once.
func (m *Member) Leave(ctx context.Context) {
	m.leaveOnce.Do(func() {
		close(m.done)
		m.hub.leave(ctx, m)
	})
}

func (m *Member) closed() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

func (m *Member) enqueue(env protocol.Envelope) bool {
	if m.closed() {
		return false
	}
	select {
	case m.out <- env:
		return true
	default:
		metrics.DroppedEvents.WithLabelValues(string(env.Type)).Inc()
		m.hub.log.Debug("dropping outbound envelope",
			slog.String("slug", m.slug),
			slog.String("key", m.key),
			slog.String("type", string(env.Type)),
			slog.String("event", env.Event),
		)
		return false
	}
}
