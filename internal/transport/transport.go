// Package transport is the client side of the room channel.
package transport

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
	"github.com/sritampatnaik/Magic-Canvas/internal/protocol"
	"github.com/sritampatnaik/Magic-Canvas/lib/logger/sl"
)

var (
	ErrClosed        = errors.New("channel closed")
	ErrNotSubscribed = errors.New("channel not subscribed")
)

// Handlers receive inbound traffic. They are invoked from the transport's
// reader goroutine and must not block for long.
type Handlers struct {
	// Broadcast receives a decoded event with the sender's connection key.
	Broadcast func(key string, ev protocol.Event)
	// PresenceSync receives every full presence snapshot.
	PresenceSync func(state protocol.PresenceState)
}

// Channel is one participant's subscription to a room. Sends are fire and
// forget: delivery, ordering and self-echo are not guaranteed beyond what
// the server provides.
type Channel interface {
	// Subscribe attaches handlers and returns once the server confirmed
	// the subscription.
	Subscribe(ctx context.Context, h Handlers) error
	Track(ctx context.Context, meta domain.PeerMeta) error
	Send(ev protocol.Event) error
	PresenceState() protocol.PresenceState
	Unsubscribe() error
}

type dispatcher struct {
	log *slog.Logger

	mu       sync.RWMutex
	handlers Handlers
	presence protocol.PresenceState

	subscribed     chan struct{}
	subscribedOnce sync.Once
}

func newDispatcher(log *slog.Logger) *dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &dispatcher{
		log:        log,
		presence:   protocol.PresenceState{},
		subscribed: make(chan struct{}),
	}
}

func (d *dispatcher) setHandlers(h Handlers) {
	d.mu.Lock()
	d.handlers = h
	d.mu.Unlock()
}

func (d *dispatcher) clearHandlers() {
	d.setHandlers(Handlers{})
}

func (d *dispatcher) waitSubscribed(ctx context.Context) error {
	select {
	case <-d.subscribed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *dispatcher) presenceState() protocol.PresenceState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(protocol.PresenceState, len(d.presence))
	for k, v := range d.presence {
		out[k] = append([]domain.PeerMeta(nil), v...)
	}
	return out
}

func (d *dispatcher) handle(env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeSubscribed:
		d.subscribedOnce.Do(func() { close(d.subscribed) })

	case protocol.TypePresence:
		state, err := protocol.DecodePresence(env)
		if err != nil {
			d.log.Debug("dropping presence frame", sl.Err(err))
			return
		}
		d.mu.Lock()
		d.presence = state
		fn := d.handlers.PresenceSync
		d.mu.Unlock()
		if fn != nil {
			fn(state)
		}

	case protocol.TypeBroadcast:
		ev, err := protocol.DecodeEnvelope(env)
		if err != nil {
			d.log.Debug("dropping broadcast", slog.String("event", env.Event), sl.Err(err))
			return
		}
		d.mu.RLock()
		fn := d.handlers.Broadcast
		d.mu.RUnlock()
		if fn != nil {
			fn(env.Key, ev)
		}

	case protocol.TypeError:
		d.log.Warn("channel error", slog.String("payload", string(env.Payload)))

	default:
		d.log.Debug("ignoring frame", slog.String("type", string(env.Type)))
	}
}
