package transport

import (
	"context"
	"log/slog"
	"sync"

	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
	"github.com/sritampatnaik/Magic-Canvas/internal/hub"
	"github.com/sritampatnaik/Magic-Canvas/internal/protocol"
)

// Local is a Channel attached directly to an in-process hub. It is used by
// tests and by embedded participants that share the server process.
type Local struct {
	hub  *hub.Hub
	slug string
	key  string
	log  *slog.Logger

	*dispatcher

	mu     sync.Mutex
	member *hub.Member
	pumped chan struct{}
}

func NewLocal(h *hub.Hub, slug, key string, log *slog.Logger) *Local {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("slug", slug), slog.String("key", key))
	return &Local{
		hub:        h,
		slug:       slug,
		key:        key,
		log:        log,
		dispatcher: newDispatcher(log),
	}
}

func (l *Local) Subscribe(ctx context.Context, h Handlers) error {
	l.setHandlers(h)

	l.mu.Lock()
	if l.member == nil {
		member, err := l.hub.Join(ctx, l.slug, l.key)
		if err != nil {
			l.mu.Unlock()
			return err
		}
		l.member = member
		l.pumped = make(chan struct{})
		go l.pump(member, l.pumped)
	}
	l.mu.Unlock()

	return l.waitSubscribed(ctx)
}

func (l *Local) pump(m *hub.Member, pumped chan struct{}) {
	defer close(pumped)
	for {
		select {
		case env := <-m.Outbound():
			l.handle(env)
		case <-m.Done():
			return
		}
	}
}

func (l *Local) Track(ctx context.Context, meta domain.PeerMeta) error {
	m, err := l.current()
	if err != nil {
		return err
	}
	return m.Track(ctx, meta)
}

func (l *Local) Send(ev protocol.Event) error {
	m, err := l.current()
	if err != nil {
		return err
	}
	env, err := protocol.Broadcast(ev)
	if err != nil {
		return err
	}
	return m.Broadcast(context.Background(), env)
}

func (l *Local) PresenceState() protocol.PresenceState {
	return l.presenceState()
}

// Unsubscribe leaves the room and waits for the pump to stop, so no handler
// runs after it returns.
func (l *Local) Unsubscribe() error {
	l.mu.Lock()
	m, pumped := l.member, l.pumped
	l.member = nil
	l.mu.Unlock()

	l.clearHandlers()
	if m == nil {
		return nil
	}
	m.Leave(context.Background())
	<-pumped
	return nil
}

func (l *Local) current() (*hub.Member, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.member == nil {
		return nil, ErrNotSubscribed
	}
	return l.member, nil
}
