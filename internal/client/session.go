// Package client runs one participant's side of a room: it owns the canvas
// reconciler, turns local input into broadcasts and applies what peers send.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sritampatnaik/Magic-Canvas/internal/canvas"
	"github.com/sritampatnaik/Magic-Canvas/internal/compositor"
	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
	"github.com/sritampatnaik/Magic-Canvas/internal/identity"
	"github.com/sritampatnaik/Magic-Canvas/internal/protocol"
	"github.com/sritampatnaik/Magic-Canvas/internal/transport"
	"github.com/sritampatnaik/Magic-Canvas/lib/logger/sl"
)

var (
	ErrClosed             = errors.New("session closed")
	ErrNotJoined          = errors.New("session not joined")
	ErrAlreadyJoined      = errors.New("session already joined")
	ErrUnknownTool        = errors.New("unknown tool")
	ErrUnknownAction      = errors.New("unknown action")
	ErrNoSelection        = errors.New("no selection to generate from")
	ErrGenerationDisabled = errors.New("image generation is disabled")
	ErrImageNotFound      = errors.New("image not found")
)

const (
	DefaultTickEvery = 16 * time.Millisecond
	// CursorInterval is the minimum spacing of outgoing cursor broadcasts.
	CursorInterval = 16 * time.Millisecond

	inboxSize = 256
)

// Connector opens the room channel for a connection key.
type Connector func(key string) transport.Channel

type Options struct {
	Connect  Connector
	Identity *identity.Provider
	Profile  identity.Profile

	Width  float64
	Height float64

	TickEvery       time.Duration
	ActiveStrokeTTL time.Duration

	Renderer *compositor.Renderer
	Media    Media

	Now    func() time.Time
	Logger *slog.Logger
}

// Session is the single event loop of one participant. Every exported method
// is safe for concurrent use; the work itself runs on the loop goroutine.
type Session struct {
	log      *slog.Logger
	opts     Options
	now      func() time.Time
	renderer *compositor.Renderer
	media    Media

	inbox    chan func()
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	joined  bool
	channel transport.Channel
	user    *domain.UserIdentity
	key     string

	// loop-owned
	canvas        *canvas.Reconciler
	limiter       *rate.Limiter
	tool          domain.ToolState
	brush         float64
	activeStroke  string
	pendingCursor *domain.Point
	dragging      bool
	anchor        domain.Point
	selection     *domain.Rect
	hand          handState
}

func New(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TickEvery <= 0 {
		opts.TickEvery = DefaultTickEvery
	}
	if opts.Identity == nil {
		opts.Identity = identity.NewProvider(opts.Logger, nil, nil)
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = compositor.NewRenderer(compositor.NewHTTPLoader(nil, opts.Logger), opts.Logger)
	}

	return &Session{
		log:      opts.Logger,
		opts:     opts,
		now:      opts.Now,
		renderer: renderer,
		media:    opts.Media,
		inbox:    make(chan func(), inboxSize),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		canvas: canvas.New(canvas.Options{
			Width:           opts.Width,
			Height:          opts.Height,
			ActiveStrokeTTL: opts.ActiveStrokeTTL,
			Now:             opts.Now,
			Logger:          opts.Logger,
		}),
		limiter: rate.NewLimiter(rate.Every(CursorInterval), 1),
		tool:    domain.ToolState{Tool: domain.ToolPointer, ColorHex: domain.DefaultColorHex},
		brush:   domain.DefaultBrushPx,
	}
}

// Join resolves the local identity, subscribes to the room and publishes
// presence. It returns identity.ErrProfileRequired when onboarding has not
// run yet.
func (s *Session) Join(ctx context.Context) error {
	const op = "client.session.join"

	s.mu.Lock()
	if s.joined {
		s.mu.Unlock()
		return ErrAlreadyJoined
	}
	select {
	case <-s.done:
		s.mu.Unlock()
		return ErrClosed
	default:
	}

	user, err := s.opts.Identity.UserIdentity(s.opts.Profile)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", op, err)
	}
	key := s.opts.Identity.SessionIdentity().Key()
	s.user = user
	s.key = key
	s.channel = s.opts.Connect(key)
	s.joined = true
	s.mu.Unlock()

	log := s.log.With(slog.String("op", op), slog.String("key", key))
	s.log = s.log.With(slog.String("key", key))

	go s.run()

	err = s.channel.Subscribe(ctx, transport.Handlers{
		Broadcast:    s.onBroadcast,
		PresenceSync: s.onPresence,
	})
	if err != nil {
		log.Error("failed to subscribe", sl.Err(err))
		s.Leave()
		return fmt.Errorf("%s: %w", op, err)
	}

	meta := user.Meta()
	if err := s.channel.Track(ctx, meta); err != nil {
		log.Error("failed to track presence", sl.Err(err))
		s.Leave()
		return fmt.Errorf("%s: %w", op, err)
	}

	_ = s.call(func() {
		s.tool.ColorHex = meta.ColorHex
		s.canvas.SetTool(s.key, s.tool)
		s.send(protocol.ToolChange{Key: s.key, Tool: s.tool.Tool, Color: s.tool.ColorHex})
	})

	log.Info("joined room", slog.String("user_id", user.ID.String()))
	return nil
}

// Leave stops the loop and unsubscribes. It is synchronous and idempotent.
func (s *Session) Leave() {
	s.stopOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		joined, ch := s.joined, s.channel
		s.mu.Unlock()

		if joined {
			<-s.stopped
		}
		if ch != nil {
			if err := ch.Unsubscribe(); err != nil {
				s.log.Warn("failed to unsubscribe", sl.Err(err))
			}
		}
		s.log.Info("left room")
	})
}

// Key returns the connection key, empty before Join.
func (s *Session) Key() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.key
}

func (s *Session) User() *domain.UserIdentity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Session) run() {
	defer close(s.stopped)

	ticker := time.NewTicker(s.opts.TickEvery)
	defer ticker.Stop()

	for {
		select {
		case fn := <-s.inbox:
			fn()
		case <-ticker.C:
			s.tick()
		case <-s.done:
			return
		}
	}
}

// post queues fn on the loop without waiting. Dropped once the session is
// closed.
func (s *Session) post(fn func()) {
	select {
	case s.inbox <- fn:
	case <-s.done:
	}
}

// call runs fn on the loop and waits for it to finish.
func (s *Session) call(fn func()) error {
	s.mu.Lock()
	joined := s.joined
	s.mu.Unlock()
	if !joined {
		return ErrNotJoined
	}

	finished := make(chan struct{})
	select {
	case s.inbox <- func() { fn(); close(finished) }:
	case <-s.done:
		return ErrClosed
	}
	select {
	case <-finished:
		return nil
	case <-s.done:
		return ErrClosed
	}
}

func (s *Session) onBroadcast(key string, ev protocol.Event) {
	s.post(func() {
		if !s.canvas.Apply(ev) {
			s.log.Debug("dropped event", slog.String("event", ev.EventName()), slog.String("from", key))
		}
	})
}

func (s *Session) onPresence(state protocol.PresenceState) {
	s.post(func() { s.canvas.ApplyPresence(state) })
}

func (s *Session) tick() {
	s.canvas.Tick()
	if s.pendingCursor != nil && s.limiter.AllowN(s.now(), 1) {
		p := *s.pendingCursor
		s.pendingCursor = nil
		s.send(protocol.Cursor{Key: s.key, X: p.X, Y: p.Y})
	}
}

// send is fire and forget; failures are logged and swallowed.
func (s *Session) send(ev protocol.Event) {
	if err := s.channel.Send(ev); err != nil {
		s.log.Debug("send failed", slog.String("event", ev.EventName()), sl.Err(err))
	}
}

// Snapshot returns the reconciled state for rendering.
func (s *Session) Snapshot() (canvas.Snapshot, error) {
	var snap canvas.Snapshot
	err := s.call(func() { snap = s.canvas.Snapshot() })
	return snap, err
}

// SetBounds resizes the local surface used to clamp remote cursors.
func (s *Session) SetBounds(width, height float64) error {
	return s.call(func() { s.canvas.SetBounds(width, height) })
}

func (s *Session) Peers() (map[string]domain.PeerMeta, error) {
	var peers map[string]domain.PeerMeta
	err := s.call(func() { peers = s.canvas.Peers() })
	return peers, err
}

// ToolState returns the local tool, colour and brush size.
func (s *Session) ToolState() (domain.ToolState, float64, error) {
	var (
		state domain.ToolState
		brush float64
	)
	err := s.call(func() { state, brush = s.tool, s.brush })
	return state, brush, err
}
