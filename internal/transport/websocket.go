package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
	"github.com/sritampatnaik/Magic-Canvas/internal/protocol"
	"github.com/sritampatnaik/Magic-Canvas/lib/logger/sl"
)

const (
	sendQueueSize = 64
	writeWait     = 10 * time.Second
)

type WebsocketOptions struct {
	// ServerURL is the http(s) base address of the channel server.
	ServerURL string
	Slug      string
	Key       string
	Logger    *slog.Logger
	Dialer    *websocket.Dialer
	// NewBackOff builds the reconnect policy. Defaults to an unbounded
	// exponential backoff.
	NewBackOff func() backoff.BackOff
}

// Websocket is a Channel over a websocket to the hub server. A dropped
// connection is redialled with backoff and the tracked metadata re-sent.
type Websocket struct {
	opts WebsocketOptions
	log  *slog.Logger

	*dispatcher

	mu     sync.Mutex
	meta   *domain.PeerMeta
	out    chan protocol.Envelope
	cancel context.CancelFunc
	conn   *websocket.Conn
	done   chan struct{}
}

func NewWebsocket(opts WebsocketOptions) *Websocket {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.NewBackOff == nil {
		opts.NewBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 0
			return b
		}
	}
	log := opts.Logger.With(slog.String("slug", opts.Slug), slog.String("key", opts.Key))
	return &Websocket{
		opts:       opts,
		log:        log,
		dispatcher: newDispatcher(log),
		out:        make(chan protocol.Envelope, sendQueueSize),
	}
}

// Endpoint returns the websocket URL for the configured room and key.
func (w *Websocket) Endpoint() (string, error) {
	u, err := url.Parse(w.opts.ServerURL)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u = u.JoinPath("api", "rooms", w.opts.Slug, "ws")
	q := u.Query()
	q.Set("key", w.opts.Key)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (w *Websocket) Subscribe(ctx context.Context, h Handlers) error {
	endpoint, err := w.Endpoint()
	if err != nil {
		return err
	}
	w.setHandlers(h)

	w.mu.Lock()
	if w.cancel == nil {
		runCtx, cancel := context.WithCancel(context.Background())
		w.cancel = cancel
		w.done = make(chan struct{})
		go w.run(runCtx, endpoint, w.done)
	}
	w.mu.Unlock()

	return w.waitSubscribed(ctx)
}

func (w *Websocket) run(ctx context.Context, endpoint string, done chan struct{}) {
	defer close(done)

	for {
		conn, err := w.dial(ctx, endpoint)
		if err != nil {
			return
		}
		w.serve(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		w.log.Warn("channel disconnected, reconnecting")
	}
}

func (w *Websocket) dial(ctx context.Context, endpoint string) (*websocket.Conn, error) {
	var conn *websocket.Conn
	operation := func() error {
		c, _, err := w.opts.Dialer.DialContext(ctx, endpoint, nil)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}
	notify := func(err error, wait time.Duration) {
		w.log.Warn("dial failed", slog.Duration("retry_in", wait), sl.Err(err))
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(w.opts.NewBackOff(), ctx), notify); err != nil {
		return nil, err
	}
	return conn, nil
}

// serve owns one connection: a writer drains the send queue while the
// caller's goroutine reads until the socket fails.
func (w *Websocket) serve(ctx context.Context, conn *websocket.Conn) {
	w.mu.Lock()
	w.conn = conn
	meta := w.meta
	w.mu.Unlock()

	connDone := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		w.writeLoop(ctx, conn, meta, connDone)
	}()

	for {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() == nil {
				w.log.Debug("read failed", sl.Err(err))
			}
			break
		}
		w.handle(env)
	}

	close(connDone)
	conn.Close()
	<-writerDone

	w.mu.Lock()
	w.conn = nil
	w.mu.Unlock()
}

func (w *Websocket) writeLoop(ctx context.Context, conn *websocket.Conn, meta *domain.PeerMeta, connDone chan struct{}) {
	// Closing here also unblocks the reader when ctx is cancelled.
	defer conn.Close()

	if meta != nil {
		if env, err := protocol.Track(*meta); err == nil {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(env); err != nil {
				return
			}
		}
	}
	for {
		select {
		case env := <-w.out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(env); err != nil {
				w.log.Debug("write failed", sl.Err(err))
				return
			}
		case <-connDone:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Track records meta for replay after reconnects and queues it for the
// current connection.
func (w *Websocket) Track(ctx context.Context, meta domain.PeerMeta) error {
	env, err := protocol.Track(meta)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.meta = &meta
	running := w.cancel != nil
	w.mu.Unlock()
	if !running {
		return ErrNotSubscribed
	}

	select {
	case w.out <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send queues a broadcast. A full queue drops the event.
func (w *Websocket) Send(ev protocol.Event) error {
	w.mu.Lock()
	running := w.cancel != nil
	w.mu.Unlock()
	if !running {
		return ErrNotSubscribed
	}

	env, err := protocol.Broadcast(ev)
	if err != nil {
		return err
	}
	select {
	case w.out <- env:
	default:
		w.log.Debug("dropping outbound event", slog.String("event", env.Event))
	}
	return nil
}

func (w *Websocket) PresenceState() protocol.PresenceState {
	return w.presenceState()
}

// Unsubscribe closes the connection and stops reconnecting. Handlers are
// detached before it returns.
func (w *Websocket) Unsubscribe() error {
	w.mu.Lock()
	cancel, done, conn := w.cancel, w.done, w.conn
	w.cancel = nil
	w.mu.Unlock()

	w.clearHandlers()
	if cancel == nil {
		return nil
	}
	cancel()
	if conn != nil {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		conn.Close()
	}
	<-done
	return nil
}
