// Package canvas reconciles the room broadcast stream into one client's view
// of the shared canvas: peers, cursors, strokes, images, tools, selections
// and gesture indicators.
//
// A Reconciler is not safe for concurrent use. It is meant to be owned by a
// single event loop that serializes inbound messages, local input and render
// ticks.
package canvas

import (
	"log/slog"
	"time"

	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
	"github.com/sritampatnaik/Magic-Canvas/internal/protocol"
)

const (
	SmoothingFactor        = 0.25
	IdleAfter              = 3000 * time.Millisecond
	IdleOpacity            = 0.55
	GestureVisibleFor      = 2 * time.Second
	DefaultActiveStrokeTTL = 30 * time.Second
)

type Options struct {
	Width  float64
	Height float64
	// ActiveStrokeTTL evicts active-stroke index entries that saw no start or
	// append for this long. Zero disables eviction. Held strokes are exempt.
	ActiveStrokeTTL time.Duration
	Now             func() time.Time
	Logger          *slog.Logger
}

type activeStroke struct {
	index   int
	touched time.Time
	// held strokes are authored here and only leave the index via EndStroke.
	held bool
}

type Reconciler struct {
	log             *slog.Logger
	now             func() time.Time
	width           float64
	height          float64
	activeStrokeTTL time.Duration

	peers      map[string]domain.PeerMeta
	cursors    map[string]domain.CursorSample
	smoothed   map[string]domain.Point
	strokes    []*domain.Stroke
	active     map[string]activeStroke
	images     []*domain.ImageItem
	tools      map[string]domain.ToolState
	selections map[string]domain.Rect
	gestures   map[string]domain.GestureIndicator
}

func New(opts Options) *Reconciler {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	r := &Reconciler{
		log:             opts.Logger,
		now:             opts.Now,
		width:           opts.Width,
		height:          opts.Height,
		activeStrokeTTL: opts.ActiveStrokeTTL,
	}
	r.Reset()
	return r
}

// Reset drops all shared state, as on leaving or switching rooms. Bounds are
// kept since they belong to the local surface.
func (r *Reconciler) Reset() {
	r.peers = make(map[string]domain.PeerMeta)
	r.cursors = make(map[string]domain.CursorSample)
	r.smoothed = make(map[string]domain.Point)
	r.strokes = nil
	r.active = make(map[string]activeStroke)
	r.images = nil
	r.tools = make(map[string]domain.ToolState)
	r.selections = make(map[string]domain.Rect)
	r.gestures = make(map[string]domain.GestureIndicator)
}

// SetBounds updates the local surface size used to clamp remote cursors.
func (r *Reconciler) SetBounds(width, height float64) {
	r.width = width
	r.height = height
}

func (r *Reconciler) Bounds() (float64, float64) {
	return r.width, r.height
}

// Apply dispatches one inbound broadcast. It reports false when the event
// was dropped (unknown variant, index miss, unknown image).
func (r *Reconciler) Apply(ev protocol.Event) bool {
	switch e := ev.(type) {
	case protocol.Cursor:
		return r.ApplyCursor(e.Key, e.X, e.Y)
	case protocol.StrokeStart:
		return r.StartStroke(&e.Stroke)
	case protocol.StrokeAppend:
		return r.AppendPoint(e.ID, e.Point)
	case protocol.StrokeEnd:
		return r.EndStroke(e.ID)
	case protocol.StrokeReplace:
		r.PutStroke(&e.Stroke)
		return true
	case protocol.ImageAdd:
		r.AddImage(e.ImageItem)
		return true
	case protocol.ImageMove:
		return r.MoveImage(e.ID, e.X, e.Y)
	case protocol.Gesture:
		r.SetGesture(e.Key, e.Emoji)
		return true
	case protocol.ToolChange:
		return r.SetTool(e.Key, domain.ToolState{Tool: e.Tool, ColorHex: e.Color})
	case protocol.SelectionStart:
		r.StartSelection(e.Key, domain.Point{X: e.X, Y: e.Y})
		return true
	case protocol.SelectionUpdate:
		r.UpdateSelection(e.Key, domain.Rect{X: e.X, Y: e.Y, W: e.W, H: e.H})
		return true
	case protocol.SelectionEnd:
		r.EndSelection(e.Key)
		return true
	default:
		r.log.Debug("dropping unsupported event", slog.Any("event", ev))
		return false
	}
}

// Tick advances per-frame state: cursor smoothing and stale stroke eviction.
// It is driven by the render loop and never blocks.
func (r *Reconciler) Tick() {
	r.smoothCursors()
	r.evictStaleStrokes()
}
