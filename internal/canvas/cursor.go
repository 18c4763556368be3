package canvas

import (
	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
)

// ApplyCursor stores a remote cursor sample, clamped into the local surface
// and stamped with the local receipt time. Samples carry no ordering token,
// so the last one processed wins.
func (r *Reconciler) ApplyCursor(key string, x, y float64) bool {
	if key == "" {
		return false
	}
	x = domain.Clamp(x, 0, r.width)
	y = domain.Clamp(y, 0, r.height)
	r.cursors[key] = domain.CursorSample{X: x, Y: y, CapturedAt: r.now()}
	return true
}

// SetLocalCursor records the local participant's own position unclamped.
func (r *Reconciler) SetLocalCursor(key string, x, y float64) {
	r.cursors[key] = domain.CursorSample{X: x, Y: y, CapturedAt: r.now()}
}

func (r *Reconciler) Cursor(key string) (domain.CursorSample, bool) {
	c, ok := r.cursors[key]
	return c, ok
}

// Smoothed returns the displayed position computed by the last Tick.
func (r *Reconciler) Smoothed(key string) (domain.Point, bool) {
	p, ok := r.smoothed[key]
	return p, ok
}

// smoothCursors blends every displayed position a fixed fraction toward its
// raw sample. The factor applies per tick, not per unit time, so the decay
// rate follows the frame rate.
func (r *Reconciler) smoothCursors() {
	for key, raw := range r.cursors {
		last, ok := r.smoothed[key]
		if !ok {
			r.smoothed[key] = domain.Point{X: raw.X, Y: raw.Y}
			continue
		}
		r.smoothed[key] = domain.Point{
			X: last.X + SmoothingFactor*(raw.X-last.X),
			Y: last.Y + SmoothingFactor*(raw.Y-last.Y),
		}
	}
}

// Idle reports whether no sample has arrived for key within IdleAfter.
func (r *Reconciler) Idle(key string) bool {
	c, ok := r.cursors[key]
	if !ok {
		return true
	}
	return r.now().Sub(c.CapturedAt) > IdleAfter
}
