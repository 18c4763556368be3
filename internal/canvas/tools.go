package canvas

import (
	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
)

func (r *Reconciler) SetTool(key string, state domain.ToolState) bool {
	if key == "" || !state.Tool.Valid() {
		return false
	}
	r.tools[key] = state
	return true
}

func (r *Reconciler) Tool(key string) (domain.ToolState, bool) {
	t, ok := r.tools[key]
	return t, ok
}

func (r *Reconciler) StartSelection(key string, at domain.Point) {
	r.selections[key] = domain.Rect{X: at.X, Y: at.Y}
}

func (r *Reconciler) UpdateSelection(key string, rect domain.Rect) {
	r.selections[key] = rect.Normalized()
}

func (r *Reconciler) EndSelection(key string) {
	delete(r.selections, key)
}

func (r *Reconciler) Selection(key string) (domain.Rect, bool) {
	rect, ok := r.selections[key]
	return rect, ok
}

func (r *Reconciler) SetGesture(key, emoji string) {
	if emoji == "" {
		delete(r.gestures, key)
		return
	}
	r.gestures[key] = domain.GestureIndicator{Emoji: emoji, At: r.now()}
}

// Gesture returns the indicator for key while it is still visible.
func (r *Reconciler) Gesture(key string) (string, bool) {
	g, ok := r.gestures[key]
	if !ok || r.now().Sub(g.At) > GestureVisibleFor {
		return "", false
	}
	return g.Emoji, true
}
