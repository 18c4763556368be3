package canvas

import (
	"sort"

	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
)

type CursorView struct {
	Key     string
	Meta    domain.PeerMeta
	Pos     domain.Point
	Idle    bool
	Gesture string
}

type SelectionView struct {
	Key  string
	Meta domain.PeerMeta
	Rect domain.Rect
}

// Snapshot is a read-only copy of the reconciled state for one frame.
type Snapshot struct {
	Width      float64
	Height     float64
	Images     []domain.ImageItem
	Strokes    []*domain.Stroke
	Selections []SelectionView
	Cursors    []CursorView
	Tools      map[string]domain.ToolState
}

// Snapshot copies the state the compositor needs. Cursors are listed only
// for keys present in the peer map; keys come out sorted for a stable order.
func (r *Reconciler) Snapshot() Snapshot {
	snap := Snapshot{
		Width:   r.width,
		Height:  r.height,
		Images:  r.Images(),
		Strokes: r.Strokes(),
		Tools:   make(map[string]domain.ToolState, len(r.tools)),
	}
	for k, v := range r.tools {
		snap.Tools[k] = v
	}

	keys := make([]string, 0, len(r.peers))
	for key := range r.peers {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		meta := r.peers[key]
		if rect, ok := r.selections[key]; ok {
			snap.Selections = append(snap.Selections, SelectionView{Key: key, Meta: meta, Rect: rect})
		}

		pos, ok := r.smoothed[key]
		if !ok {
			raw, ok := r.cursors[key]
			if !ok {
				continue
			}
			pos = domain.Point{X: raw.X, Y: raw.Y}
		}
		emoji, _ := r.Gesture(key)
		snap.Cursors = append(snap.Cursors, CursorView{
			Key:     key,
			Meta:    meta,
			Pos:     pos,
			Idle:    r.Idle(key),
			Gesture: emoji,
		})
	}
	return snap
}
