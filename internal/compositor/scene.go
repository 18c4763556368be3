// Package compositor turns a reconciled canvas snapshot into an ordered
// display list and rasterizes it.
package compositor

import (
	"github.com/sritampatnaik/Magic-Canvas/internal/canvas"
	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
)

type OpKind string

const (
	OpImage     OpKind = "image"
	OpStroke    OpKind = "stroke"
	OpSelection OpKind = "selection"
	OpCursor    OpKind = "cursor"
)

// Op is one entry of the display list. Only the fields relevant to Kind
// are set.
type Op struct {
	Kind OpKind

	Image  *domain.ImageItem
	Stroke *domain.Stroke

	Key     string
	Meta    domain.PeerMeta
	Rect    domain.Rect
	Pos     domain.Point
	Alpha   float64
	Gesture string
}

// BuildScene orders the snapshot for drawing: images in insertion order,
// then ink in stroke order, then selection rectangles, then cursors.
func BuildScene(snap canvas.Snapshot) []Op {
	ops := make([]Op, 0, len(snap.Images)+len(snap.Strokes)+len(snap.Selections)+len(snap.Cursors))

	for i := range snap.Images {
		img := snap.Images[i]
		ops = append(ops, Op{Kind: OpImage, Image: &img, Alpha: 1})
	}
	for _, s := range snap.Strokes {
		if len(s.Points) == 0 {
			continue
		}
		ops = append(ops, Op{Kind: OpStroke, Stroke: s, Alpha: 1})
	}
	for _, sel := range snap.Selections {
		ops = append(ops, Op{
			Kind:  OpSelection,
			Key:   sel.Key,
			Meta:  sel.Meta,
			Rect:  sel.Rect,
			Alpha: 1,
		})
	}
	for _, c := range snap.Cursors {
		alpha := 1.0
		if c.Idle {
			alpha = canvas.IdleOpacity
		}
		ops = append(ops, Op{
			Kind:    OpCursor,
			Key:     c.Key,
			Meta:    c.Meta,
			Pos:     c.Pos,
			Alpha:   alpha,
			Gesture: c.Gesture,
		})
	}
	return ops
}
