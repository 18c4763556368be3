package client

import (
	"github.com/google/uuid"

	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
	"github.com/sritampatnaik/Magic-Canvas/internal/protocol"
)

// PointerDown starts a stroke with the pen or eraser, or a selection drag
// with the select tool. The pointer tool only moves the cursor.
func (s *Session) PointerDown(x, y float64) error {
	return s.call(func() {
		p := domain.Point{X: x, Y: y}
		s.moveCursor(p)
		switch s.tool.Tool {
		case domain.ToolPen, domain.ToolEraser:
			s.beginStroke(p, s.tool.Tool == domain.ToolEraser)
		case domain.ToolSelect:
			s.beginSelection(p)
		}
	})
}

func (s *Session) PointerMove(x, y float64) error {
	return s.call(func() { s.move(domain.Point{X: x, Y: y}) })
}

// PointerUp finalizes the active stroke. A selection drag stops growing but
// the rectangle stays until cleared.
func (s *Session) PointerUp(x, y float64) error {
	return s.call(func() {
		s.moveCursor(domain.Point{X: x, Y: y})
		s.release()
	})
}

// SetTool switches the local tool and broadcasts the new state. Leaving the
// select tool clears the local selection.
func (s *Session) SetTool(tool domain.Tool) error {
	if !tool.Valid() {
		return ErrUnknownTool
	}
	return s.call(func() {
		s.release()
		if tool != domain.ToolSelect && s.selection != nil {
			s.clearSelection()
		}
		s.tool.Tool = tool
		s.publishTool()
	})
}

func (s *Session) SetColor(hex string) error {
	return s.call(func() {
		s.tool.ColorHex = hex
		s.publishTool()
	})
}

// SetBrushSize changes the width of new pen strokes. It is local only.
func (s *Session) SetBrushSize(px float64) error {
	if px <= 0 {
		px = domain.DefaultBrushPx
	}
	return s.call(func() { s.brush = px })
}

// EraseAt removes stroke points within the erase radius of (x, y) and
// re-broadcasts every stroke that lost points.
func (s *Session) EraseAt(x, y float64) (int, error) {
	var n int
	err := s.call(func() {
		changed := s.canvas.EraseAt(domain.Point{X: x, Y: y}, domain.EraseRadiusPx)
		for _, st := range changed {
			s.send(protocol.StrokeReplace{Stroke: *st})
		}
		n = len(changed)
	})
	return n, err
}

// ClearSelection ends the local selection on every client.
func (s *Session) ClearSelection() error {
	return s.call(func() {
		s.dragging = false
		if s.selection != nil {
			s.clearSelection()
		}
	})
}

// Selection returns the local selection rectangle, if any.
func (s *Session) Selection() (domain.Rect, bool, error) {
	var (
		rect domain.Rect
		ok   bool
	)
	err := s.call(func() {
		if s.selection != nil {
			rect, ok = *s.selection, true
		}
	})
	return rect, ok, err
}

// CanGenerate reports whether a local selection exists.
func (s *Session) CanGenerate() bool {
	_, ok, err := s.Selection()
	return err == nil && ok
}

func (s *Session) AddImage(src string, bounds domain.Rect) (domain.ImageItem, error) {
	var item domain.ImageItem
	err := s.call(func() { item = s.addImage(src, bounds) })
	return item, err
}

func (s *Session) MoveImage(id string, x, y float64) error {
	var moved bool
	if err := s.call(func() {
		moved = s.canvas.MoveImage(id, x, y)
		if moved {
			s.send(protocol.ImageMove{ID: id, X: x, Y: y})
		}
	}); err != nil {
		return err
	}
	if !moved {
		return ErrImageNotFound
	}
	return nil
}

func (s *Session) addImage(src string, bounds domain.Rect) domain.ImageItem {
	bounds = bounds.Normalized()
	item := domain.ImageItem{
		ID:        uuid.NewString(),
		SourceURL: src,
		X:         bounds.X,
		Y:         bounds.Y,
		W:         bounds.W,
		H:         bounds.H,
	}
	s.canvas.AddImage(item)
	s.send(protocol.ImageAdd{ImageItem: item})
	return item
}

func (s *Session) move(p domain.Point) {
	s.moveCursor(p)
	if s.activeStroke != "" {
		if s.canvas.AppendPoint(s.activeStroke, p) {
			s.send(protocol.StrokeAppend{ID: s.activeStroke, Point: p})
		}
	}
	if s.dragging {
		rect := domain.NormalizeRect(s.anchor, p)
		s.selection = &rect
		s.canvas.UpdateSelection(s.key, rect)
		s.send(protocol.SelectionUpdate{Key: s.key, X: rect.X, Y: rect.Y, W: rect.W, H: rect.H})
	}
}

// moveCursor records the local position and broadcasts it at most once per
// CursorInterval. A throttled sample is kept and flushed by the next tick.
func (s *Session) moveCursor(p domain.Point) {
	s.canvas.SetLocalCursor(s.key, p.X, p.Y)
	if s.limiter.AllowN(s.now(), 1) {
		s.pendingCursor = nil
		s.send(protocol.Cursor{Key: s.key, X: p.X, Y: p.Y})
		return
	}
	s.pendingCursor = &p
}

func (s *Session) beginStroke(p domain.Point, erase bool) {
	if s.activeStroke != "" {
		s.endStroke()
	}
	mode := domain.StrokeModeDraw
	if erase {
		mode = domain.StrokeModeErase
	}
	st := domain.NewStroke(p, s.tool.ColorHex, s.brush, s.user.ID.String(), mode)
	s.canvas.StartStroke(st)
	s.canvas.Hold(st.ID)
	s.activeStroke = st.ID
	s.send(protocol.StrokeStart{Stroke: *st})
}

func (s *Session) endStroke() {
	id := s.activeStroke
	s.activeStroke = ""
	s.canvas.EndStroke(id)
	s.send(protocol.StrokeEnd{ID: id})
}

func (s *Session) beginSelection(p domain.Point) {
	s.dragging = true
	s.anchor = p
	rect := domain.Rect{X: p.X, Y: p.Y}
	s.selection = &rect
	s.canvas.StartSelection(s.key, p)
	s.send(protocol.SelectionStart{Key: s.key, X: p.X, Y: p.Y})
}

func (s *Session) clearSelection() {
	s.selection = nil
	s.canvas.EndSelection(s.key)
	s.send(protocol.SelectionEnd{Key: s.key})
}

// release ends whatever the pointer or hand is holding down.
func (s *Session) release() {
	if s.activeStroke != "" {
		s.endStroke()
	}
	s.dragging = false
}

func (s *Session) publishTool() {
	s.canvas.SetTool(s.key, s.tool)
	s.send(protocol.ToolChange{Key: s.key, Tool: s.tool.Tool, Color: s.tool.ColorHex})
}
