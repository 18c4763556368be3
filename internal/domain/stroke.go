package domain

import "github.com/google/uuid"

type StrokeMode string

const (
	StrokeModeDraw  StrokeMode = "draw"
	StrokeModeErase StrokeMode = "erase"
)

const (
	// EraserWidthPx is the fixed width of destination-out eraser strokes.
	EraserWidthPx = 40
	// EraseRadiusPx is the radius of the point-filter eraser.
	EraseRadiusPx = 16

	DefaultBrushPx = 4
)

// Stroke is one continuous pen or eraser gesture.
type Stroke struct {
	ID           string     `json:"id"`
	Points       []Point    `json:"points"`
	ColorHex     string     `json:"color"`
	WidthPx      float64    `json:"width"`
	AuthorUserID string     `json:"userId,omitempty"`
	Mode         StrokeMode `json:"mode,omitempty"`
}

func NewStroke(start Point, color string, width float64, author string, mode StrokeMode) *Stroke {
	if mode == StrokeModeErase {
		width = EraserWidthPx
	}
	return &Stroke{
		ID:           uuid.NewString(),
		Points:       []Point{start},
		ColorHex:     color,
		WidthPx:      width,
		AuthorUserID: author,
		Mode:         mode,
	}
}

func (s *Stroke) IsErase() bool {
	return s.Mode == StrokeModeErase
}

// Clone returns a deep copy so callers never share point slices.
func (s *Stroke) Clone() *Stroke {
	c := *s
	c.Points = make([]Point, len(s.Points))
	copy(c.Points, s.Points)
	return &c
}

// FilterPoints keeps the points strictly farther than radius from p.
func FilterPoints(points []Point, p Point, radius float64) []Point {
	kept := make([]Point, 0, len(points))
	for _, pt := range points {
		if pt.Dist(p) > radius {
			kept = append(kept, pt)
		}
	}
	return kept
}
