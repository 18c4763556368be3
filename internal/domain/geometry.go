package domain

import "math"

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) Dist(o Point) float64 {
	return math.Hypot(p.X-o.X, p.Y-o.Y)
}

// Rect is an axis-aligned rectangle with its origin at the top-left corner.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// NormalizeRect returns the rectangle spanned by two drag corners, so the
// result does not depend on drag direction.
func NormalizeRect(a, b Point) Rect {
	return Rect{
		X: math.Min(a.X, b.X),
		Y: math.Min(a.Y, b.Y),
		W: math.Abs(b.X - a.X),
		H: math.Abs(b.Y - a.Y),
	}
}

// Normalized folds negative sizes back into the origin.
func (r Rect) Normalized() Rect {
	return NormalizeRect(Point{X: r.X, Y: r.Y}, Point{X: r.X + r.W, Y: r.Y + r.H})
}

func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
