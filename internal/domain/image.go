package domain

// ImageItem is an image placed on the canvas. It is never removed during a
// session; moves overwrite its position.
type ImageItem struct {
	ID        string  `json:"id"`
	SourceURL string  `json:"src"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	W         float64 `json:"w"`
	H         float64 `json:"h"`
}

func (i *ImageItem) Bounds() Rect {
	return Rect{X: i.X, Y: i.Y, W: i.W, H: i.H}
}
