package compositor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/fogleman/gg"

	"github.com/sritampatnaik/Magic-Canvas/internal/canvas"
	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
	"github.com/sritampatnaik/Magic-Canvas/lib/logger/sl"
)

var ErrEmptyRect = errors.New("selection is empty")

const (
	cursorRadius   = 6
	selectionDash  = 6
	selectionAlpha = 0.08
	labelOffset    = 12
)

// Renderer rasterizes snapshots. Images are fetched through the loader and
// cached by source URL; images that fail to load are skipped.
type Renderer struct {
	log    *slog.Logger
	loader ImageLoader

	mu     sync.Mutex
	images map[string]image.Image
}

func NewRenderer(loader ImageLoader, log *slog.Logger) *Renderer {
	if log == nil {
		log = slog.Default()
	}
	return &Renderer{
		log:    log,
		loader: loader,
		images: make(map[string]image.Image),
	}
}

// Render draws snap onto a white surface of the snapshot's size.
func (r *Renderer) Render(ctx context.Context, snap canvas.Snapshot) (image.Image, error) {
	w, h := int(math.Ceil(snap.Width)), int(math.Ceil(snap.Height))
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("render: invalid surface %dx%d", w, h)
	}

	dc := gg.NewContext(w, h)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	ink := gg.NewContext(w, h)
	inkPending := false

	flushInk := func() {
		if inkPending {
			dc.DrawImage(ink.Image(), 0, 0)
			inkPending = false
		}
	}

	for _, op := range BuildScene(snap) {
		switch op.Kind {
		case OpImage:
			r.drawImage(ctx, dc, op.Image)
		case OpStroke:
			if op.Stroke.IsErase() {
				eraseInk(ink, op.Stroke)
			} else {
				drawStroke(ink, op.Stroke, op.Alpha)
			}
			inkPending = true
		case OpSelection:
			flushInk()
			drawSelection(dc, op)
		case OpCursor:
			flushInk()
			drawCursor(dc, op)
		}
	}
	flushInk()

	return dc.Image(), nil
}

func (r *Renderer) drawImage(ctx context.Context, dc *gg.Context, item *domain.ImageItem) {
	if r.loader == nil || item.W <= 0 || item.H <= 0 {
		return
	}
	img, err := r.image(ctx, item.SourceURL)
	if err != nil {
		r.log.Warn("skipping image", slog.String("image_id", item.ID), sl.Err(err))
		return
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return
	}
	dc.Push()
	dc.Translate(item.X, item.Y)
	dc.Scale(item.W/float64(b.Dx()), item.H/float64(b.Dy()))
	dc.DrawImage(img, 0, 0)
	dc.Pop()
}

func (r *Renderer) image(ctx context.Context, src string) (image.Image, error) {
	r.mu.Lock()
	img, ok := r.images[src]
	r.mu.Unlock()
	if ok {
		return img, nil
	}

	img, err := r.loader.Load(ctx, src)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.images[src] = img
	r.mu.Unlock()
	return img, nil
}

func tracePath(dc *gg.Context, s *domain.Stroke) {
	first := s.Points[0]
	dc.MoveTo(first.X, first.Y)
	for _, p := range s.Points[1:] {
		dc.LineTo(p.X, p.Y)
	}
}

func drawStroke(dc *gg.Context, s *domain.Stroke, alpha float64) {
	setColor(dc, s.ColorHex, alpha)
	width := s.WidthPx
	if width <= 0 {
		width = domain.DefaultBrushPx
	}
	if len(s.Points) == 1 {
		dc.DrawCircle(s.Points[0].X, s.Points[0].Y, width/2)
		dc.Fill()
		return
	}
	dc.SetLineWidth(width)
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)
	tracePath(dc, s)
	dc.Stroke()
}

// eraseInk applies s to the ink layer with destination-out: ink alpha is
// scaled by the inverse of the stroke coverage.
func eraseInk(ink *gg.Context, s *domain.Stroke) {
	b := ink.Image().Bounds()
	mask := gg.NewContext(b.Dx(), b.Dy())
	drawStroke(mask, &domain.Stroke{Points: s.Points, ColorHex: "#000000", WidthPx: s.WidthPx}, 1)

	dst, ok := ink.Image().(*image.RGBA)
	if !ok {
		return
	}
	cover, ok := mask.Image().(*image.RGBA)
	if !ok {
		return
	}
	for i := 0; i+3 < len(dst.Pix); i += 4 {
		a := cover.Pix[i+3]
		if a == 0 {
			continue
		}
		keep := uint32(255 - a)
		for c := 0; c < 4; c++ {
			dst.Pix[i+c] = uint8(uint32(dst.Pix[i+c]) * keep / 255)
		}
	}
}

func drawSelection(dc *gg.Context, op Op) {
	color := op.Meta.ColorHex
	dc.Push()
	setColor(dc, color, selectionAlpha)
	dc.DrawRectangle(op.Rect.X, op.Rect.Y, op.Rect.W, op.Rect.H)
	dc.Fill()

	setColor(dc, color, op.Alpha)
	dc.SetLineWidth(1.5)
	dc.SetDash(selectionDash, selectionDash-2)
	dc.DrawRectangle(op.Rect.X, op.Rect.Y, op.Rect.W, op.Rect.H)
	dc.Stroke()
	dc.Pop()
}

func drawCursor(dc *gg.Context, op Op) {
	dc.Push()
	setColor(dc, op.Meta.ColorHex, op.Alpha)
	dc.DrawCircle(op.Pos.X, op.Pos.Y, cursorRadius)
	dc.Fill()

	label := op.Meta.DisplayName
	if op.Gesture != "" {
		label = strings.TrimSpace(label + " " + op.Gesture)
	}
	if label != "" {
		dc.DrawString(label, op.Pos.X+labelOffset, op.Pos.Y+labelOffset)
	}
	dc.Pop()
}

// setColor accepts #rgb, #rrggbb and #rrggbbaa and falls back to the
// default peer colour.
func setColor(dc *gg.Context, hex string, alpha float64) {
	r, g, b, a, ok := parseHex(hex)
	if !ok {
		r, g, b, a, _ = parseHex(domain.DefaultColorHex)
	}
	dc.SetRGBA(r, g, b, a*alpha)
}

func parseHex(hex string) (r, g, b, a float64, ok bool) {
	hex = strings.TrimPrefix(hex, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return 0, 0, 0, 0, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0, 0, false
	}
	return float64(v>>24&0xff) / 255, float64(v>>16&0xff) / 255, float64(v>>8&0xff) / 255, float64(v&0xff) / 255, true
}

// Crop returns the part of img inside rect, clipped to the image bounds.
func Crop(img image.Image, rect domain.Rect) (image.Image, error) {
	rect = rect.Normalized()
	b := img.Bounds()
	x0 := math.Max(rect.X, float64(b.Min.X))
	y0 := math.Max(rect.Y, float64(b.Min.Y))
	x1 := math.Min(rect.X+rect.W, float64(b.Max.X))
	y1 := math.Min(rect.Y+rect.H, float64(b.Max.Y))
	w, h := int(math.Round(x1-x0)), int(math.Round(y1-y0))
	if w <= 0 || h <= 0 {
		return nil, ErrEmptyRect
	}

	dc := gg.NewContext(w, h)
	dc.DrawImage(img, -int(math.Round(x0)), -int(math.Round(y0)))
	return dc.Image(), nil
}
