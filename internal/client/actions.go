package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"log/slog"
	"strings"

	"github.com/sritampatnaik/Magic-Canvas/internal/canvas"
	"github.com/sritampatnaik/Magic-Canvas/internal/compositor"
	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
	"github.com/sritampatnaik/Magic-Canvas/lib/logger/sl"
)

// Voice assistant actions.
const (
	ActionChangeColor     = "change_color"
	ActionChangeBrushSize = "change_brush_size"
	ActionGenerateImage   = "generate_image"
)

const maxBrushPx = 64

type changeColorArgs struct {
	Color string `json:"color"`
}

type changeBrushSizeArgs struct {
	Size float64 `json:"size"`
}

type generateImageArgs struct {
	Prompt string `json:"prompt"`
}

// InvokeAction runs a named action with JSON arguments, as issued by the
// voice assistant. It is equivalent to the matching UI call.
func (s *Session) InvokeAction(ctx context.Context, name string, args json.RawMessage) error {
	const op = "client.session.invoke_action"
	log := s.log.With(slog.String("op", op), slog.String("action", name))

	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	case ActionChangeColor:
		var a changeColorArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		color := strings.TrimSpace(a.Color)
		if color == "" {
			return fmt.Errorf("%s: color is required", op)
		}
		return s.SetColor(color)

	case ActionChangeBrushSize:
		var a changeBrushSizeArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return s.SetBrushSize(domain.Clamp(a.Size, 1, maxBrushPx))

	case ActionGenerateImage:
		var a generateImageArgs
		if err := json.Unmarshal(args, &a); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		_, err := s.Generate(ctx, a.Prompt)
		return err

	default:
		log.Warn("unknown action")
		return fmt.Errorf("%s: %q: %w", op, name, ErrUnknownAction)
	}
}

// Generate renders the canvas, crops the local selection, sends it with
// prompt to the generation service and places the result over the
// selection. The selection is cleared afterwards.
func (s *Session) Generate(ctx context.Context, prompt string) (domain.ImageItem, error) {
	const op = "client.session.generate"
	log := s.log.With(slog.String("op", op))

	if s.media == nil {
		return domain.ImageItem{}, ErrGenerationDisabled
	}

	var (
		snap canvas.Snapshot
		rect domain.Rect
		ok   bool
	)
	if err := s.call(func() {
		snap = s.canvas.Snapshot()
		if s.selection != nil {
			rect, ok = *s.selection, true
		}
	}); err != nil {
		return domain.ImageItem{}, err
	}
	if !ok || rect.Empty() {
		return domain.ImageItem{}, ErrNoSelection
	}

	// Network work runs off the loop so peers keep flowing in meanwhile.
	surface, err := s.renderer.Render(ctx, snap)
	if err != nil {
		return domain.ImageItem{}, fmt.Errorf("%s: render: %w", op, err)
	}
	cropped, err := compositor.Crop(surface, rect)
	if err != nil {
		return domain.ImageItem{}, fmt.Errorf("%s: %w", op, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, cropped); err != nil {
		return domain.ImageItem{}, fmt.Errorf("%s: encode: %w", op, err)
	}

	refURL, err := s.media.Upload(ctx, buf.Bytes(), "image/png")
	if err != nil {
		log.Error("failed to upload reference", sl.Err(err))
		return domain.ImageItem{}, fmt.Errorf("%s: upload: %w", op, err)
	}
	url, err := s.media.Generate(ctx, prompt, refURL)
	if err != nil {
		log.Error("failed to generate image", sl.Err(err))
		return domain.ImageItem{}, fmt.Errorf("%s: %w", op, err)
	}

	var item domain.ImageItem
	if err := s.call(func() {
		item = s.addImage(url, rect)
		if s.selection != nil {
			s.dragging = false
			s.clearSelection()
		}
	}); err != nil {
		return domain.ImageItem{}, err
	}

	log.Info("generated image placed", slog.String("image_id", item.ID))
	return item, nil
}
