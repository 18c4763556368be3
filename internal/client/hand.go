package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
	"github.com/sritampatnaik/Magic-Canvas/internal/protocol"
	"github.com/sritampatnaik/Magic-Canvas/lib/logger/sl"
)

// Hand gesture labels produced by the recognizer.
const (
	GestureClosedFist = "Closed_Fist"
	GestureOpenPalm   = "Open_Palm"
	GestureVictory    = "Victory"
	GesturePointingUp = "Pointing_Up"
	GestureNone       = "None"
)

var gestureEmoji = map[string]string{
	GestureClosedFist: "✊",
	GestureOpenPalm:   "✋",
	GestureVictory:    "✌️",
	GesturePointingUp: "☝️",
}

// HandFrame is one recognizer result. X and Y are the index fingertip in
// normalized [0,1] image coordinates.
type HandFrame struct {
	Label string  `json:"label"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// GestureSource yields hand frames until it fails or ctx ends.
type GestureSource interface {
	Next(ctx context.Context) (HandFrame, error)
}

// JSONGestureSource reads one JSON HandFrame per line, as written by an
// external recognizer process.
type JSONGestureSource struct {
	dec *json.Decoder
}

func NewJSONGestureSource(r io.Reader) *JSONGestureSource {
	return &JSONGestureSource{dec: json.NewDecoder(r)}
}

// Next blocks on the reader; ctx is only checked between frames.
func (s *JSONGestureSource) Next(ctx context.Context) (HandFrame, error) {
	if err := ctx.Err(); err != nil {
		return HandFrame{}, err
	}
	var f HandFrame
	if err := s.dec.Decode(&f); err != nil {
		return HandFrame{}, err
	}
	return f, nil
}

type handState struct {
	label string
}

// RunGestures feeds frames from src into the session until ctx ends, the
// session closes or the source fails. A failing source only disables hand
// input.
func (s *Session) RunGestures(ctx context.Context, src GestureSource) error {
	const op = "client.session.run_gestures"
	log := s.log.With(slog.String("op", op))

	for {
		frame, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			log.Warn("hand input disabled", sl.Err(err))
			return err
		}
		if err := s.HandFrame(frame); err != nil {
			return nil
		}
	}
}

// HandFrame applies one recognizer frame: the fingertip drives the cursor,
// Closed_Fist holds the pen down, Victory drags a selection and every label
// change is announced with a gesture emoji.
func (s *Session) HandFrame(f HandFrame) error {
	return s.call(func() {
		w, h := s.canvas.Bounds()
		p := domain.Point{X: f.X * w, Y: f.Y * h}

		changed := f.Label != s.hand.label
		if changed {
			s.hand.label = f.Label
			emoji := gestureEmoji[f.Label]
			s.canvas.SetGesture(s.key, emoji)
			if emoji != "" {
				s.send(protocol.Gesture{Key: s.key, Emoji: emoji})
			}
			s.release()
		}

		s.move(p)
		if !changed {
			return
		}
		switch f.Label {
		case GestureClosedFist:
			s.beginStroke(p, s.tool.Tool == domain.ToolEraser)
		case GestureVictory:
			s.beginSelection(p)
		}
	})
}
