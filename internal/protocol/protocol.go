// Package protocol defines the room channel wire format: a JSON envelope
// carrying presence traffic or one of a fixed set of broadcast events, each
// with its own payload shape.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
)

type MessageType string

const (
	TypeBroadcast  MessageType = "broadcast"
	TypeTrack      MessageType = "track"
	TypePresence   MessageType = "presence"
	TypeSubscribed MessageType = "subscribed"
	TypeError      MessageType = "error"
)

const (
	EventPresenceSync    = "sync"
	EventCursor          = "cursor"
	EventStrokeStart     = "stroke-start"
	EventStrokeAppend    = "stroke-append"
	EventStrokeEnd       = "stroke-end"
	EventStroke          = "stroke"
	EventImageAdd        = "image-add"
	EventImageMove       = "image-move"
	EventGesture         = "gesture"
	EventTool            = "tool"
	EventSelectionStart  = "selection-start"
	EventSelectionUpdate = "selection-update"
	EventSelectionEnd    = "selection-end"
)

var (
	ErrUnknownEvent   = errors.New("unknown event")
	ErrMissingPayload = errors.New("missing payload")
)

// Envelope is the frame exchanged with the channel server. Key carries the
// sender's connection key on inbound broadcasts and the tracked key on
// presence frames.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Event   string          `json:"event,omitempty"`
	Key     string          `json:"key,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PresenceState maps connection keys to every metadata record tracked under
// that key. Only the first record of each key is authoritative.
type PresenceState map[string][]domain.PeerMeta

// Event is one decoded broadcast.
type Event interface {
	EventName() string
}

type Cursor struct {
	Key string  `json:"key"`
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
}

type StrokeStart struct {
	domain.Stroke
}

type StrokeAppend struct {
	ID    string       `json:"id"`
	Point domain.Point `json:"point"`
}

type StrokeEnd struct {
	ID string `json:"id"`
}

// StrokeReplace is the coarse whole-stroke replace-or-insert event.
type StrokeReplace struct {
	domain.Stroke
}

type ImageAdd struct {
	domain.ImageItem
}

type ImageMove struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

type Gesture struct {
	Key   string `json:"key"`
	Emoji string `json:"emoji"`
}

type ToolChange struct {
	Key   string      `json:"key"`
	Tool  domain.Tool `json:"tool"`
	Color string      `json:"color"`
}

type SelectionStart struct {
	Key string  `json:"key"`
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
}

type SelectionUpdate struct {
	Key string  `json:"key"`
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	W   float64 `json:"w"`
	H   float64 `json:"h"`
}

type SelectionEnd struct {
	Key string `json:"key"`
}

func (Cursor) EventName() string          { return EventCursor }
func (StrokeStart) EventName() string     { return EventStrokeStart }
func (StrokeAppend) EventName() string    { return EventStrokeAppend }
func (StrokeEnd) EventName() string       { return EventStrokeEnd }
func (StrokeReplace) EventName() string   { return EventStroke }
func (ImageAdd) EventName() string        { return EventImageAdd }
func (ImageMove) EventName() string       { return EventImageMove }
func (Gesture) EventName() string         { return EventGesture }
func (ToolChange) EventName() string      { return EventTool }
func (SelectionStart) EventName() string  { return EventSelectionStart }
func (SelectionUpdate) EventName() string { return EventSelectionUpdate }
func (SelectionEnd) EventName() string    { return EventSelectionEnd }

var decoders = map[string]func(json.RawMessage) (Event, error){
	EventCursor:          decodeAs[Cursor],
	EventStrokeStart:     decodeAs[StrokeStart],
	EventStrokeAppend:    decodeAs[StrokeAppend],
	EventStrokeEnd:       decodeAs[StrokeEnd],
	EventStroke:          decodeAs[StrokeReplace],
	EventImageAdd:        decodeAs[ImageAdd],
	EventImageMove:       decodeAs[ImageMove],
	EventGesture:         decodeAs[Gesture],
	EventTool:            decodeAs[ToolChange],
	EventSelectionStart:  decodeAs[SelectionStart],
	EventSelectionUpdate: decodeAs[SelectionUpdate],
	EventSelectionEnd:    decodeAs[SelectionEnd],
}

func decodeAs[T Event](raw json.RawMessage) (Event, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Known reports whether name is a broadcast event of this protocol.
func Known(name string) bool {
	_, ok := decoders[name]
	return ok
}

// Decode turns a broadcast event name and raw payload into its typed variant.
func Decode(event string, payload json.RawMessage) (Event, error) {
	decode, ok := decoders[event]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%s: %w", event, ErrMissingPayload)
	}
	ev, err := decode(payload)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", event, err)
	}
	return ev, nil
}

// DecodeEnvelope decodes the broadcast carried by env.
func DecodeEnvelope(env Envelope) (Event, error) {
	return Decode(env.Event, env.Payload)
}

// Broadcast wraps ev into a broadcast envelope.
func Broadcast(ev Event) (Envelope, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", ev.EventName(), err)
	}
	return Envelope{Type: TypeBroadcast, Event: ev.EventName(), Payload: raw}, nil
}

// Track wraps presence metadata into a track envelope.
func Track(meta domain.PeerMeta) (Envelope, error) {
	raw, err := json.Marshal(meta)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: TypeTrack, Payload: raw}, nil
}

// Presence wraps a snapshot into a presence sync envelope.
func Presence(state PresenceState) (Envelope, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: TypePresence, Event: EventPresenceSync, Payload: raw}, nil
}

// DecodePresence reads the snapshot from a presence sync envelope.
func DecodePresence(env Envelope) (PresenceState, error) {
	state := PresenceState{}
	if len(env.Payload) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(env.Payload, &state); err != nil {
		return nil, fmt.Errorf("decode presence: %w", err)
	}
	return state, nil
}
