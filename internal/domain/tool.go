package domain

import "time"

type Tool string

const (
	ToolPointer Tool = "pointer"
	ToolPen     Tool = "pen"
	ToolEraser  Tool = "eraser"
	ToolSelect  Tool = "select"
)

func (t Tool) Valid() bool {
	switch t {
	case ToolPointer, ToolPen, ToolEraser, ToolSelect:
		return true
	}
	return false
}

// Draws reports whether pressing with this tool starts a stroke.
func (t Tool) Draws() bool {
	return t == ToolPen || t == ToolEraser
}

type ToolState struct {
	Tool     Tool   `json:"tool"`
	ColorHex string `json:"color"`
}

// CursorSample is the last raw position received for a connection key.
type CursorSample struct {
	X          float64
	Y          float64
	CapturedAt time.Time
}

// GestureIndicator is a display-only emoji shown next to a peer cursor.
type GestureIndicator struct {
	Emoji string
	At    time.Time
}
