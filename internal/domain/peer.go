package domain

import (
	"fmt"
	"math"
)

const DefaultColorHex = "#3b82f6"

// PeerMeta is the metadata a participant tracks on the room channel.
type PeerMeta struct {
	DisplayName string `json:"name"`
	AvatarGlyph string `json:"avatar"`
	ColorHex    string `json:"color"`
}

// ColorFromString derives a stable colour from an identifier: the string
// hash picks the hue, saturation and lightness are fixed at 85% and 54%.
func ColorFromString(s string) string {
	if s == "" {
		return DefaultColorHex
	}
	var hash int32
	for _, r := range s {
		hash = (hash << 5) - hash + int32(r)
	}
	hue := int(hash) % 360
	if hue < 0 {
		hue = -hue
	}
	return hslToHex(float64(hue), 0.85, 0.54)
}

func hslToHex(h, s, l float64) string {
	c := (1 - math.Abs(2*l-1)) * s
	hp := h / 60
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))

	var r, g, b float64
	switch {
	case hp < 1:
		r, g, b = c, x, 0
	case hp < 2:
		r, g, b = x, c, 0
	case hp < 3:
		r, g, b = 0, c, x
	case hp < 4:
		r, g, b = 0, x, c
	case hp < 5:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}

	m := l - c/2
	return fmt.Sprintf("#%02x%02x%02x", toByte(r+m), toByte(g+m), toByte(b+m))
}

func toByte(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}
