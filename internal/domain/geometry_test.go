package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRect(t *testing.T) {
	tests := []struct {
		name string
		a, b Point
		want Rect
	}{
		{"drag up and right", Point{10, 10}, Point{50, 5}, Rect{X: 10, Y: 5, W: 40, H: 5}},
		{"drag down and right", Point{10, 10}, Point{30, 40}, Rect{X: 10, Y: 10, W: 20, H: 30}},
		{"drag up and left", Point{30, 40}, Point{10, 10}, Rect{X: 10, Y: 10, W: 20, H: 30}},
		{"no movement", Point{7, 7}, Point{7, 7}, Rect{X: 7, Y: 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeRect(tt.a, tt.b))
		})
	}
}

func TestRectNormalized(t *testing.T) {
	r := Rect{X: 50, Y: 20, W: -40, H: -15}
	assert.Equal(t, Rect{X: 10, Y: 5, W: 40, H: 15}, r.Normalized())
	assert.True(t, Rect{X: 1, Y: 1}.Empty())
}
