package canvas

import (
	"log/slog"

	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
)

// AddImage places an image; a repeated id overwrites the earlier entry.
func (r *Reconciler) AddImage(img domain.ImageItem) {
	for _, existing := range r.images {
		if existing.ID == img.ID {
			*existing = img
			return
		}
	}
	r.images = append(r.images, &img)
}

func (r *Reconciler) MoveImage(id string, x, y float64) bool {
	for _, img := range r.images {
		if img.ID == id {
			img.X = x
			img.Y = y
			return true
		}
	}
	r.log.Debug("dropping move for unknown image", slog.String("image_id", id))
	return false
}

func (r *Reconciler) Images() []domain.ImageItem {
	out := make([]domain.ImageItem, len(r.images))
	for i, img := range r.images {
		out[i] = *img
	}
	return out
}
