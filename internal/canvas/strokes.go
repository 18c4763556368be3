package canvas

import (
	"log/slog"

	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
)

// StartStroke stores a copy of s and indexes its position so later appends
// find it without scanning the list. A start for a known id replaces that
// stroke in place, whether it is still active or already ended.
func (r *Reconciler) StartStroke(s *domain.Stroke) bool {
	if s == nil || s.ID == "" {
		return false
	}
	if entry, ok := r.active[s.ID]; ok {
		r.strokes[entry.index] = s.Clone()
		entry.touched = r.now()
		r.active[s.ID] = entry
		return true
	}
	index := r.strokeIndex(s.ID)
	if index < 0 {
		r.strokes = append(r.strokes, s.Clone())
		index = len(r.strokes) - 1
	} else {
		r.strokes[index] = s.Clone()
	}
	r.active[s.ID] = activeStroke{index: index, touched: r.now()}
	return true
}

// Hold exempts an active stroke from stale eviction until EndStroke.
func (r *Reconciler) Hold(id string) bool {
	entry, ok := r.active[id]
	if !ok {
		return false
	}
	entry.held = true
	r.active[id] = entry
	return true
}

// AppendPoint amends an active stroke. Appends for strokes that were never
// started here, or already ended, are dropped.
func (r *Reconciler) AppendPoint(id string, p domain.Point) bool {
	entry, ok := r.active[id]
	if !ok {
		r.log.Debug("dropping append for inactive stroke", slog.String("stroke_id", id))
		return false
	}
	s := r.strokes[entry.index]
	s.Points = append(s.Points, p)
	entry.touched = r.now()
	r.active[id] = entry
	return true
}

// EndStroke finalizes a stroke by removing it from the active index.
func (r *Reconciler) EndStroke(id string) bool {
	if _, ok := r.active[id]; !ok {
		return false
	}
	delete(r.active, id)
	return true
}

// PutStroke replaces the stroke with the same id or inserts it.
func (r *Reconciler) PutStroke(s *domain.Stroke) {
	if s == nil || s.ID == "" {
		return
	}
	if i := r.strokeIndex(s.ID); i >= 0 {
		r.strokes[i] = s.Clone()
		return
	}
	r.strokes = append(r.strokes, s.Clone())
}

func (r *Reconciler) strokeIndex(id string) int {
	for i, s := range r.strokes {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// EraseAt removes every point within radius of p from every stroke and
// returns copies of the strokes that lost points, for re-broadcast.
func (r *Reconciler) EraseAt(p domain.Point, radius float64) []*domain.Stroke {
	var changed []*domain.Stroke
	for _, s := range r.strokes {
		kept := domain.FilterPoints(s.Points, p, radius)
		if len(kept) == len(s.Points) {
			continue
		}
		s.Points = kept
		changed = append(changed, s.Clone())
	}
	return changed
}

func (r *Reconciler) Strokes() []*domain.Stroke {
	out := make([]*domain.Stroke, len(r.strokes))
	for i, s := range r.strokes {
		out[i] = s.Clone()
	}
	return out
}

func (r *Reconciler) Stroke(id string) (*domain.Stroke, bool) {
	for _, s := range r.strokes {
		if s.ID == id {
			return s.Clone(), true
		}
	}
	return nil, false
}

func (r *Reconciler) IsActive(id string) bool {
	_, ok := r.active[id]
	return ok
}

func (r *Reconciler) evictStaleStrokes() {
	if r.activeStrokeTTL <= 0 {
		return
	}
	now := r.now()
	for id, entry := range r.active {
		if !entry.held && now.Sub(entry.touched) > r.activeStrokeTTL {
			delete(r.active, id)
			r.log.Debug("evicted stale active stroke", slog.String("stroke_id", id))
		}
	}
}
