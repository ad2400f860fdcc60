// Package route precomputes arc lengths for campaign routes and answers
// position-at-fraction queries against them.
package route

import (
	"sort"

	"github.com/morea-atlas/campaign-player/internal/geo"
	"github.com/morea-atlas/campaign-player/pkg/core"
)

// Entry is one indexed route.
type Entry struct {
	Route      core.Route
	Cumulative []float64 // km from the first point, same length as Route.Points
	Length     float64   // km
	bounds     core.Bounds
	hasBounds  bool
}

// Index is read-only after Build and safe to share between goroutines.
type Index struct {
	routes map[string]*Entry
	order  []string
}

// Build indexes routes by id. A later route with the same id replaces an
// earlier one.
func Build(routes []core.Route) *Index {
	idx := &Index{routes: make(map[string]*Entry, len(routes))}
	for _, r := range routes {
		if _, exists := idx.routes[r.ID]; !exists {
			idx.order = append(idx.order, r.ID)
		}
		idx.routes[r.ID] = newEntry(r)
	}
	return idx
}

func newEntry(r core.Route) *Entry {
	e := &Entry{
		Route:      r,
		Cumulative: make([]float64, len(r.Points)),
	}
	for i := 1; i < len(r.Points); i++ {
		e.Cumulative[i] = e.Cumulative[i-1] + geo.Distance(r.Points[i-1], r.Points[i])
	}
	if n := len(e.Cumulative); n > 0 {
		e.Length = e.Cumulative[n-1]
	}
	e.bounds, e.hasBounds = geo.BoundsOf(r.Points)
	return e
}

// Lookup returns the indexed entry for id.
func (idx *Index) Lookup(id string) (*Entry, bool) {
	e, ok := idx.routes[id]
	return e, ok
}

// IDs returns route ids in first-seen order.
func (idx *Index) IDs() []string {
	out := make([]string, len(idx.order))
	copy(out, idx.order)
	return out
}

// Len returns the number of indexed routes.
func (idx *Index) Len() int {
	return len(idx.routes)
}

// Length returns the total arc length of a route in km.
func (idx *Index) Length(id string) (float64, bool) {
	e, ok := idx.routes[id]
	if !ok {
		return 0, false
	}
	return e.Length, true
}

// Bounds returns the bounding box of the whole route.
func (idx *Index) Bounds(id string) (core.Bounds, bool) {
	e, ok := idx.routes[id]
	if !ok || !e.hasBounds {
		return core.Bounds{}, false
	}
	return e.bounds, true
}

// PositionAtFraction returns the point at fraction t of the route's arc
// length. ok is false only for an unknown route. t is not clamped: values
// below 0 extrapolate off the first segment and values past the end resolve
// to the last point.
func (idx *Index) PositionAtFraction(id string, t float64) (core.Position2D, bool) {
	e, ok := idx.routes[id]
	if !ok || len(e.Route.Points) == 0 {
		return core.Position2D{}, false
	}
	return e.PositionAtFraction(t), true
}

// PositionAtFraction interpolates along the entry. See Index.PositionAtFraction.
func (e *Entry) PositionAtFraction(t float64) core.Position2D {
	pts := e.Route.Points
	if e.Length == 0 {
		return pts[0]
	}

	target := e.Length * t
	// first vertex i >= 1 whose cumulative distance reaches the target
	i := 1 + sort.SearchFloat64s(e.Cumulative[1:], target)
	if i >= len(pts) {
		return pts[len(pts)-1]
	}

	prev, next := pts[i-1], pts[i]
	var segT float64
	if segLen := e.Cumulative[i] - e.Cumulative[i-1]; segLen != 0 {
		segT = (target - e.Cumulative[i-1]) / segLen
	}
	return core.Position2D{
		X: prev.X + (next.X-prev.X)*segT,
		Y: prev.Y + (next.Y-prev.Y)*segT,
	}
}
