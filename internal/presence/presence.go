// Package presence owns the on-map markers of the active campaign's units.
package presence

import (
	"log/slog"

	"github.com/morea-atlas/campaign-player/internal/render"
	"github.com/morea-atlas/campaign-player/pkg/core"
)

// bannerWidth is the marker width in pixels for a unit of size 1.
const bannerWidth = 160

// LiveUnit is the runtime counterpart of a core.Unit.
type LiveUnit struct {
	Unit     core.Unit
	MarkerID string
	Position core.Position2D
	Placed   bool // false until the first Move
}

// Manager creates, moves and destroys unit markers. Only the campaign
// player drives it.
type Manager struct {
	surface render.Surface
	logger  *slog.Logger

	units map[string]*LiveUnit
	order []string
}

// NewManager creates a manager drawing on surface. A nil surface tracks
// units without drawing them.
func NewManager(surface render.Surface, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if surface == nil {
		surface = noSurface{}
	}
	return &Manager{
		surface: surface,
		logger:  logger,
		units:   make(map[string]*LiveUnit),
	}
}

// MarkerID returns the surface id used for a unit.
func MarkerID(unitID string) string {
	return "unit:" + unitID
}

// Activate creates one marker per unit at the neutral coordinate. A repeated
// unit id replaces the earlier marker.
func (m *Manager) Activate(units []core.Unit) {
	for _, u := range units {
		if _, exists := m.units[u.ID]; exists {
			m.remove(u.ID)
		}

		live := &LiveUnit{Unit: u, MarkerID: MarkerID(u.ID)}
		err := m.surface.AddMarker(core.Marker{
			ID:     live.MarkerID,
			Label:  u.Name,
			Image:  u.Banner,
			Width:  u.Size * bannerWidth,
			Anchor: "bottom",
		})
		if err != nil {
			m.logger.Warn("Failed to add unit marker", "unit", u.ID, "error", err)
		}
		m.units[u.ID] = live
		m.order = append(m.order, u.ID)
	}
}

// Clear removes every live marker.
func (m *Manager) Clear() {
	for _, id := range m.order {
		live := m.units[id]
		if err := m.surface.RemoveMarker(live.MarkerID); err != nil {
			m.logger.Warn("Failed to remove unit marker", "unit", id, "error", err)
		}
	}
	m.units = make(map[string]*LiveUnit)
	m.order = nil
}

func (m *Manager) remove(unitID string) {
	live := m.units[unitID]
	if err := m.surface.RemoveMarker(live.MarkerID); err != nil {
		m.logger.Warn("Failed to remove unit marker", "unit", unitID, "error", err)
	}
	delete(m.units, unitID)
	for i, id := range m.order {
		if id == unitID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Has reports whether unitID is live.
func (m *Manager) Has(unitID string) bool {
	_, ok := m.units[unitID]
	return ok
}

// Move places a unit's marker. Returns false for an unknown unit.
func (m *Manager) Move(unitID string, p core.Position2D) bool {
	live, ok := m.units[unitID]
	if !ok {
		return false
	}
	live.Position = p
	live.Placed = true
	if err := m.surface.MoveMarker(live.MarkerID, p); err != nil {
		m.logger.Debug("Failed to move unit marker", "unit", unitID, "error", err)
	}
	return true
}

// Position returns a unit's last placed position.
func (m *Manager) Position(unitID string) (core.Position2D, bool) {
	live, ok := m.units[unitID]
	if !ok || !live.Placed {
		return core.Position2D{}, false
	}
	return live.Position, true
}

// Units returns the live units in activation order.
func (m *Manager) Units() []LiveUnit {
	out := make([]LiveUnit, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.units[id])
	}
	return out
}

// Lead returns the first unit that has been placed, the focus of the fog of
// war overlay.
func (m *Manager) Lead() (LiveUnit, bool) {
	for _, id := range m.order {
		if live := m.units[id]; live.Placed {
			return *live, true
		}
	}
	return LiveUnit{}, false
}

// Len returns the number of live units.
func (m *Manager) Len() int {
	return len(m.units)
}

type noSurface struct{}

func (noSurface) AddMarker(core.Marker) error              { return nil }
func (noSurface) MoveMarker(string, core.Position2D) error { return nil }
func (noSurface) RemoveMarker(string) error                { return nil }
