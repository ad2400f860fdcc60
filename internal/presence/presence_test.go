package presence

import (
	"testing"

	"github.com/morea-atlas/campaign-player/internal/render/headless"
	"github.com/morea-atlas/campaign-player/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUnits() []core.Unit {
	return []core.Unit{
		{ID: "varangians", Name: "Varangian Guard", Banner: "img/varangian.png", Size: 1},
		{ID: "franks", Name: "Frankish Knights", Banner: "img/franks.png", Size: 0.75},
	}
}

func TestActivate_CreatesUnplacedMarkers(t *testing.T) {
	surface := headless.New(headless.Config{})
	m := NewManager(surface, nil)

	m.Activate(testUnits())

	require.Equal(t, 2, m.Len())
	mk, ok := surface.Marker(MarkerID("franks"))
	require.True(t, ok)
	assert.Equal(t, "Frankish Knights", mk.Label)
	assert.Equal(t, "img/franks.png", mk.Image)
	assert.Equal(t, 120.0, mk.Width)
	assert.Equal(t, "bottom", mk.Anchor)
	assert.Equal(t, core.Position2D{}, mk.Position)

	_, placed := m.Position("franks")
	assert.False(t, placed)
	_, ok = m.Lead()
	assert.False(t, ok)
}

func TestActivate_DuplicateReplaces(t *testing.T) {
	surface := headless.New(headless.Config{})
	m := NewManager(surface, nil)

	units := append(testUnits(), core.Unit{ID: "varangians", Name: "Guard Reserve", Size: 1})
	m.Activate(units)

	assert.Equal(t, 2, m.Len())
	assert.Len(t, surface.Markers(), 2)
	mk, _ := surface.Marker(MarkerID("varangians"))
	assert.Equal(t, "Guard Reserve", mk.Label)

	live := m.Units()
	require.Len(t, live, 2)
	assert.Equal(t, "franks", live[0].Unit.ID)
	assert.Equal(t, "varangians", live[1].Unit.ID)
}

func TestMove(t *testing.T) {
	surface := headless.New(headless.Config{})
	m := NewManager(surface, nil)
	m.Activate(testUnits())

	p := core.Position2D{X: 22.4, Y: 37.3}
	assert.True(t, m.Move("franks", p))
	assert.False(t, m.Move("bulgars", p))

	got, ok := m.Position("franks")
	require.True(t, ok)
	assert.Equal(t, p, got)

	mk, _ := surface.Marker(MarkerID("franks"))
	assert.Equal(t, p, mk.Position)
}

func TestLead_FirstPlacedUnit(t *testing.T) {
	m := NewManager(headless.New(headless.Config{}), nil)
	m.Activate(testUnits())

	m.Move("franks", core.Position2D{X: 1, Y: 2})
	lead, ok := m.Lead()
	require.True(t, ok)
	assert.Equal(t, "franks", lead.Unit.ID)

	m.Move("varangians", core.Position2D{X: 3, Y: 4})
	lead, _ = m.Lead()
	assert.Equal(t, "varangians", lead.Unit.ID)
}

func TestClear(t *testing.T) {
	surface := headless.New(headless.Config{})
	m := NewManager(surface, nil)
	m.Activate(testUnits())

	m.Clear()

	assert.Equal(t, 0, m.Len())
	assert.Empty(t, surface.Markers())
	assert.False(t, m.Has("franks"))

	// reactivation after clear works
	m.Activate(testUnits()[:1])
	assert.Equal(t, 1, m.Len())
	assert.Len(t, surface.Markers(), 1)
}

func TestManager_WithoutSurface(t *testing.T) {
	m := NewManager(nil, nil)

	m.Activate(testUnits())
	require.True(t, m.Move("varangians", core.Position2D{X: 22.4, Y: 37.1}))

	lead, ok := m.Lead()
	require.True(t, ok)
	assert.Equal(t, "varangians", lead.Unit.ID)

	m.Clear()
	assert.Equal(t, 0, m.Len())
}
