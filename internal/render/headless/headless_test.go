package headless

import (
	"testing"
	"time"

	"github.com/morea-atlas/campaign-player/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkers(t *testing.T) {
	m := New(Config{})

	require.NoError(t, m.AddMarker(core.Marker{ID: "unit:b", Label: "B"}))
	require.NoError(t, m.AddMarker(core.Marker{ID: "unit:a", Label: "A"}))
	assert.ErrorIs(t, m.AddMarker(core.Marker{ID: "unit:a"}), ErrMarkerExists)

	require.NoError(t, m.MoveMarker("unit:a", core.Position2D{X: 22.4, Y: 37.3}))
	assert.ErrorIs(t, m.MoveMarker("unit:z", core.Position2D{}), ErrMarkerNotFound)

	mk, ok := m.Marker("unit:a")
	require.True(t, ok)
	assert.Equal(t, core.Position2D{X: 22.4, Y: 37.3}, mk.Position)
	assert.Equal(t, "A", mk.Label)

	markers := m.Markers()
	require.Len(t, markers, 2)
	assert.Equal(t, "unit:a", markers[0].ID)

	require.NoError(t, m.RemoveMarker("unit:b"))
	assert.ErrorIs(t, m.RemoveMarker("unit:b"), ErrMarkerNotFound)
	assert.Len(t, m.Markers(), 1)
}

func TestCameraMoves(t *testing.T) {
	initial := core.CameraState{Center: core.Position2D{X: 22.4, Y: 37.3}, Zoom: 6.6}
	m := New(Config{Initial: initial})
	assert.Equal(t, initial, m.State())

	target := core.CameraState{Center: core.Position2D{X: 22.1, Y: 37.4}, Zoom: 7.8, Pitch: 30}
	require.NoError(t, m.EaseTo(target, 0))
	require.NoError(t, m.FlyTo(target, 1200*time.Millisecond))

	assert.Equal(t, target, m.State())
	moves := m.Moves()
	require.Len(t, moves, 2)
	assert.Equal(t, "ease", moves[0].Kind)
	assert.Equal(t, "fly", moves[1].Kind)
	assert.Equal(t, 1200*time.Millisecond, moves[1].Duration)
}

func TestFitBounds(t *testing.T) {
	m := New(Config{Initial: core.CameraState{Pitch: 20, Bearing: 10}})

	b := core.Bounds{Min: core.Position2D{X: 21, Y: 36}, Max: core.Position2D{X: 23, Y: 38}}
	require.NoError(t, m.FitBounds(b, 120, 0))

	st := m.State()
	assert.InDelta(t, 22.0, st.Center.X, 1e-6)
	assert.InDelta(t, 37.0, st.Center.Y, 0.05)
	assert.Equal(t, 20.0, st.Pitch)
	assert.Equal(t, 10.0, st.Bearing)
	// 2 degrees of latitude into 480 pixels lands around zoom 7
	assert.Greater(t, st.Zoom, 6.0)
	assert.Less(t, st.Zoom, 8.0)

	tighter := New(Config{})
	require.NoError(t, tighter.FitBounds(b, 0, 0))
	assert.Greater(t, tighter.State().Zoom, st.Zoom, "less padding zooms in further")
}

func TestFitBounds_PointUsesMaxZoom(t *testing.T) {
	m := New(Config{MaxZoom: 18})
	p := core.Position2D{X: 22, Y: 37}
	require.NoError(t, m.FitBounds(core.Bounds{Min: p, Max: p}, 120, 0))
	assert.Equal(t, 18.0, m.State().Zoom)
}
