// Package render defines the capabilities the playback engine needs from a
// map-rendering surface.
package render

import (
	"time"

	"github.com/morea-atlas/campaign-player/pkg/core"
)

// Surface places visual markers on the map.
type Surface interface {
	AddMarker(m core.Marker) error
	MoveMarker(id string, p core.Position2D) error
	RemoveMarker(id string) error
}

// Camera moves the viewport.
type Camera interface {
	// EaseTo moves to target over d; d == 0 is instantaneous.
	EaseTo(target core.CameraState, d time.Duration) error
	// FlyTo performs an animated zoom-out/zoom-in transition.
	FlyTo(target core.CameraState, d time.Duration) error
	// FitBounds frames b with padding pixels on every side.
	FitBounds(b core.Bounds, padding float64, d time.Duration) error
	// State returns the current pose, used for defaults.
	State() core.CameraState
}

// Map is the full capability set of the rendering collaborator.
type Map interface {
	Surface
	Camera
}
