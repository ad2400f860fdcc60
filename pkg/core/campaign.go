// pkg/core/campaign.go
package core

// Route is a named polyline units travel along.
type Route struct {
	ID     string   `json:"id"`
	Color  string   `json:"defaultColor,omitempty"`
	Kind   string   `json:"kind,omitempty"`
	Points Polyline `json:"points"`
}

// Campaign is one playable scenario from the catalog.
type Campaign struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	TimeSpanLabel string `json:"timeSpanLabel"`
	Units         []Unit `json:"units"`
	Clips         []Clip `json:"clips"`
}

// MaxTime returns the largest clip end time, or 0 if there are no clips.
func (c *Campaign) MaxTime() float64 {
	var maxT float64
	for i, clip := range c.Clips {
		if i == 0 || clip.T1 > maxT {
			maxT = clip.T1
		}
	}
	return maxT
}

// Unit is the descriptive part of a campaign unit. Its live marker is owned
// by the presence manager.
type Unit struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Banner string  `json:"banner"`
	Size   float64 `json:"size"` // visual scale factor
}

// Clip binds one unit to motion along one route between T0 and T1.
type Clip struct {
	UnitID  string        `json:"unitId"`
	RouteID string        `json:"routeId"`
	T0      float64       `json:"t0"`
	T1      float64       `json:"t1"`
	Camera  *CameraIntent `json:"camera,omitempty"`
	Events  []Event       `json:"events,omitempty"`
}

// Active reports whether time falls inside the clip, both ends inclusive.
func (c *Clip) Active(time float64) bool {
	return time >= c.T0 && time <= c.T1
}

// Fraction maps time onto [0,1] across the clip. Zero-duration clips pin
// to the route start.
func (c *Clip) Fraction(time float64) float64 {
	if c.T1 == c.T0 {
		return 0
	}
	return (time - c.T0) / (c.T1 - c.T0)
}

// CameraMode selects how a clip drives the viewport.
type CameraMode string

const (
	CameraFollow CameraMode = "follow"
	CameraFlyTo  CameraMode = "flyTo"
	CameraWide   CameraMode = "wide"
)

// CameraIntent is a clip's request for viewport movement. Nil fields fall
// back to the camera's current values.
type CameraIntent struct {
	Mode    CameraMode `json:"mode,omitempty"`
	Zoom    *float64   `json:"zoom,omitempty"`
	Pitch   *float64   `json:"pitch,omitempty"`
	Bearing *float64   `json:"bearing,omitempty"`
}

// Event is a narrative beat triggered once playback crosses At.
type Event struct {
	At     float64     `json:"at"`
	Text   string      `json:"text"`
	Coords *Position2D `json:"coords,omitempty"`
}
