// pkg/core/marker.go
package core

// Marker is a positioned visual on the map surface.
type Marker struct {
	ID       string     `json:"id"`
	Label    string     `json:"label"`
	Image    string     `json:"image,omitempty"`
	Width    float64    `json:"width"` // pixels
	Anchor   string     `json:"anchor,omitempty"`
	Position Position2D `json:"position"`
}

// CameraState is the viewport pose.
type CameraState struct {
	Center  Position2D `json:"center"`
	Zoom    float64    `json:"zoom"`
	Pitch   float64    `json:"pitch"`
	Bearing float64    `json:"bearing"`
}
