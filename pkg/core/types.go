// pkg/core/types.go
package core

// Position2D is a geographic coordinate without GIS dependencies.
type Position2D struct {
	X float64 `json:"x"` // longitude
	Y float64 `json:"y"` // latitude
}

// LngLat returns the position as a [lon, lat] pair, the order GeoJSON uses.
func (p Position2D) LngLat() [2]float64 {
	return [2]float64{p.X, p.Y}
}

// Polyline is an ordered list of positions.
type Polyline []Position2D

// Bounds is an axis-aligned geographic bounding box.
type Bounds struct {
	Min Position2D `json:"min"` // south-west
	Max Position2D `json:"max"` // north-east
}

// Center returns the midpoint of the box.
func (b Bounds) Center() Position2D {
	return Position2D{
		X: (b.Min.X + b.Max.X) / 2,
		Y: (b.Min.Y + b.Max.Y) / 2,
	}
}
