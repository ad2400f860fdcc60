package geo

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/morea-atlas/campaign-player/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// GEO POINTS
// Everything in pkg/core is EPSG:4326 longitude/latitude. Web Mercator (3857)
// is only used for viewport math, where distances must be planar.

// EarthRadiusKm is the mean Earth radius used by Distance.
const EarthRadiusKm = 6371

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Distance returns the great-circle distance between a and b in kilometres
// using the haversine formula. Inputs are not range checked.
func Distance(a, b core.Position2D) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }
	lat1, lat2 := rad(a.Y), rad(b.Y)
	dLat := rad(b.Y - a.Y)
	dLon := rad(b.X - a.X)

	h := math.Pow(math.Sin(dLat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dLon/2), 2)
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// Position2DFromString parses a "long,lat" string into a core.Position2D.
func Position2DFromString(coords string) (core.Position2D, error) {
	coordsSplit := strings.Split(coords, ",")
	if len(coordsSplit) != 2 {
		return core.Position2D{}, ErrInvalidCoordinates
	}
	long, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[0]), 64)
	if err != nil {
		return core.Position2D{}, ErrInvalidCoordinates
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(coordsSplit[1]), 64)
	if err != nil {
		return core.Position2D{}, ErrInvalidCoordinates
	}
	return core.Position2D{X: long, Y: lat}, nil
}

// LineString converts a polyline into a simplefeatures LineString. Validation
// is skipped so a route parked on one point still converts.
func LineString(p core.Polyline) geom.LineString {
	flatCoords := make([]float64, 0, len(p)*2)
	for _, pt := range p {
		flatCoords = append(flatCoords, pt.X, pt.Y)
	}
	ls, _ := geom.NewLineString(geom.NewSequence(flatCoords, geom.DimXY), geom.DisableAllValidations)
	return ls
}

// BoundsOf returns the bounding box of a polyline. ok is false for an empty
// polyline.
func BoundsOf(p core.Polyline) (b core.Bounds, ok bool) {
	if len(p) == 0 {
		return core.Bounds{}, false
	}
	minXY, maxXY, ok := LineString(p).Envelope().MinMaxXYs()
	if !ok {
		return core.Bounds{}, false
	}
	return core.Bounds{
		Min: core.Position2D{X: minXY.X, Y: minXY.Y},
		Max: core.Position2D{X: maxXY.X, Y: maxXY.Y},
	}, true
}

// ToWebMercator projects a 4326 longitude/latitude into 3857 metres.
func ToWebMercator(p core.Position2D) (x, y float64) {
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ = f(p.X, p.Y, 0)
	return x, y
}

// FromWebMercator is the inverse of ToWebMercator.
func FromWebMercator(x, y float64) core.Position2D {
	f := wgs84.EPSG().Transform(3857, 4326)
	long, lat, _ := f(x, y, 0)
	return core.Position2D{X: long, Y: lat}
}
