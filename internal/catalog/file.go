package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/morea-atlas/campaign-player/internal/geo"
	"github.com/morea-atlas/campaign-player/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// campaignsDocument is the layout of campaigns.json.
type campaignsDocument struct {
	Campaigns []core.Campaign `json:"campaigns"`
}

// FileSource reads routes.geojson and campaigns.json from disk.
type FileSource struct {
	RoutesPath    string
	CampaignsPath string
}

// Load implements Source.
func (s FileSource) Load(ctx context.Context) (*Catalog, error) {
	routesData, err := os.ReadFile(s.RoutesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read routes: %w", err)
	}
	campaignsData, err := os.ReadFile(s.CampaignsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read campaigns: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return decode(routesData, campaignsData)
}

func decode(routesData, campaignsData []byte) (*Catalog, error) {
	routes, err := DecodeRoutes(routesData)
	if err != nil {
		return nil, err
	}
	campaigns, err := DecodeCampaigns(campaignsData)
	if err != nil {
		return nil, err
	}
	return New(routes, campaigns), nil
}

// routeFeature mirrors a GeoJSON feature with the geometry left raw so it can
// be decoded without simplefeatures' validity checks.
type routeFeature struct {
	Type       string                 `json:"type"`
	ID         interface{}            `json:"id,omitempty"`
	Properties map[string]interface{} `json:"properties"`
	Geometry   json.RawMessage        `json:"geometry"`
}

// DecodeRoutes parses a GeoJSON FeatureCollection of LineString features.
// The route id comes from properties.id, falling back to the feature id.
// Every route needs at least two coordinates; repeated coordinates (a unit
// holding one position) are accepted.
func DecodeRoutes(data []byte) ([]core.Route, error) {
	var fc struct {
		Type     string         `json:"type"`
		Features []routeFeature `json:"features"`
	}
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse routes GeoJSON: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("failed to parse routes GeoJSON: type %q is not FeatureCollection", fc.Type)
	}

	routes := make([]core.Route, 0, len(fc.Features))
	for i, f := range fc.Features {
		if len(f.Geometry) == 0 || string(f.Geometry) == "null" {
			return nil, fmt.Errorf("route feature %d has no geometry", i)
		}
		g, err := geom.UnmarshalGeoJSON(f.Geometry, geom.DisableAllValidations)
		if err != nil {
			return nil, fmt.Errorf("route feature %d: %w", i, err)
		}
		if g.Type() != geom.TypeLineString {
			return nil, fmt.Errorf("route feature %d: expected LineString, got %s", i, g.Type())
		}

		id := stringProperty(f.Properties, "id")
		if id == "" {
			if fid, ok := f.ID.(string); ok {
				id = fid
			}
		}
		if id == "" {
			return nil, fmt.Errorf("route feature %d has no id", i)
		}

		seq := g.DumpCoordinates()
		if seq.Length() < 2 {
			return nil, fmt.Errorf("route %s: LineString needs at least 2 points, got %d", id, seq.Length())
		}
		points := make(core.Polyline, seq.Length())
		for j := range points {
			xy := seq.GetXY(j)
			points[j] = core.Position2D{X: xy.X, Y: xy.Y}
		}

		routes = append(routes, core.Route{
			ID:     id,
			Color:  stringProperty(f.Properties, "defaultColor"),
			Kind:   stringProperty(f.Properties, "kind"),
			Points: points,
		})
	}
	return routes, nil
}

// EncodeRoutes is the inverse of DecodeRoutes.
func EncodeRoutes(routes []core.Route) ([]byte, error) {
	fc := make(geom.GeoJSONFeatureCollection, 0, len(routes))
	for _, r := range routes {
		props := map[string]interface{}{"id": r.ID}
		if r.Color != "" {
			props["defaultColor"] = r.Color
		}
		if r.Kind != "" {
			props["kind"] = r.Kind
		}
		fc = append(fc, geom.GeoJSONFeature{
			Geometry:   geo.LineString(r.Points).AsGeometry(),
			Properties: props,
		})
	}
	return json.Marshal(fc)
}

// DecodeCampaigns parses a campaigns.json document.
func DecodeCampaigns(data []byte) ([]core.Campaign, error) {
	var doc campaignsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse campaigns: %w", err)
	}
	for i, c := range doc.Campaigns {
		if c.ID == "" {
			return nil, fmt.Errorf("campaign %d has no id", i)
		}
	}
	return doc.Campaigns, nil
}

func stringProperty(props map[string]interface{}, key string) string {
	s, _ := props[key].(string)
	return s
}
