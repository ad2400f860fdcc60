package catalog

import (
	"context"
	"fmt"

	"github.com/morea-atlas/campaign-player/internal/api"
)

// HTTPSource fetches the catalog documents from a web host, the way the
// browser player loads them.
type HTTPSource struct {
	Client        *api.Client
	RoutesPath    string // defaults to routes.geojson
	CampaignsPath string // defaults to campaigns.json
}

// Load implements Source.
func (s HTTPSource) Load(ctx context.Context) (*Catalog, error) {
	routesPath := s.RoutesPath
	if routesPath == "" {
		routesPath = "routes.geojson"
	}
	campaignsPath := s.CampaignsPath
	if campaignsPath == "" {
		campaignsPath = "campaigns.json"
	}

	routesData, err := s.Client.Fetch(ctx, routesPath)
	if err != nil {
		return nil, err
	}
	campaignsData, err := s.Client.Fetch(ctx, campaignsPath)
	if err != nil {
		return nil, err
	}

	cat, err := decode(routesData, campaignsData)
	if err != nil {
		return nil, fmt.Errorf("catalog from %s: %w", s.Client.BaseURL(), err)
	}
	return cat, nil
}
