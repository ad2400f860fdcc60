// Package catalog loads the routes and campaigns a player can choose from.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/morea-atlas/campaign-player/internal/route"
	"github.com/morea-atlas/campaign-player/pkg/core"
)

var (
	// ErrCampaignNotFound is returned for an unknown campaign id.
	ErrCampaignNotFound = errors.New("campaign not found")
	// ErrEmptyCatalog is returned by First when there are no campaigns.
	ErrEmptyCatalog = errors.New("catalog has no campaigns")
)

// Source loads a catalog from somewhere.
type Source interface {
	Load(ctx context.Context) (*Catalog, error)
}

// Catalog is an immutable set of routes and campaigns.
type Catalog struct {
	Routes    []core.Route
	Campaigns []core.Campaign

	index *route.Index
	byID  map[string]int
}

// New builds a catalog. A repeated campaign id resolves to the later entry.
func New(routes []core.Route, campaigns []core.Campaign) *Catalog {
	c := &Catalog{
		Routes:    routes,
		Campaigns: campaigns,
		index:     route.Build(routes),
		byID:      make(map[string]int, len(campaigns)),
	}
	for i := range campaigns {
		c.byID[campaigns[i].ID] = i
	}
	return c
}

// RouteIndex returns the prepared route geometry.
func (c *Catalog) RouteIndex() *route.Index {
	return c.index
}

// Campaign returns the campaign with the given id.
func (c *Catalog) Campaign(id string) (*core.Campaign, error) {
	i, ok := c.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCampaignNotFound, id)
	}
	return &c.Campaigns[i], nil
}

// First returns the campaign loaded at startup.
func (c *Catalog) First() (*core.Campaign, error) {
	if len(c.Campaigns) == 0 {
		return nil, ErrEmptyCatalog
	}
	return &c.Campaigns[0], nil
}

// Problem is a data issue the player tolerates at runtime but that an
// author should fix.
type Problem struct {
	CampaignID string `json:"campaignId"`
	ClipIndex  int    `json:"clipIndex"` // -1 for campaign-level problems
	Message    string `json:"message"`
}

func (p Problem) String() string {
	if p.ClipIndex < 0 {
		return fmt.Sprintf("%s: %s", p.CampaignID, p.Message)
	}
	return fmt.Sprintf("%s clip %d: %s", p.CampaignID, p.ClipIndex, p.Message)
}

// Check lists references to unknown units or routes, inverted clip spans
// and campaigns without clips.
func (c *Catalog) Check() []Problem {
	var problems []Problem
	for _, camp := range c.Campaigns {
		if len(camp.Clips) == 0 {
			problems = append(problems, Problem{camp.ID, -1, "no clips"})
			continue
		}
		units := make(map[string]bool, len(camp.Units))
		for _, u := range camp.Units {
			units[u.ID] = true
		}
		for i, clip := range camp.Clips {
			if !units[clip.UnitID] {
				problems = append(problems, Problem{camp.ID, i, "unknown unit " + clip.UnitID})
			}
			if _, ok := c.index.Lookup(clip.RouteID); !ok {
				problems = append(problems, Problem{camp.ID, i, "unknown route " + clip.RouteID})
			}
			if clip.T1 < clip.T0 {
				problems = append(problems, Problem{camp.ID, i, fmt.Sprintf("t1 %.2f before t0 %.2f", clip.T1, clip.T0)})
			}
		}
	}
	return problems
}
