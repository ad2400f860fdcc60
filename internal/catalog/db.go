package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/morea-atlas/campaign-player/internal/geo"
	"github.com/morea-atlas/campaign-player/internal/model"
	"github.com/morea-atlas/campaign-player/pkg/core"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DBSource reads the catalog from the database written by Import.
type DBSource struct {
	DB *gorm.DB
}

// Load implements Source.
func (s DBSource) Load(ctx context.Context) (*Catalog, error) {
	db := s.DB.WithContext(ctx)

	var routeRows []model.Route
	if err := db.Order("id").Find(&routeRows).Error; err != nil {
		return nil, fmt.Errorf("failed to load routes: %w", err)
	}
	var campaignRows []model.Campaign
	err := db.
		Preload("Units", func(tx *gorm.DB) *gorm.DB { return tx.Order("ordinal") }).
		Preload("Clips", func(tx *gorm.DB) *gorm.DB { return tx.Order("ordinal") }).
		Order("ordinal").
		Find(&campaignRows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load campaigns: %w", err)
	}

	routes := make([]core.Route, 0, len(routeRows))
	for _, row := range routeRows {
		r, err := routeFromModel(row)
		if err != nil {
			return nil, err
		}
		routes = append(routes, r)
	}
	campaigns := make([]core.Campaign, 0, len(campaignRows))
	for _, row := range campaignRows {
		c, err := campaignFromModel(row)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return New(routes, campaigns), nil
}

// Import replaces the database contents with cat in one transaction.
// source is recorded in catalog_info.
func Import(ctx context.Context, db *gorm.DB, cat *Catalog, source string) error {
	routeRows := make([]model.Route, 0, len(cat.Routes))
	for _, r := range cat.Routes {
		row, err := routeToModel(r)
		if err != nil {
			return err
		}
		routeRows = append(routeRows, row)
	}
	campaignRows := make([]model.Campaign, 0, len(cat.Campaigns))
	for i, c := range cat.Campaigns {
		row, err := campaignToModel(c, i)
		if err != nil {
			return err
		}
		campaignRows = append(campaignRows, row)
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range []interface{}{&model.Clip{}, &model.Unit{}, &model.Campaign{}, &model.Route{}} {
			if err := tx.Where("1 = 1").Delete(table).Error; err != nil {
				return fmt.Errorf("failed to clear %T: %w", table, err)
			}
		}
		if len(routeRows) > 0 {
			if err := tx.Create(&routeRows).Error; err != nil {
				return fmt.Errorf("failed to insert routes: %w", err)
			}
		}
		for i := range campaignRows {
			if err := tx.Create(&campaignRows[i]).Error; err != nil {
				return fmt.Errorf("failed to insert campaign %s: %w", campaignRows[i].ID, err)
			}
		}
		return tx.Create(&model.CatalogInfo{
			ImportedAt: time.Now(),
			Source:     source,
			Routes:     len(routeRows),
			Campaigns:  len(campaignRows),
		}).Error
	})
}

func routeToModel(r core.Route) (model.Route, error) {
	points, err := geo.FormatPolyline(r.Points)
	if err != nil {
		return model.Route{}, fmt.Errorf("route %s: %w", r.ID, err)
	}
	return model.Route{ID: r.ID, Color: r.Color, Kind: r.Kind, Points: points}, nil
}

func routeFromModel(row model.Route) (core.Route, error) {
	points, err := geo.ParsePolyline(row.Points)
	if err != nil {
		return core.Route{}, fmt.Errorf("route %s: %w", row.ID, err)
	}
	return core.Route{ID: row.ID, Color: row.Color, Kind: row.Kind, Points: points}, nil
}

func campaignToModel(c core.Campaign, ordinal int) (model.Campaign, error) {
	row := model.Campaign{
		ID:            c.ID,
		Ordinal:       ordinal,
		Title:         c.Title,
		TimeSpanLabel: c.TimeSpanLabel,
	}
	for i, u := range c.Units {
		row.Units = append(row.Units, model.Unit{
			Ordinal: i,
			UnitID:  u.ID,
			Name:    u.Name,
			Banner:  u.Banner,
			Size:    u.Size,
		})
	}
	for i, clip := range c.Clips {
		mc := model.Clip{
			Ordinal: i,
			UnitID:  clip.UnitID,
			RouteID: clip.RouteID,
			T0:      clip.T0,
			T1:      clip.T1,
		}
		if clip.Camera != nil {
			data, err := json.Marshal(clip.Camera)
			if err != nil {
				return model.Campaign{}, fmt.Errorf("campaign %s clip %d camera: %w", c.ID, i, err)
			}
			mc.Camera = datatypes.JSON(data)
		}
		if len(clip.Events) > 0 {
			data, err := json.Marshal(clip.Events)
			if err != nil {
				return model.Campaign{}, fmt.Errorf("campaign %s clip %d events: %w", c.ID, i, err)
			}
			mc.Events = datatypes.JSON(data)
		}
		row.Clips = append(row.Clips, mc)
	}
	return row, nil
}

func campaignFromModel(row model.Campaign) (core.Campaign, error) {
	c := core.Campaign{
		ID:            row.ID,
		Title:         row.Title,
		TimeSpanLabel: row.TimeSpanLabel,
	}
	for _, u := range row.Units {
		c.Units = append(c.Units, core.Unit{ID: u.UnitID, Name: u.Name, Banner: u.Banner, Size: u.Size})
	}
	for _, mc := range row.Clips {
		clip := core.Clip{UnitID: mc.UnitID, RouteID: mc.RouteID, T0: mc.T0, T1: mc.T1}
		if len(mc.Camera) > 0 {
			if err := json.Unmarshal(mc.Camera, &clip.Camera); err != nil {
				return core.Campaign{}, fmt.Errorf("campaign %s clip %d camera: %w", row.ID, mc.Ordinal, err)
			}
		}
		if len(mc.Events) > 0 {
			if err := json.Unmarshal(mc.Events, &clip.Events); err != nil {
				return core.Campaign{}, fmt.Errorf("campaign %s clip %d events: %w", row.ID, mc.Ordinal, err)
			}
		}
		c.Clips = append(c.Clips, clip)
	}
	return c, nil
}
