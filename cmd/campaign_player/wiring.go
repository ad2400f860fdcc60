package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/morea-atlas/campaign-player/internal/campaign"
	"github.com/morea-atlas/campaign-player/internal/catalog"
	"github.com/morea-atlas/campaign-player/internal/config"
	"github.com/morea-atlas/campaign-player/internal/render/headless"
	"github.com/morea-atlas/campaign-player/internal/session"
	"github.com/morea-atlas/campaign-player/internal/stream"
	"github.com/morea-atlas/campaign-player/pkg/core"
	"github.com/morea-atlas/campaign-player/pkg/streaming"
)

// playerConfig reads camera tuning, falling back to the built-in defaults
// for unset or non-positive values.
func playerConfig() campaign.Config {
	cfg := campaign.DefaultConfig()
	cam := config.GetCameraConfig()
	if cam.FollowDuration > 0 {
		cfg.FollowDuration = cam.FollowDuration
	}
	if cam.FitPadding > 0 {
		cfg.FitPadding = cam.FitPadding
	}
	if cam.EventZoom > 0 {
		cfg.EventZoom = cam.EventZoom
	}
	return cfg
}

// mapConfig describes the authoritative headless viewport.
func mapConfig() (headless.Config, error) {
	cam := config.GetCameraConfig()
	center, err := parseCenter(cam.DefaultCenter)
	if err != nil {
		return headless.Config{}, err
	}
	return headless.Config{
		Width:  float64(viper.GetInt("viewport.width")),
		Height: float64(viper.GetInt("viewport.height")),
		Initial: core.CameraState{
			Center: center,
			Zoom:   cam.DefaultZoom,
		},
	}, nil
}

// parseCenter reads "lon,lat".
func parseCenter(s string) (core.Position2D, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return core.Position2D{}, fmt.Errorf("camera center %q: want \"lon,lat\"", s)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return core.Position2D{}, fmt.Errorf("camera center longitude: %w", err)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return core.Position2D{}, fmt.Errorf("camera center latitude: %w", err)
	}
	return core.Position2D{X: lon, Y: lat}, nil
}

// campaignRoutes returns the routes c's clips reference, in catalog order.
func campaignRoutes(cat *catalog.Catalog, c *core.Campaign) []core.Route {
	if c == nil {
		return nil
	}
	used := make(map[string]bool, len(c.Clips))
	for _, clip := range c.Clips {
		used[clip.RouteID] = true
	}
	var out []core.Route
	for _, r := range cat.Routes {
		if used[r.ID] {
			out = append(out, r)
			delete(used, r.ID)
		}
	}
	return out
}

// publishPlayback mirrors the player into the session snapshot and the stream
// after every recompute and every transport change.
func publishPlayback(p *campaign.Player, sess *session.Context, pub stream.Publisher) {
	publish := func() {
		u := timeUpdate(p)
		sess.SetTime(u.Time, u.MaxTime, u.Speed, u.Playing)
		pub.Broadcast(streaming.TypeTimeUpdate, u)
	}
	p.OnTimeUpdate(func(float64, float64) { publish() })
	p.OnStateChange(func(bool, float64) { publish() })
}

// timeUpdate must run on the playback goroutine.
func timeUpdate(p *campaign.Player) streaming.TimeUpdatePayload {
	u := streaming.TimeUpdatePayload{
		Time:    p.Time(),
		MaxTime: p.MaxTime(),
		Speed:   p.Speed(),
		Playing: p.IsPlaying(),
		Label:   campaign.FormatTime(p.Time()),
	}
	if lead, ok := p.Lead(); ok {
		pos := lead.Position
		u.Lead = &pos
	}
	return u
}
