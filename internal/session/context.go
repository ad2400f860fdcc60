// Package session holds a thread-safe snapshot of what the player is doing,
// readable from goroutines other than the playback loop.
package session

import (
	"sync"
)

// Snapshot is a copy of the playback state at one point in time.
type Snapshot struct {
	CampaignID    string  `json:"campaignId"`
	CampaignTitle string  `json:"campaignTitle"`
	Time          float64 `json:"time"`
	MaxTime       float64 `json:"maxTime"`
	Speed         float64 `json:"speed"`
	Playing       bool    `json:"playing"`
	Units         int     `json:"units"`
	EventsFired   int     `json:"eventsFired"`
}

// Context holds the current playback state.
type Context struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewContext creates a Context with no campaign loaded.
func NewContext() *Context {
	return &Context{snap: Snapshot{Speed: 1}}
}

// Get returns the current snapshot.
func (c *Context) Get() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// SetCampaign records a newly activated campaign and resets the counters.
func (c *Context) SetCampaign(id, title string, units int, maxTime float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.CampaignID = id
	c.snap.CampaignTitle = title
	c.snap.Units = units
	c.snap.MaxTime = maxTime
	c.snap.Time = 0
	c.snap.EventsFired = 0
}

// SetTime records the clock state after a recompute pass.
func (c *Context) SetTime(t, maxTime, speed float64, playing bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.Time = t
	c.snap.MaxTime = maxTime
	c.snap.Speed = speed
	c.snap.Playing = playing
}

// EventFired bumps the fired-event counter.
func (c *Context) EventFired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap.EventsFired++
}
