// Package headless is an in-memory map used when no browser renders the
// playback: offline simulation, the stream server's authoritative state and
// tests.
package headless

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/morea-atlas/campaign-player/internal/geo"
	"github.com/morea-atlas/campaign-player/pkg/core"
)

// tileSize is the width in pixels of one web-mercator tile at zoom 0.
const tileSize = 512

// earthCircumference is the web-mercator world width in metres.
const earthCircumference = 2 * math.Pi * 6378137

var (
	ErrMarkerExists   = errors.New("marker already exists")
	ErrMarkerNotFound = errors.New("marker not found")
)

// Config describes the simulated viewport.
type Config struct {
	Width   float64
	Height  float64
	MinZoom float64
	MaxZoom float64
	Initial core.CameraState
}

// CameraMove records one camera call.
type CameraMove struct {
	Kind     string // "ease", "fly" or "fit"
	Target   core.CameraState
	Duration time.Duration
}

// Map keeps markers and camera pose in memory. Safe for concurrent use.
type Map struct {
	mu      sync.RWMutex
	cfg     Config
	markers map[string]core.Marker
	camera  core.CameraState
	moves   []CameraMove
}

// New creates a headless map.
func New(cfg Config) *Map {
	if cfg.Width <= 0 {
		cfg.Width = 1280
	}
	if cfg.Height <= 0 {
		cfg.Height = 720
	}
	if cfg.MaxZoom <= 0 {
		cfg.MaxZoom = 22
	}
	return &Map{
		cfg:     cfg,
		markers: make(map[string]core.Marker),
		camera:  cfg.Initial,
	}
}

// AddMarker registers a marker.
func (m *Map) AddMarker(mk core.Marker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.markers[mk.ID]; ok {
		return fmt.Errorf("%w: %s", ErrMarkerExists, mk.ID)
	}
	m.markers[mk.ID] = mk
	return nil
}

// MoveMarker repositions a marker.
func (m *Map) MoveMarker(id string, p core.Position2D) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mk, ok := m.markers[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMarkerNotFound, id)
	}
	mk.Position = p
	m.markers[id] = mk
	return nil
}

// RemoveMarker deletes a marker.
func (m *Map) RemoveMarker(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.markers[id]; !ok {
		return fmt.Errorf("%w: %s", ErrMarkerNotFound, id)
	}
	delete(m.markers, id)
	return nil
}

// Marker returns a marker by id.
func (m *Map) Marker(id string) (core.Marker, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mk, ok := m.markers[id]
	return mk, ok
}

// Markers returns all markers sorted by id.
func (m *Map) Markers() []core.Marker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Marker, 0, len(m.markers))
	for _, mk := range m.markers {
		out = append(out, mk)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// EaseTo jumps straight to the target; there is nothing to animate.
func (m *Map) EaseTo(target core.CameraState, d time.Duration) error {
	m.setCamera(CameraMove{Kind: "ease", Target: target, Duration: d})
	return nil
}

// FlyTo jumps straight to the target.
func (m *Map) FlyTo(target core.CameraState, d time.Duration) error {
	m.setCamera(CameraMove{Kind: "fly", Target: target, Duration: d})
	return nil
}

// FitBounds centres on b at the largest zoom that keeps b inside the
// viewport minus padding. Pitch and bearing are kept.
func (m *Map) FitBounds(b core.Bounds, padding float64, d time.Duration) error {
	m.mu.RLock()
	target := m.camera
	cfg := m.cfg
	m.mu.RUnlock()

	target.Center, target.Zoom = fitBounds(b, padding, cfg)
	m.setCamera(CameraMove{Kind: "fit", Target: target, Duration: d})
	return nil
}

// State returns the current camera pose.
func (m *Map) State() core.CameraState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.camera
}

// Moves returns every camera call so far.
func (m *Map) Moves() []CameraMove {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]CameraMove, len(m.moves))
	copy(out, m.moves)
	return out
}

func (m *Map) setCamera(mv CameraMove) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.camera = mv.Target
	m.moves = append(m.moves, mv)
}

func fitBounds(b core.Bounds, padding float64, cfg Config) (core.Position2D, float64) {
	minX, minY := geo.ToWebMercator(b.Min)
	maxX, maxY := geo.ToWebMercator(b.Max)
	centre := geo.FromWebMercator((minX+maxX)/2, (minY+maxY)/2)

	availW := math.Max(cfg.Width-2*padding, 1)
	availH := math.Max(cfg.Height-2*padding, 1)
	spanX := math.Abs(maxX - minX)
	spanY := math.Abs(maxY - minY)
	if spanX == 0 && spanY == 0 {
		return centre, cfg.MaxZoom
	}

	// metres per pixel at zoom z is earthCircumference / (tileSize * 2^z)
	scale := math.Max(spanX/availW, spanY/availH)
	zoom := math.Log2(earthCircumference / (tileSize * scale))
	zoom = math.Max(cfg.MinZoom, math.Min(cfg.MaxZoom, zoom))
	return centre, zoom
}
