package stream

import (
	"time"

	"github.com/morea-atlas/campaign-player/internal/render"
	"github.com/morea-atlas/campaign-player/pkg/core"
	"github.com/morea-atlas/campaign-player/pkg/streaming"
)

// Publisher fans a message out to live clients. *Hub satisfies it.
type Publisher interface {
	Broadcast(msgType string, payload any)
}

// Map forwards every call to an authoritative map and, when it succeeds,
// publishes the change to clients.
type Map struct {
	inner render.Map
	pub   Publisher
}

var _ render.Map = (*Map)(nil)

// NewMap wraps inner so that its mutations are streamed through pub.
func NewMap(inner render.Map, pub Publisher) *Map {
	return &Map{inner: inner, pub: pub}
}

func (m *Map) AddMarker(mk core.Marker) error {
	if err := m.inner.AddMarker(mk); err != nil {
		return err
	}
	m.pub.Broadcast(streaming.TypeMarkerAdd, mk)
	return nil
}

func (m *Map) MoveMarker(id string, p core.Position2D) error {
	if err := m.inner.MoveMarker(id, p); err != nil {
		return err
	}
	m.pub.Broadcast(streaming.TypeMarkerMove, streaming.MarkerMovePayload{ID: id, Position: p})
	return nil
}

func (m *Map) RemoveMarker(id string) error {
	if err := m.inner.RemoveMarker(id); err != nil {
		return err
	}
	m.pub.Broadcast(streaming.TypeMarkerRemove, streaming.MarkerRemovePayload{ID: id})
	return nil
}

func (m *Map) EaseTo(target core.CameraState, d time.Duration) error {
	if err := m.inner.EaseTo(target, d); err != nil {
		return err
	}
	m.pub.Broadcast(streaming.TypeCamera, streaming.CameraPayload{
		Kind:       streaming.CameraEase,
		Target:     target,
		DurationMs: d.Milliseconds(),
	})
	return nil
}

func (m *Map) FlyTo(target core.CameraState, d time.Duration) error {
	if err := m.inner.FlyTo(target, d); err != nil {
		return err
	}
	m.pub.Broadcast(streaming.TypeCamera, streaming.CameraPayload{
		Kind:       streaming.CameraFly,
		Target:     target,
		DurationMs: d.Milliseconds(),
	})
	return nil
}

// FitBounds publishes both the bounds and the pose the inner map resolved
// them to, so clients with a different viewport can fit themselves.
func (m *Map) FitBounds(b core.Bounds, padding float64, d time.Duration) error {
	if err := m.inner.FitBounds(b, padding, d); err != nil {
		return err
	}
	bounds := b
	m.pub.Broadcast(streaming.TypeCamera, streaming.CameraPayload{
		Kind:       streaming.CameraFit,
		Target:     m.inner.State(),
		DurationMs: d.Milliseconds(),
		Bounds:     &bounds,
		Padding:    padding,
	})
	return nil
}

func (m *Map) State() core.CameraState {
	return m.inner.State()
}
