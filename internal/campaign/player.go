// Package campaign implements the playback state machine: given the clock's
// time and the active campaign it positions units, drives the camera and
// fires narrative events exactly once per forward crossing.
package campaign

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/morea-atlas/campaign-player/internal/playback"
	"github.com/morea-atlas/campaign-player/internal/presence"
	"github.com/morea-atlas/campaign-player/internal/render"
	"github.com/morea-atlas/campaign-player/internal/route"
	"github.com/morea-atlas/campaign-player/pkg/core"
)

var (
	// ErrNoCampaign is returned when an operation needs an active campaign.
	ErrNoCampaign = errors.New("no campaign loaded")
	// ErrNoClips is returned by SetCampaign for a campaign without clips,
	// whose timeline length would be undefined.
	ErrNoClips = errors.New("campaign has no clips")
	// ErrEventNotFound is returned by JumpToEvent for a bad index.
	ErrEventNotFound = errors.New("event not found")
)

// Config holds camera tuning.
type Config struct {
	FollowDuration time.Duration // easing for follow/wide moves during playback
	FitPadding     float64       // pixels around a wide-mode route
	EventZoom      float64       // zoom used when jumping to an event
}

// DefaultConfig matches the web player.
func DefaultConfig() Config {
	return Config{
		FollowDuration: 1200 * time.Millisecond,
		FitPadding:     120,
		EventZoom:      7.8,
	}
}

// Dependencies holds the collaborators a Player needs.
type Dependencies struct {
	Map       render.Map
	Routes    *route.Index
	Scheduler playback.Scheduler
	Now       func() time.Time
	Logger    *slog.Logger
}

type eventKey struct {
	clip  int
	event int
}

// Player is the campaign state machine. Like the clock it wraps it is not
// safe for concurrent use: every call must come from the playback loop.
type Player struct {
	cfg    Config
	clock  *playback.Clock
	routes *route.Index
	units  *presence.Manager
	camera render.Camera
	logger *slog.Logger

	active *core.Campaign
	fired  map[eventKey]bool
	warned map[string]bool

	timeListeners     []func(t, maxTime float64)
	stateListeners    []func(playing bool, speed float64)
	eventListeners    []func(core.EventPayload)
	campaignListeners []func(*core.Campaign)
}

// New creates a Player with no active campaign.
func New(deps Dependencies, cfg Config) *Player {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	routes := deps.Routes
	if routes == nil {
		routes = route.Build(nil)
	}
	p := &Player{
		cfg:    cfg,
		clock:  playback.NewClock(deps.Scheduler, deps.Now),
		routes: routes,
		units:  presence.NewManager(deps.Map, logger),
		camera: deps.Map,
		logger: logger,
		fired:  make(map[eventKey]bool),
		warned: make(map[string]bool),
	}
	p.clock.OnStep(p.Recompute)
	return p
}

// OnTimeUpdate registers a listener called after every recompute pass.
func (p *Player) OnTimeUpdate(fn func(t, maxTime float64)) {
	p.timeListeners = append(p.timeListeners, fn)
}

// OnStateChange registers a listener called after Play, Pause, Toggle and
// SetSpeed. Those calls do not recompute, so OnTimeUpdate does not see them.
func (p *Player) OnStateChange(fn func(playing bool, speed float64)) {
	p.stateListeners = append(p.stateListeners, fn)
}

func (p *Player) stateChanged() {
	for _, fn := range p.stateListeners {
		fn(p.clock.IsPlaying(), p.clock.Speed())
	}
}

// OnEvent registers a listener called when a narrative event fires.
func (p *Player) OnEvent(fn func(core.EventPayload)) {
	p.eventListeners = append(p.eventListeners, fn)
}

// OnCampaign registers a listener called when the active campaign changes,
// before the initial recompute.
func (p *Player) OnCampaign(fn func(*core.Campaign)) {
	p.campaignListeners = append(p.campaignListeners, fn)
}

// SetCampaign activates c: time rewinds to 0, previous unit markers are
// destroyed, new ones created and the fired-event table starts empty.
func (p *Player) SetCampaign(c *core.Campaign) error {
	if c == nil {
		return ErrNoCampaign
	}
	if len(c.Clips) == 0 {
		return fmt.Errorf("%w: %s", ErrNoClips, c.ID)
	}

	p.active = c
	p.clock.Reset(c.MaxTime())
	p.units.Clear()
	p.units.Activate(c.Units)
	p.fired = make(map[eventKey]bool)
	p.warned = make(map[string]bool)

	p.logger.Info("Campaign loaded",
		"campaign", c.ID,
		"units", len(c.Units),
		"clips", len(c.Clips),
		"maxTime", p.clock.MaxTime(),
	)
	for _, fn := range p.campaignListeners {
		fn(c)
	}

	p.clock.Seek(0)
	return nil
}

// Campaign returns the active campaign, or nil.
func (p *Player) Campaign() *core.Campaign { return p.active }

// Play starts playback.
func (p *Player) Play() {
	p.clock.Play()
	p.stateChanged()
}

// Pause stops playback.
func (p *Player) Pause() {
	p.clock.Pause()
	p.stateChanged()
}

// Toggle flips between playing and paused and returns the new state.
func (p *Player) Toggle() bool {
	if p.clock.IsPlaying() {
		p.clock.Pause()
	} else {
		p.clock.Play()
	}
	p.stateChanged()
	return p.clock.IsPlaying()
}

// SetTime seeks to t (clamped) and recomputes as a jump.
func (p *Player) SetTime(t float64) { p.clock.Seek(t) }

// SetSpeed sets the playback multiplier.
func (p *Player) SetSpeed(multiplier float64) {
	p.clock.SetSpeed(multiplier)
	p.stateChanged()
}

// Tick advances playback to now. Normally called by the scheduler.
func (p *Player) Tick(now time.Time) { p.clock.Tick(now) }

// IsPlaying reports whether playback is running.
func (p *Player) IsPlaying() bool { return p.clock.IsPlaying() }

// Time returns the timeline position.
func (p *Player) Time() float64 { return p.clock.Time() }

// MaxTime returns the timeline length of the active campaign.
func (p *Player) MaxTime() float64 { return p.clock.MaxTime() }

// Speed returns the playback multiplier.
func (p *Player) Speed() float64 { return p.clock.Speed() }

// Units returns the live units of the active campaign.
func (p *Player) Units() []presence.LiveUnit { return p.units.Units() }

// UnitPosition returns a unit's last placed position.
func (p *Player) UnitPosition(unitID string) (core.Position2D, bool) {
	return p.units.Position(unitID)
}

// Lead returns the first placed unit.
func (p *Player) Lead() (presence.LiveUnit, bool) { return p.units.Lead() }

// Fired reports the latch state of one event.
func (p *Player) Fired(clipIndex, eventIndex int) bool {
	return p.fired[eventKey{clipIndex, eventIndex}]
}

// JumpToEvent seeks to an event's trigger time and, when it carries
// coordinates, flies the camera there.
func (p *Player) JumpToEvent(clipIndex, eventIndex int) error {
	if p.active == nil {
		return ErrNoCampaign
	}
	if clipIndex < 0 || clipIndex >= len(p.active.Clips) {
		return fmt.Errorf("%w: clip %d", ErrEventNotFound, clipIndex)
	}
	events := p.active.Clips[clipIndex].Events
	if eventIndex < 0 || eventIndex >= len(events) {
		return fmt.Errorf("%w: clip %d event %d", ErrEventNotFound, clipIndex, eventIndex)
	}
	ev := events[eventIndex]

	p.clock.Seek(ev.At)
	if ev.Coords != nil && p.camera != nil {
		target := p.camera.State()
		target.Center = *ev.Coords
		target.Zoom = p.cfg.EventZoom
		if err := p.camera.FlyTo(target, p.cfg.FollowDuration); err != nil {
			p.logger.Debug("Camera flyTo failed", "error", err)
		}
	}
	return nil
}

// Recompute derives unit positions, camera moves and event firing from the
// current time. With jump set it also reconciles every fired flag of the
// campaign to time >= event.At. Calling it repeatedly at the same time is
// idempotent.
func (p *Player) Recompute(jump bool) {
	if p.active == nil {
		return
	}
	now := p.clock.Time()

	for ci := range p.active.Clips {
		clip := &p.active.Clips[ci]
		if !clip.Active(now) {
			continue
		}
		if !p.units.Has(clip.UnitID) {
			p.warnOnce("unit:"+clip.UnitID, "Clip references unknown unit", "clip", ci, "unit", clip.UnitID)
			continue
		}

		point, ok := p.routes.PositionAtFraction(clip.RouteID, clip.Fraction(now))
		if ok {
			p.units.Move(clip.UnitID, point)
			p.applyCamera(clip, point, jump)
		} else {
			p.warnOnce("route:"+clip.RouteID, "Clip references unknown route", "clip", ci, "route", clip.RouteID)
		}

		p.fireDue(ci, clip, now)
	}

	if jump {
		p.reconcile(now)
	}

	for _, fn := range p.timeListeners {
		fn(now, p.clock.MaxTime())
	}
}

func (p *Player) fireDue(ci int, clip *core.Clip, now float64) {
	for ei, ev := range clip.Events {
		key := eventKey{ci, ei}
		if p.fired[key] || ev.At > now {
			continue
		}
		p.fired[key] = true

		payload := core.EventPayload{
			CampaignID: p.active.ID,
			ClipIndex:  ci,
			EventIndex: ei,
			UnitID:     clip.UnitID,
			At:         ev.At,
			Text:       ev.Text,
			Coords:     ev.Coords,
		}
		p.logger.Debug("Event fired", "campaign", p.active.ID, "at", ev.At, "text", ev.Text)
		for _, fn := range p.eventListeners {
			fn(payload)
		}
	}
}

// reconcile covers every clip, not only the active ones, since a seek can
// land before or beyond clips whose events were already latched.
func (p *Player) reconcile(now float64) {
	for ci, clip := range p.active.Clips {
		for ei, ev := range clip.Events {
			p.fired[eventKey{ci, ei}] = now >= ev.At
		}
	}
}

func (p *Player) applyCamera(clip *core.Clip, point core.Position2D, jump bool) {
	intent := clip.Camera
	if intent == nil || p.camera == nil {
		return
	}

	current := p.camera.State()
	target := core.CameraState{
		Center:  point,
		Zoom:    valueOr(intent.Zoom, current.Zoom),
		Pitch:   valueOr(intent.Pitch, current.Pitch),
		Bearing: valueOr(intent.Bearing, current.Bearing),
	}
	duration := p.cfg.FollowDuration
	if jump {
		duration = 0
	}

	var err error
	switch intent.Mode {
	case core.CameraFollow, "":
		err = p.camera.EaseTo(target, duration)
	case core.CameraFlyTo:
		if jump {
			err = p.camera.FlyTo(target, p.cfg.FollowDuration)
		}
	case core.CameraWide:
		if bounds, ok := p.routes.Bounds(clip.RouteID); ok {
			err = p.camera.FitBounds(bounds, p.cfg.FitPadding, duration)
		}
	default:
		p.warnOnce("mode:"+string(intent.Mode), "Unknown camera mode", "mode", intent.Mode)
	}
	if err != nil {
		p.logger.Debug("Camera move failed", "mode", intent.Mode, "error", err)
	}
}

func (p *Player) warnOnce(key, msg string, args ...any) {
	if p.warned[key] {
		return
	}
	p.warned[key] = true
	p.logger.Warn(msg, args...)
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
