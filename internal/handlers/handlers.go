// Package handlers turns dispatcher commands into playback mutations. Every
// mutation runs on the playback loop so the player never sees two callers
// at once.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/morea-atlas/campaign-player/internal/campaign"
	"github.com/morea-atlas/campaign-player/internal/catalog"
	"github.com/morea-atlas/campaign-player/internal/dispatcher"
	"github.com/morea-atlas/campaign-player/internal/playback"
)

const defaultTimeout = 2 * time.Second

// ErrBadArgs is returned when a command's arguments cannot be parsed.
var ErrBadArgs = errors.New("bad command arguments")

// Executor runs a function on the playback goroutine and waits for it.
// *playback.Loop satisfies it.
type Executor interface {
	Do(ctx context.Context, fn func()) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Player  *campaign.Player
	Catalog *catalog.Catalog
	Loop    Executor
	Timeout time.Duration // per-command wait for the loop
	Logger  *slog.Logger
}

// Status is the result of every playback command.
type Status struct {
	CampaignID string  `json:"campaignId,omitempty"`
	Title      string  `json:"title,omitempty"`
	Time       float64 `json:"time"`
	MaxTime    float64 `json:"maxTime"`
	Label      string  `json:"label"`
	Speed      float64 `json:"speed"`
	Playing    bool    `json:"playing"`
	Units      int     `json:"units"`
}

// Service provides handler methods for player commands
type Service struct {
	deps Dependencies
}

// NewService creates a new handler service
func NewService(deps Dependencies) *Service {
	if deps.Timeout <= 0 {
		deps.Timeout = defaultTimeout
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps}
}

// RegisterHandlers registers all player commands with the dispatcher.
func (s *Service) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Transport - sync, callers want the resulting status
	d.Register(":PLAY:", s.handlePlay, dispatcher.Logged())
	d.Register(":PAUSE:", s.handlePause, dispatcher.Logged())
	d.Register(":TOGGLE:", s.handleToggle, dispatcher.Logged())
	d.Register(":SEEK:", s.handleSeek, dispatcher.Logged())
	d.Register(":SPEED:", s.handleSpeed, dispatcher.Logged())

	// Campaign selection and navigation
	d.Register(":CAMPAIGN:", s.handleCampaign, dispatcher.Logged())
	d.Register(":JUMP:EVENT:", s.handleJumpEvent, dispatcher.Logged())

	d.Register(":STATUS:", s.handleStatus)
}

// Status reads the player state on the loop.
func (s *Service) Status(ctx context.Context) (Status, error) {
	var st Status
	err := s.run(ctx, func() error {
		st = s.status()
		return nil
	})
	return st, err
}

func (s *Service) handlePlay(e dispatcher.Event) (any, error) {
	return s.mutate(func() error {
		if s.deps.Player.Campaign() == nil {
			return campaign.ErrNoCampaign
		}
		s.deps.Player.Play()
		return nil
	})
}

func (s *Service) handlePause(e dispatcher.Event) (any, error) {
	return s.mutate(func() error {
		s.deps.Player.Pause()
		return nil
	})
}

func (s *Service) handleToggle(e dispatcher.Event) (any, error) {
	return s.mutate(func() error {
		if s.deps.Player.Campaign() == nil {
			return campaign.ErrNoCampaign
		}
		s.deps.Player.Toggle()
		return nil
	})
}

func (s *Service) handleSeek(e dispatcher.Event) (any, error) {
	t, err := floatArg(e.Args, 0, "time")
	if err != nil {
		return nil, err
	}
	return s.mutate(func() error {
		if s.deps.Player.Campaign() == nil {
			return campaign.ErrNoCampaign
		}
		s.deps.Player.SetTime(t)
		return nil
	})
}

func (s *Service) handleSpeed(e dispatcher.Event) (any, error) {
	if len(e.Args) == 0 {
		return nil, fmt.Errorf("%w: speed is required", ErrBadArgs)
	}
	speed := playback.ParseSpeed(e.Args[0])
	return s.mutate(func() error {
		s.deps.Player.SetSpeed(speed)
		return nil
	})
}

func (s *Service) handleCampaign(e dispatcher.Event) (any, error) {
	if len(e.Args) == 0 || strings.TrimSpace(e.Args[0]) == "" {
		return nil, fmt.Errorf("%w: campaign id is required", ErrBadArgs)
	}
	c, err := s.deps.Catalog.Campaign(strings.TrimSpace(e.Args[0]))
	if err != nil {
		return nil, err
	}
	return s.mutate(func() error {
		return s.deps.Player.SetCampaign(c)
	})
}

func (s *Service) handleJumpEvent(e dispatcher.Event) (any, error) {
	clip, err := intArg(e.Args, 0, "clip index")
	if err != nil {
		return nil, err
	}
	ev, err := intArg(e.Args, 1, "event index")
	if err != nil {
		return nil, err
	}
	return s.mutate(func() error {
		return s.deps.Player.JumpToEvent(clip, ev)
	})
}

func (s *Service) handleStatus(e dispatcher.Event) (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.deps.Timeout)
	defer cancel()
	return s.Status(ctx)
}

// mutate applies fn on the loop and returns the status it left behind.
func (s *Service) mutate(fn func() error) (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.deps.Timeout)
	defer cancel()

	var st Status
	err := s.run(ctx, func() error {
		if err := fn(); err != nil {
			return err
		}
		st = s.status()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Service) run(ctx context.Context, fn func() error) error {
	var fnErr error
	if err := s.deps.Loop.Do(ctx, func() { fnErr = fn() }); err != nil {
		return err
	}
	return fnErr
}

// status must run on the loop.
func (s *Service) status() Status {
	p := s.deps.Player
	st := Status{
		Time:    p.Time(),
		MaxTime: p.MaxTime(),
		Label:   campaign.FormatTime(p.Time()),
		Speed:   p.Speed(),
		Playing: p.IsPlaying(),
		Units:   len(p.Units()),
	}
	if c := p.Campaign(); c != nil {
		st.CampaignID = c.ID
		st.Title = c.Title
	}
	return st
}

func floatArg(args []string, i int, name string) (float64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("%w: %s is required", ErrBadArgs, name)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(args[i]), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrBadArgs, name, args[i])
	}
	return v, nil
}

func intArg(args []string, i int, name string) (int, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("%w: %s is required", ErrBadArgs, name)
	}
	v, err := strconv.Atoi(strings.TrimSpace(args[i]))
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrBadArgs, name, args[i])
	}
	return v, nil
}
