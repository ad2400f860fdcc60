// Package monitor samples playback state on an interval for telemetry and
// the status endpoint.
package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/morea-atlas/campaign-player/internal/session"
)

// PointWriter is satisfied by *influx.Manager.
type PointWriter interface {
	WritePoint(bucket string, point *influxdb2_write.Point) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Session *session.Context
	Clients func() int  // connected stream clients, may be nil
	Influx  PointWriter // may be nil
	Bucket  string
	Point   func(s session.Snapshot, clients int, at time.Time) *influxdb2_write.Point
	Logger  *slog.Logger
	Now     func() time.Time
}

// Report is one status sample.
type Report struct {
	session.Snapshot
	Clients   int       `json:"clients"`
	SampledAt time.Time `json:"sampledAt"`
}

// Service manages status monitoring
type Service struct {
	deps Dependencies

	mu        sync.RWMutex
	isRunning bool
	last      Report
	stop      context.CancelFunc
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{deps: deps}
}

// Sample takes a fresh report and remembers it as the latest.
func (s *Service) Sample() Report {
	r := Report{
		Snapshot:  s.deps.Session.Get(),
		SampledAt: s.deps.Now(),
	}
	if s.deps.Clients != nil {
		r.Clients = s.deps.Clients()
	}

	s.mu.Lock()
	s.last = r
	s.mu.Unlock()
	return r
}

// Latest returns the most recent sample; zero before the first one.
func (s *Service) Latest() Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Start samples every interval until Stop or ctx cancellation.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.isRunning = true
	s.stop = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		s.deps.Logger.Debug("Starting status monitor", "interval", interval)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.record(s.Sample())
			}
		}
	}()
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.RLock()
	stop, done := s.stop, s.done
	s.mu.RUnlock()
	if stop == nil {
		return
	}
	stop()
	<-done
}

func (s *Service) record(r Report) {
	if r.CampaignID == "" {
		return
	}
	s.deps.Logger.Debug("Playback status",
		"campaign", r.CampaignID,
		"time", r.Time,
		"playing", r.Playing,
		"clients", r.Clients,
	)
	if s.deps.Influx == nil || s.deps.Point == nil {
		return
	}
	if err := s.deps.Influx.WritePoint(s.deps.Bucket, s.deps.Point(r.Snapshot, r.Clients, r.SampledAt)); err != nil {
		s.deps.Logger.Warn("Failed to write status point", "error", err)
	}
}
