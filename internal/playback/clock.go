// Package playback drives the campaign timeline: a scalar clock advanced by
// animation frames, plus the schedulers that deliver those frames.
package playback

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// FrameFunc is invoked once per requested animation frame.
type FrameFunc func(now time.Time)

// Scheduler delivers the next animation frame. Implementations must never
// run two frames concurrently.
type Scheduler interface {
	RequestFrame(fn FrameFunc)
}

// StepFunc recomputes playback state at the clock's current time. jump is
// true for discontinuous seeks.
type StepFunc func(jump bool)

// Clock advances a timeline position under play/pause/speed control.
// It is not safe for concurrent use; drive it from a single loop.
type Clock struct {
	sched Scheduler
	now   func() time.Time
	step  StepFunc

	time    float64
	maxTime float64
	speed   float64
	playing bool
	last    time.Time

	// bumped on every Play so frames armed by an earlier session are ignored
	generation uint64
}

// NewClock creates a paused clock at time 0. now defaults to time.Now.
func NewClock(sched Scheduler, now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{
		sched: sched,
		now:   now,
		speed: 1,
	}
}

// OnStep sets the recompute hook run after every time change.
func (c *Clock) OnStep(fn StepFunc) {
	c.step = fn
}

// Time returns the current timeline position.
func (c *Clock) Time() float64 { return c.time }

// MaxTime returns the end of the timeline.
func (c *Clock) MaxTime() float64 { return c.maxTime }

// Speed returns the playback multiplier.
func (c *Clock) Speed() float64 { return c.speed }

// IsPlaying reports whether frames are being consumed.
func (c *Clock) IsPlaying() bool { return c.playing }

// Reset rewinds to 0 with a new end time. It does not run the step hook.
func (c *Clock) Reset(maxTime float64) {
	if math.IsNaN(maxTime) || maxTime < 0 {
		maxTime = 0
	}
	c.time = 0
	c.maxTime = maxTime
}

// Play starts consuming frames. No-op while already playing.
func (c *Clock) Play() {
	if c.playing {
		return
	}
	c.playing = true
	c.generation++
	c.last = c.now()
	c.arm()
}

// Pause stops consuming frames. Time is kept.
func (c *Clock) Pause() {
	c.playing = false
}

func (c *Clock) arm() {
	if c.sched == nil {
		return
	}
	gen := c.generation
	c.sched.RequestFrame(func(now time.Time) {
		if gen != c.generation {
			return
		}
		c.Tick(now)
	})
}

// Tick advances time by the wall-clock delta since the previous frame times
// the speed. Reaching MaxTime clamps and pauses.
func (c *Clock) Tick(now time.Time) {
	if !c.playing {
		return
	}
	elapsed := now.Sub(c.last).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	c.last = now

	c.time += elapsed * c.speed
	if c.time > c.maxTime {
		c.time = c.maxTime
		c.Pause()
	}

	if c.step != nil {
		c.step(false)
	}
	if c.playing {
		c.arm()
	}
}

// Seek jumps to t, clamped to [0, MaxTime], and recomputes as a jump.
func (c *Clock) Seek(t float64) {
	switch {
	case math.IsNaN(t), t < 0:
		t = 0
	case t > c.maxTime:
		t = c.maxTime
	}
	c.time = t
	if c.step != nil {
		c.step(true)
	}
}

// SetSpeed replaces the multiplier. Non-finite or non-positive values fall
// back to 1.
func (c *Clock) SetSpeed(multiplier float64) {
	c.speed = sanitizeSpeed(multiplier)
}

// ParseSpeed converts textual speed input; anything unparseable is 1.
func ParseSpeed(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 1
	}
	return sanitizeSpeed(v)
}

func sanitizeSpeed(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 1
	}
	return v
}
