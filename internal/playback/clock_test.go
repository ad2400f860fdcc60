package playback

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNow struct {
	t time.Time
}

func (f *fakeNow) Now() time.Time { return f.t }

func (f *fakeNow) Advance(d time.Duration) time.Time {
	f.t = f.t.Add(d)
	return f.t
}

func newTestClock(maxTime float64) (*Clock, *StepScheduler, *fakeNow, *[]bool) {
	sched := &StepScheduler{}
	now := &fakeNow{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := NewClock(sched, now.Now)
	c.Reset(maxTime)
	steps := &[]bool{}
	c.OnStep(func(jump bool) { *steps = append(*steps, jump) })
	return c, sched, now, steps
}

func TestClock_PlayRequestsFrame(t *testing.T) {
	c, sched, _, _ := newTestClock(10)

	c.Play()
	assert.True(t, c.IsPlaying())
	assert.Equal(t, 1, sched.Pending())

	// second Play is a no-op
	c.Play()
	assert.Equal(t, 1, sched.Pending())
}

func TestClock_TickAdvancesBySpeed(t *testing.T) {
	c, sched, now, steps := newTestClock(100)
	c.SetSpeed(2)
	c.Play()

	sched.Step(now.Advance(1500 * time.Millisecond))
	assert.InDelta(t, 3.0, c.Time(), 1e-9)
	assert.Equal(t, []bool{false}, *steps)
	assert.Equal(t, 1, sched.Pending(), "tick re-arms while playing")
}

func TestClock_PauseStopsTicks(t *testing.T) {
	c, sched, now, steps := newTestClock(100)
	c.Play()
	sched.Step(now.Advance(time.Second))
	c.Pause()

	sched.Step(now.Advance(time.Second))
	assert.InDelta(t, 1.0, c.Time(), 1e-9)
	assert.Len(t, *steps, 1)
	assert.Equal(t, 0, sched.Pending())
}

func TestClock_AutoStopAtMaxTime(t *testing.T) {
	c, sched, now, _ := newTestClock(20)
	c.Seek(18)
	c.Play()

	for i := 0; i < 5; i++ {
		sched.Step(now.Advance(time.Second))
	}

	assert.Equal(t, 20.0, c.Time())
	assert.False(t, c.IsPlaying())
	assert.Equal(t, 0, sched.Pending())
}

func TestClock_PausePlayDoesNotDoubleTicks(t *testing.T) {
	c, sched, now, steps := newTestClock(100)
	c.Play()
	c.Pause()
	c.Play()
	require.Equal(t, 2, sched.Pending())

	sched.Step(now.Advance(time.Second))
	assert.InDelta(t, 1.0, c.Time(), 1e-9)
	assert.Len(t, *steps, 1, "stale frame from the first session is ignored")
	assert.Equal(t, 1, sched.Pending())
}

func TestClock_NegativeElapsedIgnored(t *testing.T) {
	c, sched, now, _ := newTestClock(100)
	c.Play()
	sched.Step(now.Advance(-time.Second))
	assert.Equal(t, 0.0, c.Time())
}

func TestClock_SeekClampsAndJumps(t *testing.T) {
	c, _, _, steps := newTestClock(20)

	c.Seek(25)
	assert.Equal(t, 20.0, c.Time())
	c.Seek(-3)
	assert.Equal(t, 0.0, c.Time())
	c.Seek(math.NaN())
	assert.Equal(t, 0.0, c.Time())
	c.Seek(7.5)
	assert.Equal(t, 7.5, c.Time())

	assert.Equal(t, []bool{true, true, true, true}, *steps)
}

func TestClock_Reset(t *testing.T) {
	c, _, _, steps := newTestClock(20)
	c.Seek(10)
	c.Reset(40)

	assert.Equal(t, 0.0, c.Time())
	assert.Equal(t, 40.0, c.MaxTime())
	assert.Len(t, *steps, 1, "reset does not recompute")

	c.Reset(math.NaN())
	assert.Equal(t, 0.0, c.MaxTime())
}

func TestClock_SetSpeed(t *testing.T) {
	c, _, _, _ := newTestClock(10)
	assert.Equal(t, 1.0, c.Speed())

	tests := []struct {
		in   float64
		want float64
	}{
		{4, 4},
		{0.5, 0.5},
		{0, 1},
		{-2, 1},
		{math.NaN(), 1},
		{math.Inf(1), 1},
	}
	for _, tt := range tests {
		c.SetSpeed(tt.in)
		assert.Equal(t, tt.want, c.Speed(), "input %v", tt.in)
	}
}

func TestParseSpeed(t *testing.T) {
	assert.Equal(t, 2.0, ParseSpeed("2"))
	assert.Equal(t, 0.25, ParseSpeed(" 0.25 "))
	assert.Equal(t, 1.0, ParseSpeed("fast"))
	assert.Equal(t, 1.0, ParseSpeed(""))
	assert.Equal(t, 1.0, ParseSpeed("-1"))
}

func TestStepScheduler_DefersNestedRequests(t *testing.T) {
	s := &StepScheduler{}
	calls := 0
	var frame FrameFunc
	frame = func(time.Time) {
		calls++
		s.RequestFrame(frame)
	}
	s.RequestFrame(frame)

	assert.Equal(t, 1, s.Step(time.Now()))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, s.Pending())
}
