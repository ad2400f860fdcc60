package playback

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startLoop(t *testing.T, frameRate int) (*Loop, context.CancelFunc, <-chan error) {
	t.Helper()
	l := NewLoop(frameRate, nil)
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	return l, cancel, errCh
}

func TestLoop_DoRunsOnLoop(t *testing.T) {
	l, cancel, errCh := startLoop(t, 100)

	ran := false
	err := l.Do(context.Background(), func() { ran = true })
	require.NoError(t, err)
	assert.True(t, ran)

	cancel()
	require.NoError(t, <-errCh)
}

func TestLoop_FramesDriveClock(t *testing.T) {
	l, cancel, errCh := startLoop(t, 200)

	c := NewClock(l, nil)
	var steps atomic.Int32
	c.OnStep(func(bool) { steps.Add(1) })

	require.NoError(t, l.Do(context.Background(), func() {
		c.Reset(1000)
		c.Play()
	}))

	require.Eventually(t, func() bool { return steps.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	var now float64
	require.NoError(t, l.Do(context.Background(), func() {
		c.Pause()
		now = c.Time()
	}))
	assert.Greater(t, now, 0.0)

	cancel()
	require.NoError(t, <-errCh)
}

func TestLoop_PostAfterStop(t *testing.T) {
	l, cancel, errCh := startLoop(t, 60)
	cancel()
	require.NoError(t, <-errCh)

	assert.ErrorIs(t, l.Post(func() {}), ErrLoopStopped)
	assert.ErrorIs(t, l.Do(context.Background(), func() {}), ErrLoopStopped)
}

func TestLoop_DoHonoursContext(t *testing.T) {
	l := NewLoop(60, nil) // never started
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Do(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewLoop_DefaultFrameRate(t *testing.T) {
	l := NewLoop(0, nil)
	assert.Equal(t, time.Second/60, l.Interval())
}
